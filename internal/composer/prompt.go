// Package composer assembles the message list for a model call: the system
// prompt enriched with retrieved reference material, prior conversation
// history trimmed to fit the context window, and the learner's new message.
package composer

import (
	"strings"

	"github.com/kalambet/lingo/internal/provider"
)

const defaultContextLength = 4096

// Composer builds message lists under a model context window.
type Composer struct {
	ContextLength int
}

// New creates a Composer for the given model context window. If
// contextLength <= 0, the default (4096) is used.
func New(contextLength int) *Composer {
	if contextLength <= 0 {
		contextLength = defaultContextLength
	}
	return &Composer{ContextLength: contextLength}
}

// Compose builds the messages for one tutoring turn. Retrieved reference
// snippets are appended to the system prompt. History is trimmed oldest-first
// until the whole conversation plus the reply reserve fits the context
// window; the system prompt and the new user message are never dropped.
func (c *Composer) Compose(systemPrompt string, contextSnippets []string, history []provider.Message, userMessage string, replyReserve int) []provider.Message {
	system := provider.Message{
		Role:    provider.RoleSystem,
		Content: enrichSystemPrompt(systemPrompt, contextSnippets),
	}
	user := provider.Message{Role: provider.RoleUser, Content: userMessage}

	budget := c.ContextLength - replyReserve
	fixed := EstimateTokens(system.Content) + EstimateTokens(user.Content)

	kept := trimHistory(history, budget-fixed)

	msgs := make([]provider.Message, 0, len(kept)+2)
	msgs = append(msgs, system)
	msgs = append(msgs, kept...)
	msgs = append(msgs, user)
	return msgs
}

// Halve drops the older half of a history slice. Callers use it to retry a
// request that overflowed the provider's context window.
func Halve(history []provider.Message) []provider.Message {
	if len(history) <= 1 {
		return nil
	}
	return history[len(history)/2:]
}

// trimHistory drops the oldest messages until the remainder fits the budget.
func trimHistory(history []provider.Message, budget int) []provider.Message {
	if budget <= 0 {
		return nil
	}

	total := 0
	for _, m := range history {
		total += EstimateTokens(m.Content)
	}

	start := 0
	for start < len(history) && total > budget {
		total -= EstimateTokens(history[start].Content)
		start++
	}
	return history[start:]
}

func enrichSystemPrompt(systemPrompt string, snippets []string) string {
	if len(snippets) == 0 {
		return systemPrompt
	}

	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\nRelevant reference material:\n")
	for _, s := range snippets {
		sb.WriteString("- ")
		sb.WriteString(s)
		sb.WriteString("\n")
	}
	return sb.String()
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
