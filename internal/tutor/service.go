// Package tutor implements the tutoring logic: conversational chat with
// retrieved reference material, grammar correction, exercise generation and
// checking, and grammar topic explanations.
package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kalambet/lingo/internal/composer"
	"github.com/kalambet/lingo/internal/provider"
	"github.com/kalambet/lingo/internal/retrieval"
)

// Sampling defaults per operation, matching the reply budgets the prompts
// were tuned for.
const (
	chatMaxTokens     = 1024
	correctMaxTokens  = 2048
	exerciseMaxTokens = 3000
	explainMaxTokens  = 1500
	feedbackMaxTokens = 200
)

// ContextSource supplies retrieved reference material for prompts.
type ContextSource interface {
	ContextFor(ctx context.Context, query, language string, topK int) []string
	SearchGrammar(ctx context.Context, query, language string, topK int) ([]retrieval.ContextChunk, error)
}

// Service is the language tutoring service.
type Service struct {
	llm      provider.Provider
	retr     ContextSource
	composer *composer.Composer
	topK     int
	logger   *slog.Logger
}

// New creates a tutoring Service. topK controls how many reference documents
// are retrieved per chat turn.
func New(llm provider.Provider, retr ContextSource, comp *composer.Composer, topK int) *Service {
	return &Service{
		llm:      llm,
		retr:     retr,
		composer: comp,
		topK:     topK,
		logger:   slog.Default(),
	}
}

// ChatResult is a completed chat turn.
type ChatResult struct {
	Response    string
	ContextUsed []string
}

// Chat generates a tutoring reply for one conversation turn. When the request
// overflows the model's context window, the older half of the history is
// dropped and the request retried once.
func (s *Service) Chat(ctx context.Context, message string, history []provider.Message, language, level string, useRAG bool) (ChatResult, error) {
	snippets := s.contextSnippets(ctx, message, language, useRAG)
	msgs := s.composer.Compose(tutorSystemPrompt(language, level), snippets, history, message, chatMaxTokens)

	opts := provider.DefaultOptions()
	opts.MaxTokens = chatMaxTokens

	response, err := s.llm.Generate(ctx, msgs, opts)
	if errors.Is(err, provider.ErrContextOverflow) && len(history) > 1 {
		s.logger.Warn("context overflow, retrying with halved history", "history_len", len(history))
		msgs = s.composer.Compose(tutorSystemPrompt(language, level), snippets, composer.Halve(history), message, chatMaxTokens)
		response, err = s.llm.Generate(ctx, msgs, opts)
	}
	if err != nil {
		return ChatResult{}, err
	}

	return ChatResult{Response: response, ContextUsed: snippets}, nil
}

// ChatStream opens a streaming tutoring reply. The returned context snippets
// are the reference material injected into the prompt. The caller must close
// the stream.
func (s *Service) ChatStream(ctx context.Context, message string, history []provider.Message, language, level string, useRAG bool) (provider.Stream, []string, error) {
	snippets := s.contextSnippets(ctx, message, language, useRAG)
	msgs := s.composer.Compose(tutorSystemPrompt(language, level), snippets, history, message, chatMaxTokens)

	opts := provider.DefaultOptions()
	opts.MaxTokens = chatMaxTokens

	stream, err := s.llm.GenerateStream(ctx, msgs, opts)
	if errors.Is(err, provider.ErrContextOverflow) && len(history) > 1 {
		s.logger.Warn("context overflow, retrying stream with halved history", "history_len", len(history))
		msgs = s.composer.Compose(tutorSystemPrompt(language, level), snippets, composer.Halve(history), message, chatMaxTokens)
		stream, err = s.llm.GenerateStream(ctx, msgs, opts)
	}
	if err != nil {
		return nil, nil, err
	}
	return stream, snippets, nil
}

func (s *Service) contextSnippets(ctx context.Context, message, language string, useRAG bool) []string {
	if !useRAG {
		return nil
	}
	return s.retr.ContextFor(ctx, message, language, s.topK)
}

// CorrectionError describes one mistake found in the learner's text.
type CorrectionError struct {
	Original    string `json:"original"`
	Corrected   string `json:"corrected"`
	ErrorType   string `json:"error_type"`
	Explanation string `json:"explanation"`
	Position    *int   `json:"position,omitempty"`
}

// Correction is the result of checking a text.
type Correction struct {
	OriginalText  string            `json:"original_text"`
	CorrectedText string            `json:"corrected_text"`
	Errors        []CorrectionError `json:"errors"`
	HasErrors     bool              `json:"has_errors"`
}

type correctionPayload struct {
	CorrectedText string            `json:"corrected_text"`
	Errors        []CorrectionError `json:"errors"`
}

// Correct checks a text for grammar, spelling and style mistakes. If the
// model's output cannot be parsed even after a stricter retry, the text is
// returned unchanged with no errors so the caller still gets a usable answer.
func (s *Service) Correct(ctx context.Context, text, language string) (Correction, error) {
	system := correctionSystemPrompt(language)
	user := fmt.Sprintf("Please check and correct this %s text:\n\n%s", language, text)

	opts := provider.Options{Temperature: 0.3, MaxTokens: correctMaxTokens, JSONMode: true}

	raw, err := s.generateParsed(ctx, system, user, opts)
	if errors.Is(err, provider.ErrMalformedOutput) {
		s.logger.Warn("correction output did not parse, returning text unchanged")
		return Correction{OriginalText: text, CorrectedText: text, Errors: []CorrectionError{}}, nil
	}
	if err != nil {
		return Correction{}, err
	}

	var payload correctionPayload
	if uerr := json.Unmarshal(raw, &payload); uerr != nil || payload.CorrectedText == "" {
		s.logger.Warn("correction output unusable, returning text unchanged", "error", uerr)
		return Correction{OriginalText: text, CorrectedText: text, Errors: []CorrectionError{}}, nil
	}

	return Correction{
		OriginalText:  text,
		CorrectedText: payload.CorrectedText,
		Errors:        payload.Errors,
		HasErrors:     len(payload.Errors) > 0,
	}, nil
}

// Exercise is a single practice question.
type Exercise struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Question      string   `json:"question"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer"`
	Hint          string   `json:"hint,omitempty"`
	Explanation   string   `json:"explanation"`
}

type exercisePayload struct {
	Exercises []struct {
		Question      string   `json:"question"`
		Options       []string `json:"options"`
		CorrectAnswer string   `json:"correct_answer"`
		Hint          string   `json:"hint"`
		Explanation   string   `json:"explanation"`
	} `json:"exercises"`
}

// GenerateExercises produces count practice questions for a topic. Items the
// model returns malformed are dropped; if nothing usable remains the call
// fails with ErrMalformedOutput.
func (s *Service) GenerateExercises(ctx context.Context, topic, language, exerciseType, level string, count int) ([]Exercise, error) {
	system := exerciseSystemPrompt(language, level, topic, exerciseType, count)
	user := fmt.Sprintf("Generate %d %s exercises about '%s' for %s learners at the %s level.",
		count, exerciseType, topic, language, level)

	opts := provider.Options{Temperature: 0.7, MaxTokens: exerciseMaxTokens, JSONMode: true}

	raw, err := s.generateParsed(ctx, system, user, opts)
	if err != nil {
		return nil, err
	}

	var payload exercisePayload
	if uerr := json.Unmarshal(raw, &payload); uerr != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrMalformedOutput, uerr)
	}

	var out []Exercise
	for _, ex := range payload.Exercises {
		if !validExerciseItem(exerciseType, ex.Question, ex.Options, ex.CorrectAnswer) {
			s.logger.Warn("dropping malformed exercise item", "question", ex.Question)
			continue
		}
		options := ex.Options
		if exerciseType == TypeTranslation {
			options = nil
		}
		out = append(out, Exercise{
			ID:            uuid.NewString(),
			Type:          exerciseType,
			Question:      ex.Question,
			Options:       options,
			CorrectAnswer: ex.CorrectAnswer,
			Hint:          ex.Hint,
			Explanation:   ex.Explanation,
		})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no usable exercises in model output", provider.ErrMalformedOutput)
	}
	return out, nil
}

func validExerciseItem(exerciseType, question string, options []string, correctAnswer string) bool {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(correctAnswer) == "" {
		return false
	}
	switch exerciseType {
	case TypeMultipleChoice:
		if len(options) < 2 {
			return false
		}
		// The correct answer must be selectable; comparison matches the
		// normalization CheckAnswer uses for verdicts.
		for _, opt := range options {
			if strings.EqualFold(strings.TrimSpace(opt), strings.TrimSpace(correctAnswer)) {
				return true
			}
		}
		return false
	case TypeFillInBlank:
		return strings.Contains(question, "___")
	}
	return true
}

// CheckResult is the outcome of checking a learner's answer.
type CheckResult struct {
	IsCorrect     bool   `json:"is_correct"`
	CorrectAnswer string `json:"correct_answer"`
	Feedback      string `json:"feedback"`
}

// CheckAnswer compares a learner's answer to the expected one. The verdict is
// a normalized string comparison; the model only phrases the feedback and can
// never flip the verdict. Feedback degrades to a static message when the
// model is unavailable.
func (s *Service) CheckAnswer(ctx context.Context, userAnswer, correctAnswer, language string) CheckResult {
	isCorrect := strings.EqualFold(strings.TrimSpace(userAnswer), strings.TrimSpace(correctAnswer))

	if isCorrect {
		return CheckResult{IsCorrect: true, CorrectAnswer: correctAnswer, Feedback: "That's correct! 🎉"}
	}

	msgs := []provider.Message{
		{Role: provider.RoleSystem, Content: feedbackSystemPrompt(language)},
		{Role: provider.RoleUser, Content: fmt.Sprintf("I answered '%s' but the correct answer was '%s'. Can you explain why?", userAnswer, correctAnswer)},
	}
	opts := provider.DefaultOptions()
	opts.MaxTokens = feedbackMaxTokens

	feedback, err := s.llm.Generate(ctx, msgs, opts)
	if err != nil {
		s.logger.Warn("feedback generation failed, using fallback", "error", err)
		feedback = fmt.Sprintf("Not quite. The correct answer is '%s'. Keep practicing!", correctAnswer)
	}

	return CheckResult{IsCorrect: false, CorrectAnswer: correctAnswer, Feedback: feedback}
}

// ExplainGrammar produces a level-appropriate explanation of a grammar topic,
// grounded in retrieved reference documents when available.
func (s *Service) ExplainGrammar(ctx context.Context, topic, language, level string) (string, error) {
	var reference string
	chunks, err := s.retr.SearchGrammar(ctx, topic, language, 3)
	if err != nil {
		s.logger.Warn("grammar reference lookup failed, explaining without it", "error", err)
	} else {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		reference = strings.Join(texts, "\n")
	}

	msgs := []provider.Message{
		{Role: provider.RoleSystem, Content: explainSystemPrompt(language, level, reference)},
		{Role: provider.RoleUser, Content: fmt.Sprintf("Please explain: %s", topic)},
	}
	opts := provider.DefaultOptions()
	opts.MaxTokens = explainMaxTokens

	return s.llm.Generate(ctx, msgs, opts)
}

// generateParsed runs a JSON-mode generation and returns the response as a
// cleaned JSON document. A response that does not parse triggers one retry
// with a stricter instruction before failing with ErrMalformedOutput.
func (s *Service) generateParsed(ctx context.Context, system, user string, opts provider.Options) (json.RawMessage, error) {
	msgs := []provider.Message{
		{Role: provider.RoleSystem, Content: system},
		{Role: provider.RoleUser, Content: user},
	}

	response, err := s.llm.Generate(ctx, msgs, opts)
	if err != nil {
		return nil, err
	}

	cleaned := cleanModelJSON(response)
	if json.Valid([]byte(cleaned)) {
		return json.RawMessage(cleaned), nil
	}

	s.logger.Warn("model output did not parse, retrying with stricter instruction")
	msgs[0].Content = system + strictJSONReminder
	response, err = s.llm.Generate(ctx, msgs, opts)
	if err != nil {
		return nil, err
	}

	cleaned = cleanModelJSON(response)
	if !json.Valid([]byte(cleaned)) {
		return nil, fmt.Errorf("%w: response is not valid JSON", provider.ErrMalformedOutput)
	}
	return json.RawMessage(cleaned), nil
}

// cleanModelJSON strips markdown fences and surrounding prose that models
// sometimes wrap around JSON output.
func cleanModelJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
