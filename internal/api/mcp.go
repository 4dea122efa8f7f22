package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/lingo/internal/retrieval"
	"github.com/kalambet/lingo/internal/tutor"
)

// GrammarSearcher abstracts semantic reference search for the MCP layer.
type GrammarSearcher interface {
	SearchGrammar(ctx context.Context, query, language string, topK int) ([]retrieval.ContextChunk, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Tutor    TutorService
	Searcher GrammarSearcher
}

// NewMCPServer creates an MCP server exposing the tutoring tools over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"lingo",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("lingo — language tutoring: grammar explanations, text correction, and reference search."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("explain_grammar",
			mcp.WithDescription("Explain a grammar topic at a learner's proficiency level, grounded in reference material."),
			mcp.WithString("topic", mcp.Description("Grammar topic to explain"), mcp.Required()),
			mcp.WithString("language", mcp.Description("Target language (default English)")),
			mcp.WithString("level", mcp.Description("Learner level: beginner, intermediate or advanced")),
		),
		mcpExplainGrammar(deps),
	)

	s.AddTool(
		mcp.NewTool("correct_text",
			mcp.WithDescription("Check a text for grammar, spelling and style mistakes and return corrections with explanations."),
			mcp.WithString("text", mcp.Description("Text to check"), mcp.Required()),
			mcp.WithString("language", mcp.Description("Language of the text (default English)")),
		),
		mcpCorrectText(deps),
	)

	s.AddTool(
		mcp.NewTool("search_reference",
			mcp.WithDescription("Semantically search the grammar reference corpus."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithString("language", mcp.Description("Restrict results to a language")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchReference(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"lingo://topics",
			"Exercise Topics",
			mcp.WithResourceDescription("Practice topics per supported language"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTopics(),
	)

	return s
}

func mcpExplainGrammar(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		topic, err := req.RequireString("topic")
		if err != nil {
			return mcpError("topic is required"), nil
		}
		language := req.GetString("language", defaultLanguage)
		level := strings.ToLower(req.GetString("level", defaultLevel))
		if !tutor.ValidLevel(level) {
			return mcpError(fmt.Sprintf("unknown level %q", level)), nil
		}

		explanation, err := deps.Tutor.ExplainGrammar(ctx, topic, language, level)
		if err != nil {
			return mcpError(fmt.Sprintf("explanation failed: %v", err)), nil
		}
		return mcpText(explanation), nil
	}
}

func mcpCorrectText(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		language := req.GetString("language", defaultLanguage)

		correction, err := deps.Tutor.Correct(ctx, text, language)
		if err != nil {
			return mcpError(fmt.Sprintf("correction failed: %v", err)), nil
		}

		b, err := json.Marshal(correction)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal correction: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchReference(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		language := req.GetString("language", "")

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		chunks, err := deps.Searcher.SearchGrammar(ctx, query, language, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(chunks) == 0 {
			return mcpText("[]"), nil
		}

		type chunkResult struct {
			ID       string  `json:"id"`
			Text     string  `json:"text"`
			Language string  `json:"language"`
			Score    float32 `json:"score"`
		}
		results := make([]chunkResult, len(chunks))
		for i, c := range chunks {
			results[i] = chunkResult{ID: c.ID, Text: c.Text, Language: c.Language, Score: c.Score}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceTopics() server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		topics := map[string][]string{}
		for _, language := range []string{"English", "Chinese", "Russian", "Japanese"} {
			topics[language] = tutor.TopicsFor(language)
		}

		b, err := json.Marshal(topics)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal topics: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
