package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/lingo/internal/api"
	"github.com/kalambet/lingo/internal/composer"
	"github.com/kalambet/lingo/internal/config"
	"github.com/kalambet/lingo/internal/ollama"
	"github.com/kalambet/lingo/internal/provider"
	"github.com/kalambet/lingo/internal/retrieval"
	"github.com/kalambet/lingo/internal/storage"
	"github.com/kalambet/lingo/internal/training"
	"github.com/kalambet/lingo/internal/tutor"
)

var serveMCP bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lingo server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(serveMCP)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "also serve MCP tools over stdio")
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "lingo version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ollama serves local chat, local embeddings, or both depending on
	// config. Only the models it will actually serve get pulled and loaded.
	ollamaClient := ollama.New(cfg.Ollama.BaseURL)
	var chatModel, embedModel string
	if cfg.LLM.Provider == config.ProviderLocal {
		chatModel = cfg.Ollama.ChatModel
	}
	if cfg.Retrieval.EmbedBaseURL == "" {
		embedModel = cfg.Retrieval.EmbedModel
	}
	if chatModel != "" || embedModel != "" {
		if err := ollama.EnsureReady(ctx, ollamaClient, chatModel, embedModel, os.Stderr); err != nil {
			return err
		}
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	llm, err := provider.New(&cfg)
	if err != nil {
		return err
	}
	slog.Info("LLM provider ready", "provider", llm.Name())

	embedder := retrieval.NewEmbedder(embeddingClient(cfg, ollamaClient), cfg.Retrieval.EmbedModel)
	vectors := retrieval.NewSQLiteStore(store.DB())
	if err := retrieval.Seed(ctx, embedder, vectors); err != nil {
		slog.Warn("seeding reference corpus failed, retrieval may be empty", "error", err)
	}
	retriever := retrieval.NewRetriever(embedder, vectors)

	comp := composer.New(cfg.LLM.ContextLength)
	tut := tutor.New(llm, retriever, comp, cfg.Retrieval.TopK)

	data := training.NewData(store)
	jobs := training.NewJobs(store)

	modelsDir := cfg.Training.OutputDir
	if modelsDir == "" {
		modelsDir = filepath.Join(cfg.Storage.DataDir, "models")
	}
	exportDir := filepath.Join(cfg.Storage.DataDir, "exports")

	runner := training.NewRunner(store, data, cfg.Training.TrainerCommand, modelsDir, exportDir, 2*time.Second)
	go runner.Run(ctx)

	token := cfg.Training.APIToken
	if token == "" {
		token, err = generateToken()
		if err != nil {
			return fmt.Errorf("generating training API token: %w", err)
		}
		slog.Info("generated training API token (set TRAINING_API_TOKEN to persist)", "token", token)
	}

	handler := api.NewHandler(api.Deps{
		Tutor:         tut,
		Provider:      llm,
		Data:          data,
		Jobs:          jobs,
		Embedder:      embedder,
		Vectors:       vectors,
		TrainingToken: token,
		ModelsDir:     modelsDir,
		ExportDir:     exportDir,
	})

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Tutor: tut, Searcher: retriever})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "lingo listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// embeddingClient picks the embedding backend: a hosted OpenAI-compatible
// endpoint when configured, the local Ollama instance otherwise.
func embeddingClient(cfg config.Config, ollamaClient *ollama.Client) retrieval.EmbeddingClient {
	if cfg.Retrieval.EmbedBaseURL != "" {
		return retrieval.NewOpenAIEmbedder(cfg.Retrieval.EmbedAPIKey, cfg.Retrieval.EmbedBaseURL)
	}
	return ollamaClient
}

func generateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
