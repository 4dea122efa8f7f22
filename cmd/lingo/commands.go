package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/lingo/internal/config"
	"github.com/kalambet/lingo/internal/ollama"
	"github.com/kalambet/lingo/internal/retrieval"
	"github.com/kalambet/lingo/internal/storage"
)

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lingo system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/health")
		if err != nil {
			printStatus("Server", "stopped")
		} else {
			var health struct {
				Status      string `json:"status"`
				LLMProvider string `json:"llm_provider"`
				LLMStatus   string `json:"llm_status"`
				RAGStatus   string `json:"rag_status"`
			}
			if err := decodeJSON(resp, &health); err != nil {
				printStatus("Server", "error: %v", err)
			} else {
				printStatus("Server", "%s on port %d", health.Status, cfg.Server.Port)
				printStatus("LLM", "%s (%s)", health.LLMProvider, health.LLMStatus)
				printStatus("Retrieval", "%s", health.RAGStatus)
			}
		}

		printStatus("Provider", "%s", cfg.LLM.Provider)
		if cfg.LLM.Provider == config.ProviderLocal {
			printStatus("Chat model", "%s", cfg.Ollama.ChatModel)
		} else {
			printStatus("Chat model", "%s", cfg.LLM.GroqModel)
		}
		printStatus("Embed model", "%s", cfg.Retrieval.EmbedModel)
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		return nil
	},
}

// --- seed ---

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the built-in grammar reference corpus",
	Long:  "Seed embeds the built-in grammar reference corpus into the vector\nstore. Safe to run repeatedly: existing entries are kept.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		embedder := retrieval.NewEmbedder(embeddingClient(cfg, ollama.New(cfg.Ollama.BaseURL)), cfg.Retrieval.EmbedModel)
		vectors := retrieval.NewSQLiteStore(store.DB())

		printStep("Embedding reference corpus...")
		if err := retrieval.Seed(cmd.Context(), embedder, vectors); err != nil {
			return fmt.Errorf("seeding corpus: %w", err)
		}

		count, err := vectors.Count()
		if err != nil {
			return err
		}
		printSuccess("Reference corpus ready (%d entries)", count)
		return nil
	},
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over the reference corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		language, _ := cmd.Flags().GetString("language")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/api/reference/search?q=%s&top_k=%d", url.QueryEscape(query), limit)
		if language != "" {
			path += "&target_language=" + url.QueryEscape(language)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result struct {
			Results []struct {
				ID       string  `json:"id"`
				Text     string  `json:"text"`
				Language string  `json:"language"`
				Category string  `json:"category"`
				Score    float32 `json:"score"`
			} `json:"results"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		for i, r := range result.Results {
			fmt.Printf("\n%s [%s/%s, score: %.3f]\n",
				colorize(colorBold, fmt.Sprintf("Result %d", i+1)), r.Language, r.Category, r.Score)
			text := r.Text
			if len(text) > 500 {
				text = text[:500] + "..."
			}
			fmt.Printf("  %s\n", text)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().String("language", "", "filter by target language")
	searchCmd.Flags().Int("limit", 5, "maximum number of results")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
