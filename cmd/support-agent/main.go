package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/support-agent/pkg/agent"
	"github.com/mikeboe/support-agent/pkg/clients"
	"github.com/mikeboe/support-agent/pkg/config"
	"github.com/mikeboe/support-agent/pkg/database"
	"github.com/mikeboe/support-agent/pkg/embeddings"
	"github.com/mikeboe/support-agent/pkg/ingest"
	"github.com/mikeboe/support-agent/pkg/monitoring"
	"github.com/mikeboe/support-agent/pkg/tools"
	"github.com/mikeboe/support-agent/pkg/vectorstore"
	"github.com/mikeboe/support-agent/pkg/workflow"
)

var (
	query     string
	userEmail string
)

type app struct {
	cfg *config.Config
	db  *database.PostgresDB
	wf  *workflow.Workflow
}

func setup(ctx context.Context, logger *slog.Logger) (*app, error) {
	cfg := config.Load()
	for setting, present := range cfg.Validate() {
		if !present {
			logger.Warn("Missing configuration", "setting", setting)
		}
	}
	if cfg.NebiusApiKey == "" {
		return nil, fmt.Errorf("NEBIUS_API_KEY is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureVectorExtension(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.CreateChunksTable(ctx, cfg.CollectionName, cfg.EmbeddingDimension); err != nil {
		db.Close()
		return nil, err
	}

	chatClient, err := clients.NebiusChat(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	embedClient, err := clients.NebiusEmbeddings(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	store, err := vectorstore.NewPGVectorStore(db.Pool, cfg.CollectionName)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry := tools.NewRegistry(tools.NewWebSearchTool(cfg.ExaApiKey, cfg.WebSearchLimit, logger))
	if cfg.NotionApiKey != "" && cfg.NotionDatabaseID != "" {
		registry.Register(tools.NewTicketTool(cfg.NotionApiKey, cfg.NotionDatabaseID))
	}
	if cfg.CalendlyApiKey != "" && cfg.CalendlyEventTypeID != "" {
		registry.Register(tools.NewBookingTool(cfg.CalendlyApiKey, cfg.CalendlyEventTypeID))
	}

	loop := agent.NewLoop(chatClient, registry, cfg.MaxToolRounds, cfg.MinVectorRelevance, cfg.WebSearchLimit, logger)

	wf := workflow.New(
		ingest.NewProcessor(logger),
		embeddings.NewNebiusEmbedder(embedClient, cfg.EmbeddingBatchSize),
		store,
		loop,
		monitoring.NewKeywordsAI(cfg.KeywordsAiApiKey, logger),
		cfg.LLMModel,
		workflow.Defaults{
			ChunkSize:          cfg.ChunkSize,
			ChunkOverlap:       cfg.ChunkOverlap,
			WebSearchLimit:     cfg.WebSearchLimit,
			DocRetrievalLimit:  cfg.DocRetrievalLimit,
			MinVectorRelevance: cfg.MinVectorRelevance,
		},
		logger,
	)

	return &app{cfg: cfg, db: db, wf: wf}, nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		// Fine if .env is missing, env vars may be set directly
	}

	rootCmd := &cobra.Command{
		Use:   "support-agent",
		Short: "A retrieval-augmented support assistant",
		Long:  `support-agent answers product questions from ingested documentation, falling back to web search, and can open tickets or booking links on request.`,
	}

	askCmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask the support assistant a question",
		Run: func(cmd *cobra.Command, args []string) {
			if !cmd.Flags().Changed("query") {
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("Enter your question: ")
				input, _ := reader.ReadString('\n')
				query = strings.TrimSpace(input)
			}
			if query == "" {
				slog.Error("Question cannot be empty")
				os.Exit(1)
			}

			ctx := context.Background()
			a, err := setup(ctx, logger)
			if err != nil {
				slog.Error("Failed to initialize", "error", err)
				os.Exit(1)
			}
			defer a.db.Close()

			state := a.wf.Run(ctx, query, nil, workflow.Options{
				UserEmail: userEmail,
				RunReason: "cli",
			})
			if state.Failed() {
				slog.Error("Run failed", "error", state.Error)
			}
			fmt.Println()
			fmt.Println(state.FinalResponse)
			if state.Stats != nil {
				fmt.Printf("\n(retrieved_docs=%d, avg_relevance=%.3f, tools=%v)\n",
					state.Stats.RetrievedDocsCount, state.Stats.AvgVectorRelevance, state.Stats.ToolsUsed)
			}
		},
	}
	askCmd.Flags().StringVarP(&query, "query", "q", "", "Question to ask")
	askCmd.Flags().StringVarP(&userEmail, "email", "e", "", "User email forwarded to tools")

	ingestCmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest documents into the vector store",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var files []ingest.File
			for _, path := range args {
				content, err := os.ReadFile(path)
				if err != nil {
					slog.Error("Failed to read file", "path", path, "error", err)
					os.Exit(1)
				}
				files = append(files, ingest.File{Name: filepath.Base(path), Content: content})
			}

			ctx := context.Background()
			a, err := setup(ctx, logger)
			if err != nil {
				slog.Error("Failed to initialize", "error", err)
				os.Exit(1)
			}
			defer a.db.Close()

			state := a.wf.Run(ctx, "Summarize the uploaded documents.", files, workflow.Options{
				RunReason: "document_upload",
			})
			if state.Failed() {
				slog.Error("Ingestion failed", "error", state.Error)
				os.Exit(1)
			}
			if state.ProcessedDocs != nil {
				fmt.Printf("Ingested %d documents as %d chunks (batch %s)\n",
					state.ProcessedDocs.TotalDocuments, state.ProcessedDocs.TotalChunks, state.ProcessedDocs.BatchID)
			}
			fmt.Println()
			fmt.Println(state.FinalResponse)
		},
	}

	rootCmd.AddCommand(askCmd, ingestCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
