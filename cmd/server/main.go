package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mikeboe/support-agent/pkg/agent"
	"github.com/mikeboe/support-agent/pkg/clients"
	"github.com/mikeboe/support-agent/pkg/config"
	"github.com/mikeboe/support-agent/pkg/database"
	"github.com/mikeboe/support-agent/pkg/embeddings"
	"github.com/mikeboe/support-agent/pkg/ingest"
	"github.com/mikeboe/support-agent/pkg/monitoring"
	"github.com/mikeboe/support-agent/pkg/server"
	"github.com/mikeboe/support-agent/pkg/tools"
	"github.com/mikeboe/support-agent/pkg/vectorstore"
	"github.com/mikeboe/support-agent/pkg/workflow"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	for setting, present := range cfg.Validate() {
		if !present {
			logger.Warn("Missing configuration", "setting", setting)
		}
	}
	if cfg.NebiusApiKey == "" {
		log.Fatal("NEBIUS_API_KEY is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()

	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.EnsureVectorExtension(ctx); err != nil {
		log.Fatalf("Failed to enable pgvector: %v", err)
	}
	if err := db.CreateChunksTable(ctx, cfg.CollectionName, cfg.EmbeddingDimension); err != nil {
		log.Fatalf("Failed to create chunks table: %v", err)
	}
	if err := db.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	chatClient, err := clients.NebiusChat(cfg)
	if err != nil {
		log.Fatalf("Failed to create chat client: %v", err)
	}
	embedClient, err := clients.NebiusEmbeddings(cfg)
	if err != nil {
		log.Fatalf("Failed to create embeddings client: %v", err)
	}

	store, err := vectorstore.NewPGVectorStore(db.Pool, cfg.CollectionName)
	if err != nil {
		log.Fatalf("Failed to create vector store: %v", err)
	}

	registry := tools.NewRegistry(tools.NewWebSearchTool(cfg.ExaApiKey, cfg.WebSearchLimit, logger))
	if cfg.NotionApiKey != "" && cfg.NotionDatabaseID != "" {
		registry.Register(tools.NewTicketTool(cfg.NotionApiKey, cfg.NotionDatabaseID))
	} else {
		logger.Warn("Notion not configured, ticket creation disabled")
	}
	if cfg.CalendlyApiKey != "" && cfg.CalendlyEventTypeID != "" {
		registry.Register(tools.NewBookingTool(cfg.CalendlyApiKey, cfg.CalendlyEventTypeID))
	} else {
		logger.Warn("Calendly not configured, booking links disabled")
	}

	loop := agent.NewLoop(chatClient, registry, cfg.MaxToolRounds, cfg.MinVectorRelevance, cfg.WebSearchLimit, logger)
	sink := monitoring.NewKeywordsAI(cfg.KeywordsAiApiKey, logger)

	wf := workflow.New(
		ingest.NewProcessor(logger),
		embeddings.NewNebiusEmbedder(embedClient, cfg.EmbeddingBatchSize),
		store,
		loop,
		sink,
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

	svc := server.NewService(db, wf, logger)
	handler := server.NewHandler(svc, store, agent.NewSessionStore())

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	fmt.Printf("Server starting on port %s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
