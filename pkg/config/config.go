package config

import (
	"os"
	"strconv"
)

type Config struct {
	// Nebius Studio (OpenAI-compatible) provider
	NebiusApiKey  string
	NebiusBaseURL string
	LLMModel      string

	// Embeddings
	EmbeddingModel     string
	EmbeddingDimension int
	EmbeddingBatchSize int

	// Storage
	DatabaseURL    string
	CollectionName string

	// External tool providers
	ExaApiKey           string
	NotionApiKey        string
	NotionDatabaseID    string
	CalendlyApiKey      string
	CalendlyEventTypeID string
	KeywordsAiApiKey    string

	// Server
	Port string

	// Ingestion
	ChunkSize    int
	ChunkOverlap int

	// Retrieval and gating
	WebSearchLimit     int
	DocRetrievalLimit  int
	MinVectorRelevance float64

	// Tool-calling loop
	MaxToolRounds int
}

func Load() *Config {
	return &Config{
		NebiusApiKey:  getEnv("NEBIUS_API_KEY", ""),
		NebiusBaseURL: getEnv("NEBIUS_BASE_URL", "https://api.studio.nebius.ai/v1"),
		LLMModel:      getEnv("LLM_MODEL", "zai-org/GLM-4.5"),

		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "Qwen/Qwen3-Embedding-8B"),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 4096),
		EmbeddingBatchSize: getEnvAsInt("EMBEDDING_BATCH_SIZE", 10),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		CollectionName: getEnv("COLLECTION_NAME", "support_docs"),

		ExaApiKey:           getEnv("EXA_API_KEY", ""),
		NotionApiKey:        getEnv("NOTION_API_KEY", ""),
		NotionDatabaseID:    getEnv("NOTION_DATABASE_ID", ""),
		CalendlyApiKey:      getEnv("CALENDLY_API_KEY", ""),
		CalendlyEventTypeID: getEnv("CALENDLY_EVENT_TYPE_ID", ""),
		KeywordsAiApiKey:    getEnv("KEYWORDS_AI_API_KEY", ""),

		Port: getEnv("PORT", "8080"),

		ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 200),

		WebSearchLimit:     getEnvAsInt("WEB_SEARCH_LIMIT", 5),
		DocRetrievalLimit:  getEnvAsInt("DOC_RETRIEVAL_LIMIT", 5),
		MinVectorRelevance: getEnvAsFloat("MIN_VECTOR_RELEVANCE", 0.70),

		MaxToolRounds: getEnvAsInt("MAX_TOOL_ROUNDS", 8),
	}
}

// Validate reports which required settings are present.
func (c *Config) Validate() map[string]bool {
	return map[string]bool{
		"nebius_api_key": c.NebiusApiKey != "",
		"database_url":   c.DatabaseURL != "",
		"exa_api_key":    c.ExaApiKey != "",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
