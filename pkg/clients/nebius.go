package clients

import (
	"fmt"

	"github.com/mikeboe/support-agent/pkg/config"
	"github.com/tmc/langchaingo/llms/openai"
)

// NebiusChat returns a chat model backed by the Nebius Studio
// OpenAI-compatible endpoint.
func NebiusChat(cfg *config.Config) (*openai.LLM, error) {
	if cfg.NebiusApiKey == "" {
		return nil, fmt.Errorf("NEBIUS_API_KEY is not set")
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.NebiusBaseURL),
		openai.WithToken(cfg.NebiusApiKey),
		openai.WithModel(cfg.LLMModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Nebius chat client: %w", err)
	}
	return llm, nil
}

// NebiusEmbeddings returns a client configured for the embeddings endpoint.
func NebiusEmbeddings(cfg *config.Config) (*openai.LLM, error) {
	if cfg.NebiusApiKey == "" {
		return nil, fmt.Errorf("NEBIUS_API_KEY is not set")
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.NebiusBaseURL),
		openai.WithToken(cfg.NebiusApiKey),
		openai.WithModel(cfg.LLMModel),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Nebius embeddings client: %w", err)
	}
	return llm, nil
}
