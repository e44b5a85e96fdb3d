package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms/openai"
)

const defaultBatchSize = 10

// batchPause spaces out embedding batches to respect provider rate limits.
const batchPause = 100 * time.Millisecond

// NebiusEmbedder wraps the Nebius Studio OpenAI-compatible embeddings endpoint.
type NebiusEmbedder struct {
	client    *openai.LLM
	batchSize int
}

// NewNebiusEmbedder creates an embedder on top of a configured client.
func NewNebiusEmbedder(client *openai.LLM, batchSize int) *NebiusEmbedder {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &NebiusEmbedder{
		client:    client,
		batchSize: batchSize,
	}
}

// EmbedText generates an embedding for a single text
func (e *NebiusEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.client.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return vecs[0], nil
}

// EmbedTexts generates embeddings for multiple texts. Requests are issued in
// batches, strictly in sequence, with a short pause between batches.
func (e *NebiusEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vecs, err := e.client.CreateEmbedding(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch starting at %d: %w", i, err)
		}
		if len(vecs) != end-i {
			return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vecs), end-i)
		}
		result = append(result, vecs...)

		if end < len(texts) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(batchPause):
			}
		}
	}

	return result, nil
}
