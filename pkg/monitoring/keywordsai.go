package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const keywordsAiURL = "https://api.keywordsai.co/api/request-logs/create/"

// Record is the structured log for one completed run. Token counts are
// word-count approximations, not tokenizer counts.
type Record struct {
	ModelUsed        string
	Prompt           string
	Completion       string
	GenerationTime   float64
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ContextSources   []string
}

// ApproxTokens estimates a token count by counting whitespace-separated
// words. Good enough for usage dashboards, not for billing.
func ApproxTokens(s string) int {
	return len(strings.Fields(s))
}

// NewRecord fills in the approximate token counts from the texts.
func NewRecord(model, prompt, completion string, generationTime float64, contextSources []string) Record {
	pt := ApproxTokens(prompt)
	ct := ApproxTokens(completion)
	return Record{
		ModelUsed:        model,
		Prompt:           prompt,
		Completion:       completion,
		GenerationTime:   generationTime,
		PromptTokens:     pt,
		CompletionTokens: ct,
		TotalTokens:      pt + ct,
		ContextSources:   contextSources,
	}
}

// KeywordsAI ships run records to the Keywords AI request-log endpoint.
// With no API key configured it is a silent no-op.
type KeywordsAI struct {
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewKeywordsAI(apiKey string, logger *slog.Logger) *KeywordsAI {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeywordsAI{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

func (k *KeywordsAI) Enabled() bool { return k.apiKey != "" }

type promptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type logPayload struct {
	Model             string            `json:"model"`
	PromptMessages    []promptMessage   `json:"prompt_messages"`
	CompletionMessage promptMessage     `json:"completion_message"`
	GenerationTime    float64           `json:"generation_time"`
	PromptTokens      int               `json:"prompt_tokens"`
	CompletionTokens  int               `json:"completion_tokens"`
	TotalTokens       int               `json:"total_tokens"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Send posts one record. Errors are returned for the caller to log; callers
// in the workflow swallow them.
func (k *KeywordsAI) Send(ctx context.Context, rec Record) error {
	if !k.Enabled() {
		k.logger.Debug("Keywords AI disabled, skipping request log")
		return nil
	}

	payload := logPayload{
		Model:             rec.ModelUsed,
		PromptMessages:    []promptMessage{{Role: "user", Content: rec.Prompt}},
		CompletionMessage: promptMessage{Role: "assistant", Content: rec.Completion},
		GenerationTime:    rec.GenerationTime,
		PromptTokens:      rec.PromptTokens,
		CompletionTokens:  rec.CompletionTokens,
		TotalTokens:       rec.TotalTokens,
	}
	if len(rec.ContextSources) > 0 {
		payload.Metadata = map[string]string{
			"context_sources": strings.Join(rec.ContextSources, ","),
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode monitoring payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, keywordsAiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build monitoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+k.apiKey)

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("monitoring request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("monitoring endpoint returned status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}
