package tools

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

	"github.com/tmc/langchaingo/llms"
)

const exaSearchURL = "https://api.exa.ai/search"

// Domains searched first so product documentation outranks general results.
var priorityDomains = []string{
	"studio.nebius.com",
	"docs.studio.nebius.com",
	"docs.nebius.com/studio",
}

// WebSearchTool queries the Exa search API, prioritizing product
// documentation domains and falling back to the general web.
type WebSearchTool struct {
	apiKey       string
	defaultLimit int
	client       *http.Client
	logger       *slog.Logger
}

func NewWebSearchTool(apiKey string, defaultLimit int, logger *slog.Logger) *WebSearchTool {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSearchTool{
		apiKey:       apiKey,
		defaultLimit: defaultLimit,
		client:       &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
}

func (t *WebSearchTool) Name() string { return WebSearchToolName }

func (t *WebSearchTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        WebSearchToolName,
			Description: "Search the web for product-related information when local documentation is insufficient.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "The search query.",
					},
					"num_results": map[string]interface{}{
						"type":        "integer",
						"description": "Number of results to return.",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

func (t *WebSearchTool) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, &ArgumentError{Tool: WebSearchToolName, Reason: "query must be a non-empty string"}
	}

	limit := t.defaultLimit
	if n, ok := args["num_results"].(float64); ok && int(n) > 0 {
		limit = int(n)
	}

	return t.Search(ctx, query, limit)
}

// Search runs the prioritized two-step query: product domains first, then a
// general search for whatever the first step did not fill.
func (t *WebSearchTool) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	t.logger.Info("Web search", "query", query, "num_results", limit)

	results, err := t.searchExa(ctx, query, limit, priorityDomains)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Source = "product_search"
	}

	if len(results) < limit {
		general, err := t.searchExa(ctx, query, limit-len(results), nil)
		if err != nil {
			// Partial results beat an error once the priority pass succeeded
			t.logger.Warn("General web search failed", "error", err)
			return results, nil
		}
		for i := range general {
			general[i].Source = "web_search"
		}
		results = append(results, general...)
	}

	t.logger.Info("Web search complete", "returned", len(results))
	return results, nil
}

type exaRequest struct {
	Query          string          `json:"query"`
	NumResults     int             `json:"numResults"`
	Contents       map[string]bool `json:"contents"`
	IncludeDomains []string        `json:"includeDomains,omitempty"`
}

type exaResult struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type exaResponse struct {
	Results []exaResult `json:"results"`
}

func (t *WebSearchTool) searchExa(ctx context.Context, query string, numResults int, domains []string) ([]SearchResult, error) {
	if t.apiKey == "" {
		return nil, fmt.Errorf("EXA_API_KEY is not set")
	}

	body, err := json.Marshal(exaRequest{
		Query:          query,
		NumResults:     numResults,
		Contents:       map[string]bool{"text": true},
		IncludeDomains: domains,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, exaSearchURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed exaResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search response: %w", err)
	}

	results := make([]SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		title := r.Title
		if title == "" {
			title = "No Title"
		}
		results = append(results, SearchResult{
			Title:   title,
			URL:     r.URL,
			Content: r.Text,
			Score:   r.Score,
		})
	}
	return results, nil
}
