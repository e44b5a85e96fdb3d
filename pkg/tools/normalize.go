package tools

import "strings"

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Source  string  `json:"source,omitempty"`
}

// WebSource is a {title, url} pair surfaced to callers for attribution.
type WebSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// NormalizeSearchPayload flattens the container shapes a search tool may
// return: a plain list, or an object keyed by "results" or "items". Unknown
// shapes normalize to nil. This runs once at the tool boundary; nothing
// downstream sniffs shapes.
func NormalizeSearchPayload(payload interface{}) []SearchResult {
	switch v := payload.(type) {
	case []SearchResult:
		return v
	case []interface{}:
		return resultsFromList(v)
	case map[string]interface{}:
		if arr, ok := v["results"].([]interface{}); ok {
			return resultsFromList(arr)
		}
		if arr, ok := v["items"].([]interface{}); ok {
			return resultsFromList(arr)
		}
	}
	return nil
}

// Sources extracts {title, url} attribution pairs, skipping entries
// without a URL.
func Sources(results []SearchResult) []WebSource {
	var sources []WebSource
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = "Source"
		}
		sources = append(sources, WebSource{Title: title, URL: r.URL})
	}
	return sources
}

func resultsFromList(list []interface{}) []SearchResult {
	var results []SearchResult
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		r := SearchResult{
			Title:   stringField(m, "title"),
			URL:     stringField(m, "url"),
			Content: stringField(m, "content"),
			Source:  stringField(m, "source"),
		}
		if score, ok := m["score"].(float64); ok {
			r.Score = score
		}
		results = append(results, r)
	}
	return results
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
