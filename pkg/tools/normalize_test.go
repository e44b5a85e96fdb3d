package tools

import (
	"context"
	"errors"
	"testing"
)

func TestNormalizeSearchPayload(t *testing.T) {
	item := map[string]interface{}{
		"title":   "Billing FAQ",
		"url":     "https://example.com/billing",
		"content": "How invoices work.",
		"score":   0.91,
	}

	tests := []struct {
		name    string
		payload interface{}
		want    int
	}{
		{"top-level list", []interface{}{item, item}, 2},
		{"results key", map[string]interface{}{"results": []interface{}{item}}, 1},
		{"items key", map[string]interface{}{"items": []interface{}{item, item, item}}, 3},
		{"typed slice", []SearchResult{{Title: "A", URL: "https://a"}}, 1},
		{"unknown shape", map[string]interface{}{"data": []interface{}{item}}, 0},
		{"scalar", "not a container", 0},
		{"nil", nil, 0},
		{"list with junk entries", []interface{}{item, "junk", 42}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeSearchPayload(tt.payload)
			if len(got) != tt.want {
				t.Errorf("NormalizeSearchPayload() returned %d results, want %d", len(got), tt.want)
			}
		})
	}
}

func TestNormalizeSearchPayloadFields(t *testing.T) {
	payload := map[string]interface{}{
		"results": []interface{}{
			map[string]interface{}{
				"title": "Quota limits",
				"url":   "https://example.com/quota",
				"score": 0.5,
			},
		},
	}

	got := NormalizeSearchPayload(payload)
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].Title != "Quota limits" || got[0].URL != "https://example.com/quota" || got[0].Score != 0.5 {
		t.Errorf("unexpected result: %+v", got[0])
	}
}

func TestSources(t *testing.T) {
	results := []SearchResult{
		{Title: "  Padded  ", URL: "https://a.example"},
		{Title: "", URL: "https://b.example"},
		{Title: "No URL", URL: ""},
	}

	sources := Sources(results)
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2 (URL-less entry skipped)", len(sources))
	}
	if sources[0].Title != "Padded" {
		t.Errorf("title not trimmed: %q", sources[0].Title)
	}
	if sources[1].Title != "Source" {
		t.Errorf("empty title should default to Source, got %q", sources[1].Title)
	}
}

func TestRegistryLookupAndOrder(t *testing.T) {
	search := NewWebSearchTool("key", 5, nil)
	ticket := NewTicketTool("key", "db")
	booking := NewBookingTool("key", "event")

	r := NewRegistry(search, ticket, booking)

	if r.Len() != 3 {
		t.Fatalf("registry size = %d, want 3", r.Len())
	}
	if _, ok := r.Lookup(WebSearchToolName); !ok {
		t.Error("web_search not found")
	}
	if _, ok := r.Lookup("no_such_tool"); ok {
		t.Error("unexpected tool found")
	}

	defs := r.Definitions()
	wantOrder := []string{WebSearchToolName, TicketToolName, BookingToolName}
	for i, def := range defs {
		if def.Function.Name != wantOrder[i] {
			t.Errorf("definition %d = %q, want %q", i, def.Function.Name, wantOrder[i])
		}
	}
}

func TestWebSearchToolRejectsEmptyQuery(t *testing.T) {
	tool := NewWebSearchTool("key", 5, nil)

	_, err := tool.Invoke(context.Background(), map[string]interface{}{"query": "   "})
	var argErr *ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("expected ArgumentError, got %v", err)
	}
}

func TestTicketToolValidation(t *testing.T) {
	tool := NewTicketTool("key", "db")

	_, err := tool.Invoke(context.Background(), map[string]interface{}{
		"name": "VM will not boot",
	})
	var argErr *ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("expected ArgumentError for missing fields, got %v", err)
	}
}

func TestAcceptedTags(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  int
	}{
		{"default when absent", nil, 1},
		{"known tag kept", []interface{}{"Other"}, 1},
		{"unknown tag dropped", []interface{}{"Nonsense"}, 0},
		{"single string", "Other", 1},
		{"mixed", []interface{}{"Other", "Nonsense", "AI-Studio-Requests"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := acceptedTags(tt.input); len(got) != tt.want {
				t.Errorf("acceptedTags(%v) = %v, want %d entries", tt.input, got, tt.want)
			}
		})
	}
}
