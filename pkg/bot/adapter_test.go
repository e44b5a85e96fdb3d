package bot

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mikeboe/support-agent/pkg/tools"
)

func TestFormatResponseStripsMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"header", "## Getting started\nBody", "Getting started\nBody"},
		{"bold", "this is **important** text", "this is *important* text"},
		{"italic", "an *emphasized* word", "an _emphasized_ word"},
		{"fence language", "```python\nprint(1)\n```", "```\nprint(1)\n```"},
		{"plain", "nothing to change", "nothing to change"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatResponse(tt.in); got != tt.want {
				t.Errorf("FormatResponse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatResponseTruncates(t *testing.T) {
	long := strings.Repeat("a", 4000)
	got := FormatResponse(long)
	if !strings.HasSuffix(got, "... (truncated)") {
		t.Error("long responses must carry the truncation marker")
	}
	if len(got) > maxResponseLength+len("... (truncated)") {
		t.Errorf("truncated response too long: %d", len(got))
	}
}

func TestFormatResponseTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("ü", maxResponseLength+100)
	got := FormatResponse(long)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got[:20])
	}
	if !strings.HasSuffix(got, "... (truncated)") {
		t.Error("long responses must carry the truncation marker")
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(got, "... (truncated)")); n != maxResponseLength {
		t.Errorf("kept %d runes, want %d", n, maxResponseLength)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in       string
		replaced bool
	}{
		{"Here is your answer.", false},
		{"Response generation failed. Please try again.", true},
		{"Error code: 404 - model not found", true},
		{"The model gpt-9 does not exist", true},
	}
	for _, tt := range tests {
		got := Sanitize(tt.in)
		if tt.replaced && got != unavailableMessage {
			t.Errorf("Sanitize(%q) should replace with the generic message, got %q", tt.in, got)
		}
		if !tt.replaced && got != tt.in {
			t.Errorf("Sanitize(%q) altered clean text: %q", tt.in, got)
		}
	}
}

func TestSourcesBlockCapsAtFive(t *testing.T) {
	var sources []tools.WebSource
	for i := 0; i < 8; i++ {
		sources = append(sources, tools.WebSource{Title: "Doc", URL: "https://docs.nebius.com/x"})
	}
	block := SourcesBlock("short answer", sources)
	if got := strings.Count(block, "•"); got != maxSources {
		t.Errorf("sources rendered = %d, want %d", got, maxSources)
	}
	if !strings.Contains(block, "<https://docs.nebius.com/x|Doc>") {
		t.Errorf("missing slack link format: %q", block)
	}
}

func TestSourcesBlockEmptyCases(t *testing.T) {
	if SourcesBlock("answer", nil) != "" {
		t.Error("no sources must render nothing")
	}
	long := strings.Repeat("a", maxMessageBudget)
	if SourcesBlock(long, []tools.WebSource{{Title: "t", URL: "https://u"}}) != "" {
		t.Error("sources must be dropped when the message budget is exceeded")
	}
}

func TestSourcesBlockDefaultsTitle(t *testing.T) {
	block := SourcesBlock("a", []tools.WebSource{{Title: "  ", URL: "https://u"}})
	if !strings.Contains(block, "|Source>") {
		t.Errorf("blank titles should fall back to Source: %q", block)
	}
}

func TestThreadQuery(t *testing.T) {
	if got := ThreadQuery("", "new question"); got != "new question" {
		t.Errorf("no thread context should pass the text through, got %q", got)
	}
	got := ThreadQuery("user: earlier question\nassistant: earlier answer", "followup")
	if !strings.Contains(got, "earlier answer") || !strings.Contains(got, "New question: followup") {
		t.Errorf("thread context missing: %q", got)
	}
}
