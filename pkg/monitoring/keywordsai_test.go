package monitoring

import (
	"context"
	"testing"
)

func TestApproxTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"how do I deploy a model", 6},
		{"line one\nline two", 4},
	}
	for _, tt := range tests {
		if got := ApproxTokens(tt.in); got != tt.want {
			t.Errorf("ApproxTokens(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNewRecordTokenSums(t *testing.T) {
	rec := NewRecord("glm-4.5", "two words", "three more words", 1.5, []string{"vector_database"})
	if rec.PromptTokens != 2 || rec.CompletionTokens != 3 {
		t.Errorf("token counts = %d/%d, want 2/3", rec.PromptTokens, rec.CompletionTokens)
	}
	if rec.TotalTokens != 5 {
		t.Errorf("TotalTokens = %d, want 5", rec.TotalTokens)
	}
	if rec.GenerationTime != 1.5 {
		t.Errorf("GenerationTime = %v", rec.GenerationTime)
	}
}

func TestSendDisabledIsNoop(t *testing.T) {
	sink := NewKeywordsAI("", nil)
	if sink.Enabled() {
		t.Fatal("sink with empty key must report disabled")
	}
	if err := sink.Send(context.Background(), Record{}); err != nil {
		t.Errorf("disabled Send should return nil, got %v", err)
	}
}
