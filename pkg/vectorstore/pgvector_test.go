package vectorstore

import "testing"

func TestIsValidTableName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"Valid standard", "support_docs", true},
		{"Valid with underscore", "my_collection", true},
		{"Valid with numbers", "collection123", true},
		{"Valid short", "a", true},
		{"Valid max length", "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_", true}, // 63 chars
		{"Invalid start with number", "1collection", false},
		{"Invalid special chars", "collection-name", false},
		{"Invalid space", "collection name", false},
		{"Invalid SQL injection", "users; DROP TABLE support_docs", false},
		{"Invalid empty", "", false},
		{"Invalid too long", "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789__", false}, // 64 chars
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidTableName(tt.input); got != tt.expected {
				t.Errorf("isValidTableName(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMetadataString(t *testing.T) {
	metadata := map[string]interface{}{
		"source":      "guide.pdf",
		"chunk_index": float64(3),
	}

	if got := metadataString(metadata, "source"); got != "guide.pdf" {
		t.Errorf("metadataString(source) = %q, want %q", got, "guide.pdf")
	}
	if got := metadataString(metadata, "missing"); got != "" {
		t.Errorf("metadataString(missing) = %q, want empty", got)
	}
	// Non-string values should not be coerced
	if got := metadataString(metadata, "chunk_index"); got != "" {
		t.Errorf("metadataString(chunk_index) = %q, want empty", got)
	}
}
