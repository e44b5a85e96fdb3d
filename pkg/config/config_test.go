package config

import "testing"

func TestValidateReportsMissingSettings(t *testing.T) {
	t.Setenv("NEBIUS_API_KEY", "key")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("EXA_API_KEY", "")

	checks := Load().Validate()
	if !checks["nebius_api_key"] {
		t.Error("nebius_api_key should be reported present")
	}
	if checks["database_url"] {
		t.Error("database_url should be reported missing")
	}
	if checks["exa_api_key"] {
		t.Error("exa_api_key should be reported missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("MIN_VECTOR_RELEVANCE", "")
	t.Setenv("MAX_TOOL_ROUNDS", "")

	cfg := Load()
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Errorf("chunking defaults = %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.MinVectorRelevance != 0.70 {
		t.Errorf("MinVectorRelevance = %v, want 0.70", cfg.MinVectorRelevance)
	}
	if cfg.MaxToolRounds != 8 {
		t.Errorf("MaxToolRounds = %d, want 8", cfg.MaxToolRounds)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MIN_VECTOR_RELEVANCE", "0.55")
	t.Setenv("WEB_SEARCH_LIMIT", "3")

	cfg := Load()
	if cfg.MinVectorRelevance != 0.55 {
		t.Errorf("MinVectorRelevance = %v, want 0.55", cfg.MinVectorRelevance)
	}
	if cfg.WebSearchLimit != 3 {
		t.Errorf("WebSearchLimit = %d, want 3", cfg.WebSearchLimit)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")
	t.Setenv("MIN_VECTOR_RELEVANCE", "also-bad")

	cfg := Load()
	if cfg.ChunkSize != 1000 {
		t.Errorf("malformed CHUNK_SIZE should fall back to default, got %d", cfg.ChunkSize)
	}
	if cfg.MinVectorRelevance != 0.70 {
		t.Errorf("malformed MIN_VECTOR_RELEVANCE should fall back to default, got %v", cfg.MinVectorRelevance)
	}
}
