package workflow

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/support-agent/pkg/agent"
	"github.com/mikeboe/support-agent/pkg/ingest"
	"github.com/mikeboe/support-agent/pkg/tools"
	"github.com/mikeboe/support-agent/pkg/vectorstore"
)

// Options tune a single run. Zero values fall back to process-wide defaults.
type Options struct {
	RunID              uuid.UUID
	Logger             *slog.Logger
	ChunkSize          int
	ChunkOverlap       int
	WebSearchLimit     int
	DocRetrievalLimit  int
	MinVectorRelevance *float64
	UserEmail          string
	RunReason          string
	SearchContext      []tools.SearchResult
	Session            *agent.Session
}

// Stats is the telemetry block attached to a completed run.
type Stats struct {
	SearchResultsCount  int               `json:"search_results_count"`
	RetrievedDocsCount  int               `json:"retrieved_docs_count"`
	GenerationTime      float64           `json:"generation_time"`
	TotalProcessingTime float64           `json:"total_processing_time"`
	ToolCallsMade       bool              `json:"tool_calls_made"`
	ToolsUsed           []string          `json:"tools_used"`
	WebSources          []tools.WebSource `json:"web_sources"`
	WebSearchLimit      int               `json:"web_search_limit"`
	DocRetrievalLimit   int               `json:"doc_retrieval_limit"`
	AvgVectorRelevance  float64           `json:"avg_vector_relevance"`
	MinVectorRelevance  float64           `json:"min_vector_relevance"`
	RunReason           string            `json:"run_reason"`
}

// RunState is owned by the orchestrator for the duration of one run and
// returned to the caller when the pipeline ends.
type RunState struct {
	RunID              uuid.UUID
	Query              string
	UploadedFiles      []ingest.File
	UserEmail          string
	RunReason          string
	ChunkSize          int
	ChunkOverlap       int
	WebSearchLimit     int
	DocRetrievalLimit  int
	MinVectorRelevance float64
	RetrievedDocs      []vectorstore.RetrievalHit
	AvgVectorRelevance float64
	ProcessedDocs      *ingest.Summary
	FinalResponse      string
	Error              string
	StartTime          time.Time
	EndTime            time.Time
	Stats              *Stats
}

func (s *RunState) Failed() bool { return s.Error != "" }
