package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/support-agent/pkg/agent"
	"github.com/mikeboe/support-agent/pkg/ingest"
	"github.com/mikeboe/support-agent/pkg/monitoring"
	"github.com/mikeboe/support-agent/pkg/tools"
	"github.com/mikeboe/support-agent/pkg/vectorstore"
)

const errorResponse = "Response generation failed. Please try again, or contact the support team directly."

// Chunker turns uploaded files into text chunks.
type Chunker interface {
	Process(ctx context.Context, files []ingest.File, chunkSize, chunkOverlap int) ([]ingest.Chunk, *ingest.Summary, error)
}

// Embedder produces vectors for chunk and query text.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists embedded chunks and answers similarity queries.
type ChunkStore interface {
	AddDocuments(ctx context.Context, docs []vectorstore.Document) error
	SimilaritySearch(ctx context.Context, embedding []float32, limit int) ([]vectorstore.RetrievalHit, error)
}

// Generator runs the tool-calling loop to produce the final answer.
type Generator interface {
	Generate(ctx context.Context, req agent.Request) (*agent.Result, error)
}

// Sink receives the structured log of a completed run.
type Sink interface {
	Send(ctx context.Context, rec monitoring.Record) error
}

// Defaults are the process-wide fallbacks for per-run options.
type Defaults struct {
	ChunkSize          int
	ChunkOverlap       int
	WebSearchLimit     int
	DocRetrievalLimit  int
	MinVectorRelevance float64
}

// Workflow sequences ingestion, retrieval, generation, and monitoring over
// one RunState. Stage failures degrade the run but never abort it; only the
// generation stage can mark a run as failed.
type Workflow struct {
	chunker   Chunker
	embedder  Embedder
	store     ChunkStore
	generator Generator
	sink      Sink
	modelName string
	defaults  Defaults
	logger    *slog.Logger
}

func New(chunker Chunker, embedder Embedder, store ChunkStore, generator Generator, sink Sink, modelName string, defaults Defaults, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		generator: generator,
		sink:      sink,
		modelName: modelName,
		defaults:  defaults,
		logger:    logger,
	}
}

// Run executes the full pipeline. It never returns an error; failures are
// recorded on the returned RunState.
func (w *Workflow) Run(ctx context.Context, query string, files []ingest.File, opts Options) *RunState {
	state := w.newRunState(query, files, opts)
	base := w.logger
	if opts.Logger != nil {
		base = opts.Logger
	}
	logger := base.With("run_id", state.RunID.String(), "run_reason", state.RunReason)
	logger.Info("Starting support run", "query_length", len(query), "uploaded_files", len(files))

	w.ingestStage(ctx, state, logger)
	w.retrieveStage(ctx, state, logger)
	w.generateStage(ctx, state, opts, logger)
	w.monitorStage(ctx, state, logger)

	state.EndTime = time.Now()
	if state.Stats != nil {
		state.Stats.TotalProcessingTime = state.EndTime.Sub(state.StartTime).Seconds()
	}
	logger.Info("Support run finished", "failed", state.Failed(), "duration", state.EndTime.Sub(state.StartTime))
	return state
}

func (w *Workflow) newRunState(query string, files []ingest.File, opts Options) *RunState {
	runID := opts.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}
	state := &RunState{
		RunID:              runID,
		Query:              query,
		UploadedFiles:      files,
		UserEmail:          opts.UserEmail,
		RunReason:          opts.RunReason,
		ChunkSize:          opts.ChunkSize,
		ChunkOverlap:       opts.ChunkOverlap,
		WebSearchLimit:     opts.WebSearchLimit,
		DocRetrievalLimit:  opts.DocRetrievalLimit,
		MinVectorRelevance: w.defaults.MinVectorRelevance,
		StartTime:          time.Now(),
	}
	if state.RunReason == "" {
		state.RunReason = "chat"
	}
	if state.ChunkSize <= 0 {
		state.ChunkSize = w.defaults.ChunkSize
	}
	if state.ChunkOverlap <= 0 {
		state.ChunkOverlap = w.defaults.ChunkOverlap
	}
	if state.WebSearchLimit <= 0 {
		state.WebSearchLimit = w.defaults.WebSearchLimit
	}
	if state.DocRetrievalLimit <= 0 {
		state.DocRetrievalLimit = w.defaults.DocRetrievalLimit
	}
	if opts.MinVectorRelevance != nil {
		state.MinVectorRelevance = *opts.MinVectorRelevance
	}
	return state
}

// ingestStage chunks, embeds, and stores uploaded files. Failures are
// recorded but never block answering the question.
func (w *Workflow) ingestStage(ctx context.Context, state *RunState, logger *slog.Logger) {
	if len(state.UploadedFiles) == 0 {
		return
	}

	chunks, summary, err := w.chunker.Process(ctx, state.UploadedFiles, state.ChunkSize, state.ChunkOverlap)
	if err != nil {
		state.Error = fmt.Sprintf("document processing failed: %v", err)
		logger.Error("Document processing failed", "error", err)
		return
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := w.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		state.Error = fmt.Sprintf("document embedding failed: %v", err)
		logger.Error("Document embedding failed", "error", err)
		return
	}

	docs := make([]vectorstore.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = vectorstore.Document{
			Content: c.Content,
			Metadata: map[string]interface{}{
				"source":       c.Source,
				"document_id":  c.DocumentID,
				"chunk_index":  c.ChunkIndex,
				"file_type":    c.FileType,
				"total_chunks": c.TotalChunks,
				"ingested_at":  c.IngestedAt.Format(time.RFC3339),
			},
			Embedding: vectors[i],
		}
	}
	if err := w.store.AddDocuments(ctx, docs); err != nil {
		state.Error = fmt.Sprintf("document storage failed: %v", err)
		logger.Error("Document storage failed", "error", err)
		return
	}

	state.ProcessedDocs = summary
	logger.Info("Ingested uploaded documents", "chunks", len(chunks), "batch_id", summary.BatchID)
}

// retrieveStage embeds the query and fetches similar chunks. Any failure is
// downgraded to empty results with zero relevance.
func (w *Workflow) retrieveStage(ctx context.Context, state *RunState, logger *slog.Logger) {
	vec, err := w.embedder.EmbedText(ctx, state.Query)
	if err != nil {
		logger.Warn("Query embedding failed, continuing without retrieval", "error", err)
		state.RetrievedDocs = nil
		state.AvgVectorRelevance = 0.0
		return
	}

	hits, err := w.store.SimilaritySearch(ctx, vec, state.DocRetrievalLimit)
	if err != nil {
		logger.Warn("Similarity search failed, continuing without retrieval", "error", err)
		state.RetrievedDocs = nil
		state.AvgVectorRelevance = 0.0
		return
	}

	state.RetrievedDocs = hits
	state.AvgVectorRelevance = ComputeRelevance(hits)
	logger.Info("Retrieved context", "hits", len(hits), "avg_relevance", state.AvgVectorRelevance)
}

func (w *Workflow) generateStage(ctx context.Context, state *RunState, opts Options, logger *slog.Logger) {
	threshold := state.MinVectorRelevance
	res, err := w.generator.Generate(ctx, agent.Request{
		Query:              state.Query,
		Context:            opts.SearchContext,
		RetrievedDocs:      state.RetrievedDocs,
		AvgVectorRelevance: state.AvgVectorRelevance,
		MinVectorRelevance: &threshold,
		WebSearchLimit:     state.WebSearchLimit,
		UserEmail:          state.UserEmail,
		Session:            opts.Session,
	})
	if err != nil {
		state.Error = fmt.Sprintf("response generation failed: %v", err)
		state.FinalResponse = errorResponse
		logger.Error("Response generation failed", "error", err)
		return
	}

	state.FinalResponse = res.Content
	state.Stats = &Stats{
		SearchResultsCount: res.SearchResultsCount,
		RetrievedDocsCount: len(state.RetrievedDocs),
		GenerationTime:     res.GenerationTime,
		ToolCallsMade:      res.ToolCallsMade,
		ToolsUsed:          res.ToolsUsed,
		WebSources:         res.WebSources,
		WebSearchLimit:     state.WebSearchLimit,
		DocRetrievalLimit:  state.DocRetrievalLimit,
		AvgVectorRelevance: state.AvgVectorRelevance,
		MinVectorRelevance: state.MinVectorRelevance,
		RunReason:          state.RunReason,
	}
}

// monitorStage ships the run record to the sink. Skipped for failed or
// empty runs; sink errors are logged and swallowed.
func (w *Workflow) monitorStage(ctx context.Context, state *RunState, logger *slog.Logger) {
	if state.Failed() || state.FinalResponse == "" {
		logger.Debug("Skipping monitoring", "failed", state.Failed())
		return
	}
	if w.sink == nil {
		return
	}

	rec := monitoring.NewRecord(w.modelName, state.Query, state.FinalResponse, generationTime(state), contextSources(state))
	if err := w.sink.Send(ctx, rec); err != nil {
		logger.Warn("Monitoring record delivery failed", "error", err)
	}
}

func generationTime(state *RunState) float64 {
	if state.Stats == nil {
		return 0
	}
	return state.Stats.GenerationTime
}

// contextSources names where the answer's context came from.
func contextSources(state *RunState) []string {
	var sources []string
	if state.Stats != nil && containsTool(state.Stats.ToolsUsed, tools.WebSearchToolName) {
		sources = append(sources, "web_search")
	}
	if len(state.RetrievedDocs) > 0 {
		sources = append(sources, "vector_database")
	}
	if state.ProcessedDocs != nil {
		sources = append(sources, "uploaded_documents")
	}
	return sources
}

func containsTool(used []string, name string) bool {
	for _, u := range used {
		if u == name {
			return true
		}
	}
	return false
}
