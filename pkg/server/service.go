package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/support-agent/pkg/agent"
	"github.com/mikeboe/support-agent/pkg/bot"
	"github.com/mikeboe/support-agent/pkg/database"
	"github.com/mikeboe/support-agent/pkg/ingest"
	"github.com/mikeboe/support-agent/pkg/workflow"
)

// SessionLookup resolves a conversation id to its session. Satisfied by
// agent.SessionStore.
type SessionLookup interface {
	Get(id string) *agent.Session
}

type Service struct {
	DB       *database.PostgresDB
	Workflow *workflow.Workflow
	Logger   *slog.Logger
}

func NewService(db *database.PostgresDB, wf *workflow.Workflow, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		DB:       db,
		Workflow: wf,
		Logger:   logger,
	}
}

// Run is one persisted workflow execution.
type Run struct {
	ID        uuid.UUID       `json:"id"`
	Query     string          `json:"query"`
	RunReason string          `json:"run_reason"`
	UserEmail *string         `json:"user_email,omitempty"`
	Status    string          `json:"status"`
	Response  *string         `json:"response,omitempty"`
	Error     *string         `json:"error,omitempty"`
	Stats     json.RawMessage `json:"stats,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type ChatRequest struct {
	Query              string   `json:"query"`
	UserEmail          string   `json:"user_email"`
	ConversationID     string   `json:"conversation_id"`
	ThreadContext      string   `json:"thread_context"`
	Format             string   `json:"format"`
	RunReason          string   `json:"run_reason"`
	WebSearchLimit     int      `json:"web_search_limit"`
	DocRetrievalLimit  int      `json:"doc_retrieval_limit"`
	MinVectorRelevance *float64 `json:"min_vector_relevance"`
}

// Chat runs the full workflow for one question and persists the outcome.
func (s *Service) Chat(ctx context.Context, req ChatRequest, sessions SessionLookup) (*workflow.RunState, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	query := bot.ThreadQuery(req.ThreadContext, req.Query)

	runID := uuid.New()
	if err := s.createRun(ctx, runID, query, reasonOrDefault(req.RunReason), req.UserEmail); err != nil {
		return nil, err
	}

	opts := workflow.Options{
		RunID:              runID,
		Logger:             slog.New(NewRunLogHandler(s.DB, runID)),
		UserEmail:          req.UserEmail,
		RunReason:          req.RunReason,
		WebSearchLimit:     req.WebSearchLimit,
		DocRetrievalLimit:  req.DocRetrievalLimit,
		MinVectorRelevance: req.MinVectorRelevance,
	}
	if sessions != nil && req.ConversationID != "" {
		opts.Session = sessions.Get(req.ConversationID)
		s.Logger.Debug("Continuing conversation", "conversation_id", opts.Session.ID(), "turns", opts.Session.Len())
	}

	state := s.Workflow.Run(ctx, query, nil, opts)
	s.finishRun(ctx, state)
	return state, nil
}

// IngestDocuments runs an ingestion workflow over uploaded files. The query
// defaults to a summary request so the caller still receives an answer about
// what was ingested.
func (s *Service) IngestDocuments(ctx context.Context, files []ingest.File, query, userEmail string) (*workflow.RunState, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("at least one file is required")
	}
	if query == "" {
		query = "Summarize the uploaded documents."
	}

	runID := uuid.New()
	if err := s.createRun(ctx, runID, query, "document_upload", userEmail); err != nil {
		return nil, err
	}

	state := s.Workflow.Run(ctx, query, files, workflow.Options{
		RunID:     runID,
		Logger:    slog.New(NewRunLogHandler(s.DB, runID)),
		UserEmail: userEmail,
		RunReason: "document_upload",
	})
	s.finishRun(ctx, state)
	return state, nil
}

func (s *Service) createRun(ctx context.Context, id uuid.UUID, query, reason, userEmail string) error {
	var email *string
	if userEmail != "" {
		email = &userEmail
	}
	_, err := s.DB.Pool.Exec(ctx, `
		INSERT INTO support_runs (id, query, run_reason, user_email, status)
		VALUES ($1, $2, $3, $4, 'running')
	`, id, query, reason, email)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// finishRun records the terminal state. Persistence failures are logged and
// swallowed so the caller still gets the response.
func (s *Service) finishRun(ctx context.Context, state *workflow.RunState) {
	status := "completed"
	var errText *string
	if state.Failed() {
		status = "failed"
		errText = &state.Error
	}

	var statsJSON []byte
	if state.Stats != nil {
		statsJSON, _ = json.Marshal(state.Stats)
	}

	_, err := s.DB.Pool.Exec(ctx, `
		UPDATE support_runs
		SET status = $2, response = $3, error = $4, stats = $5
		WHERE id = $1
	`, state.RunID, status, state.FinalResponse, errText, statsJSON)
	if err != nil {
		s.Logger.Error("Failed to persist run outcome", "run_id", state.RunID, "error", err)
	}
}

func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	query := `
		SELECT id, query, run_reason, user_email, status, response, error, stats, created_at
		FROM support_runs
		WHERE id = $1
	`
	run := &Run{}
	err := s.DB.Pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.Query, &run.RunReason, &run.UserEmail, &run.Status, &run.Response, &run.Error, &run.Stats, &run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (s *Service) ListRuns(ctx context.Context) ([]Run, error) {
	query := `
		SELECT id, query, run_reason, user_email, status, response, error, stats, created_at
		FROM support_runs
		ORDER BY created_at DESC
		LIMIT 50
	`
	rows, err := s.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Query, &run.RunReason, &run.UserEmail, &run.Status, &run.Response, &run.Error, &run.Stats, &run.CreatedAt); err != nil {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetRunLogs(ctx context.Context, runID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM support_run_logs
		WHERE run_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, nil
}

func reasonOrDefault(reason string) string {
	if reason == "" {
		return "chat"
	}
	return reason
}
