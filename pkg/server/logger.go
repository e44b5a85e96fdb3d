package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mikeboe/support-agent/pkg/database"
)

// RunLogHandler is a slog.Handler that writes records into the
// support_run_logs table, keyed by run id.
type RunLogHandler struct {
	DB    *database.PostgresDB
	RunID uuid.UUID

	attrs []slog.Attr
}

func NewRunLogHandler(db *database.PostgresDB, runID uuid.UUID) *RunLogHandler {
	return &RunLogHandler{
		DB:    db,
		RunID: runID,
	}
}

func (h *RunLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

func (h *RunLogHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]interface{})
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	metaJSON, err := json.Marshal(attrs)
	if err != nil {
		metaJSON = []byte("{}")
	}

	query := `
		INSERT INTO support_run_logs (run_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`

	// Background context so logs persist even when the request context is
	// already cancelled.
	_, err = h.DB.Pool.Exec(context.Background(), query, h.RunID, r.Time, r.Level.String(), r.Message, metaJSON)
	return err
}

func (h *RunLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &RunLogHandler{DB: h.DB, RunID: h.RunID, attrs: merged}
}

func (h *RunLogHandler) WithGroup(name string) slog.Handler {
	return h
}
