package database

import (
	"context"
	"fmt"
)

// InitSchema creates the run telemetry tables.
func (db *PostgresDB) InitSchema(ctx context.Context) error {
	runsQuery := `
		CREATE TABLE IF NOT EXISTS support_runs (
			id UUID PRIMARY KEY,
			query TEXT NOT NULL,
			run_reason TEXT NOT NULL DEFAULT 'chat',
			user_email TEXT,
			status TEXT NOT NULL DEFAULT 'completed',
			response TEXT,
			error TEXT,
			stats JSONB,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := db.Pool.Exec(ctx, runsQuery); err != nil {
		return fmt.Errorf("failed to create support_runs table: %w", err)
	}

	logsQuery := `
		CREATE TABLE IF NOT EXISTS support_run_logs (
			id SERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES support_runs(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		);
	`
	if _, err := db.Pool.Exec(ctx, logsQuery); err != nil {
		return fmt.Errorf("failed to create support_run_logs table: %w", err)
	}

	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_support_run_logs_run_id ON support_run_logs(run_id)"); err != nil {
		return fmt.Errorf("failed to create index on support_run_logs: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_support_runs_created_at ON support_runs(created_at DESC)"); err != nil {
		return fmt.Errorf("failed to create index on support_runs: %w", err)
	}

	return nil
}
