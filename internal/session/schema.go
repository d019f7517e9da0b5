package session

import (
	"context"
	"fmt"
)

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    name TEXT,
    state TEXT NOT NULL,
    file_id TEXT,
    eval_id TEXT,
    run_id TEXT,
    testing_criteria_id TEXT,
    run_status TEXT,
    report_url TEXT,
    error_message TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`

const createStateIndex = `
CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions (state, created_at)`

func (s *Store) applySchema(ctx context.Context) error {
	for _, stmt := range []string{createSessionsTable, createStateIndex} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
