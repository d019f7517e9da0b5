package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"evalboard/internal/config"
)

// Store manages session persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the session database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "sessions.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Create archives any currently active session and inserts a new active one.
// Starting a new run is the only creation point, so activation and
// invalidation happen in one transaction.
func (s *Store) Create(ctx context.Context, draft Session) (*Session, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE sessions SET state = ?, updated_at = ? WHERE state = ?`,
		StateArchived, timestamp, StateActive,
	); err != nil {
		return nil, fmt.Errorf("archive active sessions: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO sessions (
            id, name, state, file_id, eval_id, run_id, testing_criteria_id,
            run_status, report_url, error_message, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		nullableString(draft.Name),
		StateActive,
		nullableString(draft.FileID),
		nullableString(draft.EvalID),
		nullableString(draft.RunID),
		nullableString(draft.TestingCriteriaID),
		nullableString(draft.RunStatus),
		nullableString(draft.ReportURL),
		nullableString(draft.ErrorMessage),
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit session: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a session by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// Active returns the current active session, or nil when none exists.
func (s *Store) Active(ctx context.Context) (*Session, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE state = ? ORDER BY created_at DESC LIMIT 1`,
		StateActive,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active session: %w", err)
	}
	return sess, nil
}

// List returns sessions ordered newest first, optionally filtered by state.
func (s *Store) List(ctx context.Context, states ...State) ([]*Session, error) {
	var (
		rows *sql.Rows
		err  error
	)
	baseQuery := `SELECT ` + sessionColumns + ` FROM sessions`
	orderClause := ` ORDER BY created_at DESC`

	if len(states) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(states))
		args := make([]any, len(states))
		for i, state := range states {
			args[i] = state
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE state IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Update persists changes to an existing session.
func (s *Store) Update(ctx context.Context, sess *Session) error {
	if sess == nil {
		return errors.New("session is nil")
	}
	sess.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions
         SET name = ?, state = ?, file_id = ?, eval_id = ?, run_id = ?,
             testing_criteria_id = ?, run_status = ?, report_url = ?,
             error_message = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(sess.Name),
		sess.State,
		nullableString(sess.FileID),
		nullableString(sess.EvalID),
		nullableString(sess.RunID),
		nullableString(sess.TestingCriteriaID),
		nullableString(sess.RunStatus),
		nullableString(sess.ReportURL),
		nullableString(sess.ErrorMessage),
		sess.UpdatedAt.Format(time.RFC3339Nano),
		sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s not found", sess.ID)
	}
	return nil
}

// Archive marks a session archived.
func (s *Store) Archive(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		StateArchived,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StateActive,
	)
	if err != nil {
		return false, fmt.Errorf("archive session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetRunState records the latest observed run status and report URL.
func (s *Store) SetRunState(ctx context.Context, id, runStatus, reportURL, errorMessage string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET run_status = ?, report_url = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		nullableString(runStatus),
		nullableString(reportURL),
		nullableString(errorMessage),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set run state: %w", err)
	}
	return nil
}

const sessionColumns = "id, name, state, file_id, eval_id, run_id, testing_criteria_id, run_status, report_url, error_message, created_at, updated_at"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id           string
		name         sql.NullString
		stateStr     string
		fileID       sql.NullString
		evalID       sql.NullString
		runID        sql.NullString
		criteriaID   sql.NullString
		runStatus    sql.NullString
		reportURL    sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&name,
		&stateStr,
		&fileID,
		&evalID,
		&runID,
		&criteriaID,
		&runStatus,
		&reportURL,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	sess := &Session{
		ID:                id,
		Name:              name.String,
		State:             State(stateStr),
		FileID:            fileID.String,
		EvalID:            evalID.String,
		RunID:             runID.String,
		TestingCriteriaID: criteriaID.String,
		RunStatus:         runStatus.String,
		ReportURL:         reportURL.String,
		ErrorMessage:      errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		sess.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		sess.UpdatedAt = updated
	}
	return sess, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
