package session

import (
	"strings"
	"time"
)

// State represents the lifecycle of a session.
type State string

const (
	// StateActive marks the session the dashboard is currently working in.
	// At most one session is active at a time.
	StateActive State = "active"
	// StateArchived marks sessions superseded by a newer run.
	StateArchived State = "archived"
)

// Session links the identifiers produced while starting and monitoring an
// evaluation run: the uploaded dataset file, the eval, the run, and the
// testing criteria the user selected. It replaces scattering these ids across
// ad-hoc key-value storage.
type Session struct {
	ID                string
	Name              string
	State             State
	FileID            string
	EvalID            string
	RunID             string
	TestingCriteriaID string
	RunStatus         string
	ReportURL         string
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case StateActive, StateArchived:
		return normalized, true
	default:
		return "", false
	}
}

// IsActive reports whether the session is the current working session.
func (s Session) IsActive() bool {
	return s.State == StateActive
}
