package api

import (
	"time"

	"evalboard/internal/services/evaluation"
	"evalboard/internal/session"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SessionView describes a session in a transport-friendly format.
type SessionView struct {
	ID                string `json:"id"`
	Name              string `json:"name,omitempty"`
	State             string `json:"state"`
	FileID            string `json:"fileId,omitempty"`
	EvalID            string `json:"evalId,omitempty"`
	RunID             string `json:"runId,omitempty"`
	TestingCriteriaID string `json:"testingCriteriaId,omitempty"`
	RunStatus         string `json:"runStatus,omitempty"`
	ReportURL         string `json:"report_url,omitempty"`
	ErrorMessage      string `json:"errorMessage,omitempty"`
	CreatedAt         string `json:"createdAt,omitempty"`
	UpdatedAt         string `json:"updatedAt,omitempty"`
}

// FromSession converts a stored session into its API view.
func FromSession(sess *session.Session) SessionView {
	if sess == nil {
		return SessionView{}
	}
	return SessionView{
		ID:                sess.ID,
		Name:              sess.Name,
		State:             string(sess.State),
		FileID:            sess.FileID,
		EvalID:            sess.EvalID,
		RunID:             sess.RunID,
		TestingCriteriaID: sess.TestingCriteriaID,
		RunStatus:         sess.RunStatus,
		ReportURL:         sess.ReportURL,
		ErrorMessage:      sess.ErrorMessage,
		CreatedAt:         formatTime(sess.CreatedAt),
		UpdatedAt:         formatTime(sess.UpdatedAt),
	}
}

// SessionListResponse wraps a collection of sessions.
type SessionListResponse struct {
	Sessions []SessionView `json:"sessions"`
}

// RunStartResponse links the session opened for a new run with the run the
// upstream service created.
type RunStartResponse struct {
	Session SessionView    `json:"session"`
	Run     evaluation.Run `json:"run"`
}

// AnnotationListResponse is one page of annotations plus continuation state.
type AnnotationListResponse struct {
	Data       []evaluation.Annotation `json:"data"`
	NextCursor string                  `json:"next_cursor,omitempty"`
	HasMore    bool                    `json:"has_more"`
}

// ConvertSummary reports converter counters alongside the emitted dataset.
type ConvertSummary struct {
	RowsRead            int `json:"rows_read"`
	RowsEmitted         int `json:"rows_emitted"`
	RowsSkipped         int `json:"rows_skipped"`
	TranslationFallback int `json:"translation_fallback"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running              bool         `json:"running"`
	PID                  int          `json:"pid"`
	SessionDBPath        string       `json:"sessionDbPath"`
	LockFilePath         string       `json:"lockFilePath"`
	EvaluationConfigured bool         `json:"evaluationConfigured"`
	TranslateConfigured  bool         `json:"translateConfigured"`
	ActiveSession        *SessionView `json:"activeSession,omitempty"`
	StartedAt            string       `json:"startedAt,omitempty"`
}

// ExportRequest asks the daemon to proxy a results export.
type ExportRequest struct {
	RunID  string `json:"run_id"`
	Format string `json:"format,omitempty"`
}

// SuggestionRequest triggers a label-suggestion job for a run.
type SuggestionRequest struct {
	RunID string `json:"run_id"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
