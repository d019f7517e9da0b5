package evaluation

import "strings"

// Wire field names in this file (report_url, annotationAttributes,
// testing_criteria) are fixed by the external service's contract.

// FileRef identifies an uploaded dataset file.
type FileRef struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Bytes     int64  `json:"bytes"`
	CreatedAt string `json:"created_at"`
}

// TestingCriterion is one grading criterion attached to an eval.
type TestingCriterion struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Eval is an evaluation definition on the external service.
type Eval struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	TestingCriteria []TestingCriterion `json:"testing_criteria"`
	CreatedAt       string             `json:"created_at"`
}

// CreateEvalRequest creates a new eval.
type CreateEvalRequest struct {
	Name            string             `json:"name"`
	TestingCriteria []TestingCriterion `json:"testing_criteria,omitempty"`
}

// RunStatus is the lifecycle state of an evaluation run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// Terminal reports whether the status ends the polling loop.
func (s RunStatus) Terminal() bool {
	switch RunStatus(strings.ToLower(strings.TrimSpace(string(s)))) {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCanceled:
		return true
	default:
		return false
	}
}

// Run is one evaluation run of a dataset file against an eval.
type Run struct {
	ID           string         `json:"id"`
	EvalID       string         `json:"eval_id"`
	FileID       string         `json:"file_id"`
	Status       RunStatus      `json:"status"`
	ReportURL    string         `json:"report_url"`
	ResultCounts map[string]int `json:"result_counts,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    string         `json:"created_at"`
}

// CreateRunRequest starts a run for an eval.
type CreateRunRequest struct {
	Name   string `json:"name,omitempty"`
	FileID string `json:"file_id"`
}

// Annotation is one labeled conversation produced by a run.
type Annotation struct {
	ID             string         `json:"id"`
	RunID          string         `json:"run_id"`
	ConversationID string         `json:"conversationId"`
	Conversation   string         `json:"conversation,omitempty"`
	Attributes     map[string]any `json:"annotationAttributes"`
	UpdatedAt      string         `json:"updated_at,omitempty"`
}

// SuggestionStatus is the lifecycle state of a label-suggestion job.
type SuggestionStatus string

const (
	SuggestionStatusPending   SuggestionStatus = "pending"
	SuggestionStatusSucceeded SuggestionStatus = "succeeded"
	SuggestionStatusFailed    SuggestionStatus = "failed"
)

// Terminal reports whether the suggestion job has finished.
func (s SuggestionStatus) Terminal() bool {
	switch SuggestionStatus(strings.ToLower(strings.TrimSpace(string(s)))) {
	case SuggestionStatusSucceeded, SuggestionStatusFailed:
		return true
	default:
		return false
	}
}

// SuggestionJob is a label-suggestion request and its eventual output.
type SuggestionJob struct {
	ID     string           `json:"id"`
	RunID  string           `json:"run_id"`
	Status SuggestionStatus `json:"status"`
	Labels []string         `json:"labels,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// AggregationBucket is one label count in an aggregation result.
type AggregationBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Aggregation is the grouped label counts for one annotation attribute.
type Aggregation struct {
	RunID     string              `json:"run_id"`
	Attribute string              `json:"attribute"`
	Buckets   []AggregationBucket `json:"buckets"`
}

// PageRequest describes one page of a cursor-paginated list.
type PageRequest struct {
	Limit  int
	Cursor string
}

// Page describes the continuation state returned with a list page.
type Page struct {
	NextCursor string
	HasMore    bool
}

// listEnvelope is the service's generic list response shape. has_more is a
// pointer so its absence is distinguishable from false.
type listEnvelope[T any] struct {
	Data       []T    `json:"data"`
	NextCursor string `json:"next_cursor"`
	HasMore    *bool  `json:"has_more"`
}

// page derives continuation state from an envelope. The explicit has_more
// field wins; when the backend omits it, fall back to the page-length
// heuristic (a full page is assumed to have more), which mis-reports on
// exact-boundary result sets.
func (e listEnvelope[T]) page(limit int) Page {
	p := Page{NextCursor: e.NextCursor}
	if e.HasMore != nil {
		p.HasMore = *e.HasMore
		return p
	}
	p.HasMore = limit > 0 && len(e.Data) == limit
	return p
}
