package watcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"evalboard/internal/config"
	"evalboard/internal/services/evaluation"
	"evalboard/internal/session"
)

type fakeRuns struct {
	calls   atomic.Int32
	results []func() (evaluation.Run, error)
}

func (f *fakeRuns) GetRun(ctx context.Context, evalID, runID string) (evaluation.Run, error) {
	call := int(f.calls.Add(1)) - 1
	if call >= len(f.results) {
		call = len(f.results) - 1
	}
	return f.results[call]()
}

type fakeSuggestions struct {
	results []func() (evaluation.SuggestionJob, error)
	calls   atomic.Int32
}

func (f *fakeSuggestions) GetSuggestion(ctx context.Context, jobID string) (evaluation.SuggestionJob, error) {
	call := int(f.calls.Add(1)) - 1
	if call >= len(f.results) {
		call = len(f.results) - 1
	}
	return f.results[call]()
}

func newTestStore(t *testing.T) *session.Store {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	store, err := session.Open(&cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func runResult(status evaluation.RunStatus, reportURL string) func() (evaluation.Run, error) {
	return func() (evaluation.Run, error) {
		return evaluation.Run{ID: "run_1", EvalID: "ev_1", Status: status, ReportURL: reportURL}, nil
	}
}

func TestWatchRunStopsAtTerminalAndPersists(t *testing.T) {
	store := newTestStore(t)
	sess, err := store.Create(context.Background(), session.Session{RunID: "run_1"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	runs := &fakeRuns{results: []func() (evaluation.Run, error){
		runResult(evaluation.RunStatusQueued, ""),
		runResult(evaluation.RunStatusRunning, ""),
		runResult(evaluation.RunStatusSucceeded, "https://reports.example/run_1"),
	}}
	w := New(store, runs, nil, 10*time.Millisecond, 10*time.Millisecond, nil)

	run, err := w.WatchRun(context.Background(), sess.ID, "ev_1", "run_1")
	if err != nil {
		t.Fatalf("WatchRun returned error: %v", err)
	}
	if run.Status != evaluation.RunStatusSucceeded {
		t.Fatalf("unexpected final status %q", run.Status)
	}
	if runs.calls.Load() != 3 {
		t.Fatalf("expected 3 polls, got %d", runs.calls.Load())
	}

	got, err := store.GetByID(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.RunStatus != "succeeded" || got.ReportURL != "https://reports.example/run_1" {
		t.Fatalf("final state not persisted: %+v", got)
	}
}

func TestWatchRunKeepsPollingThroughTransientErrors(t *testing.T) {
	runs := &fakeRuns{results: []func() (evaluation.Run, error){
		func() (evaluation.Run, error) { return evaluation.Run{}, errors.New("connection reset") },
		runResult(evaluation.RunStatusFailed, ""),
	}}
	w := New(nil, runs, nil, 10*time.Millisecond, 10*time.Millisecond, nil)

	run, err := w.WatchRun(context.Background(), "", "ev_1", "run_1")
	if err != nil {
		t.Fatalf("WatchRun returned error: %v", err)
	}
	if run.Status != evaluation.RunStatusFailed {
		t.Fatalf("unexpected status %q", run.Status)
	}
	if runs.calls.Load() != 2 {
		t.Fatalf("expected 2 polls, got %d", runs.calls.Load())
	}
}

func TestWatchRunStopsOnMissingRun(t *testing.T) {
	store := newTestStore(t)
	sess, err := store.Create(context.Background(), session.Session{RunID: "run_1"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	runs := &fakeRuns{results: []func() (evaluation.Run, error){
		func() (evaluation.Run, error) {
			return evaluation.Run{}, &evaluation.StatusError{StatusCode: 404, Message: "run not found"}
		},
	}}
	w := New(store, runs, nil, 10*time.Millisecond, 10*time.Millisecond, nil)

	if _, err := w.WatchRun(context.Background(), sess.ID, "ev_1", "run_1"); err == nil {
		t.Fatal("expected error for missing run")
	}

	got, err := store.GetByID(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.RunStatus != "failed" {
		t.Fatalf("missing run should mark the session failed, got %q", got.RunStatus)
	}
	if got.ErrorMessage == "" {
		t.Fatal("expected an error message on the session")
	}
}

func TestWatchRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runs := &fakeRuns{results: []func() (evaluation.Run, error){
		func() (evaluation.Run, error) {
			cancel()
			return evaluation.Run{Status: evaluation.RunStatusRunning}, nil
		},
	}}
	w := New(nil, runs, nil, time.Minute, time.Minute, nil)

	_, err := w.WatchRun(ctx, "", "ev_1", "run_1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWatchSuggestionStopsAtTerminal(t *testing.T) {
	suggestions := &fakeSuggestions{results: []func() (evaluation.SuggestionJob, error){
		func() (evaluation.SuggestionJob, error) {
			return evaluation.SuggestionJob{ID: "job_1", Status: evaluation.SuggestionStatusPending}, nil
		},
		func() (evaluation.SuggestionJob, error) {
			return evaluation.SuggestionJob{ID: "job_1", Status: evaluation.SuggestionStatusSucceeded, Labels: []string{"billing"}}, nil
		},
	}}
	w := New(nil, nil, suggestions, 10*time.Millisecond, 10*time.Millisecond, nil)

	job, err := w.WatchSuggestion(context.Background(), "job_1")
	if err != nil {
		t.Fatalf("WatchSuggestion returned error: %v", err)
	}
	if job.Status != evaluation.SuggestionStatusSucceeded || len(job.Labels) != 1 {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestStartRunRunsInBackground(t *testing.T) {
	runs := &fakeRuns{results: []func() (evaluation.Run, error){
		runResult(evaluation.RunStatusSucceeded, "https://reports.example/run_1"),
	}}
	w := New(nil, runs, nil, 10*time.Millisecond, 10*time.Millisecond, nil)

	w.StartRun(context.Background(), "", "ev_1", "run_1")
	w.Wait()

	if runs.calls.Load() != 1 {
		t.Fatalf("expected 1 poll, got %d", runs.calls.Load())
	}
}
