// Package watcher polls evaluation runs and label-suggestion jobs at a fixed
// interval until they reach a terminal state, recording progress on the
// owning session.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"evalboard/internal/logging"
	"evalboard/internal/services/evaluation"
	"evalboard/internal/session"
)

// RunFetcher fetches the current state of an evaluation run.
type RunFetcher interface {
	GetRun(ctx context.Context, evalID, runID string) (evaluation.Run, error)
}

// SuggestionFetcher fetches the current state of a label-suggestion job.
type SuggestionFetcher interface {
	GetSuggestion(ctx context.Context, jobID string) (evaluation.SuggestionJob, error)
}

// Watcher drives polling loops for in-flight runs and suggestion jobs. Polling
// uses a fixed interval. Transient fetch errors are logged and the loop keeps
// going; a missing resource stops the watch.
type Watcher struct {
	store              *session.Store
	runs               RunFetcher
	suggestions        SuggestionFetcher
	runInterval        time.Duration
	suggestionInterval time.Duration
	logger             *slog.Logger

	wg sync.WaitGroup
}

const (
	defaultRunInterval        = 5 * time.Second
	defaultSuggestionInterval = 3 * time.Second
)

// New builds a watcher. Non-positive intervals fall back to the defaults.
func New(store *session.Store, runs RunFetcher, suggestions SuggestionFetcher, runInterval, suggestionInterval time.Duration, logger *slog.Logger) *Watcher {
	if runInterval <= 0 {
		runInterval = defaultRunInterval
	}
	if suggestionInterval <= 0 {
		suggestionInterval = defaultSuggestionInterval
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		store:              store,
		runs:               runs,
		suggestions:        suggestions,
		runInterval:        runInterval,
		suggestionInterval: suggestionInterval,
		logger:             logging.WithComponent(logger, "watcher"),
	}
}

// WatchRun polls the run until it reaches a terminal status, persisting each
// observed status and report URL on the session. It returns the final run
// state, or the context error if cancelled first.
func (w *Watcher) WatchRun(ctx context.Context, sessionID, evalID, runID string) (evaluation.Run, error) {
	ticker := time.NewTicker(w.runInterval)
	defer ticker.Stop()

	var last evaluation.Run
	for {
		run, err := w.runs.GetRun(ctx, evalID, runID)
		switch {
		case err == nil:
			last = run
			w.recordRun(ctx, sessionID, run)
			if run.Status.Terminal() {
				w.logger.Info("run reached terminal state",
					logging.String(logging.FieldRunID, runID),
					logging.String("status", string(run.Status)))
				return run, nil
			}
		case evaluation.IsNotFound(err):
			w.recordFailure(ctx, sessionID, err)
			return last, fmt.Errorf("run %s: %w", runID, err)
		case ctx.Err() != nil:
			return last, ctx.Err()
		default:
			w.logger.Warn("run poll failed",
				logging.String(logging.FieldRunID, runID),
				logging.Error(err))
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

// WatchSuggestion polls a label-suggestion job until it completes or fails.
func (w *Watcher) WatchSuggestion(ctx context.Context, jobID string) (evaluation.SuggestionJob, error) {
	ticker := time.NewTicker(w.suggestionInterval)
	defer ticker.Stop()

	var last evaluation.SuggestionJob
	for {
		job, err := w.suggestions.GetSuggestion(ctx, jobID)
		switch {
		case err == nil:
			last = job
			if job.Status.Terminal() {
				return job, nil
			}
		case evaluation.IsNotFound(err):
			return last, fmt.Errorf("suggestion job %s: %w", jobID, err)
		case ctx.Err() != nil:
			return last, ctx.Err()
		default:
			w.logger.Warn("suggestion poll failed",
				logging.String("job_id", jobID),
				logging.Error(err))
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

// StartRun watches a run in the background. Callers use Wait during shutdown
// to let in-flight watches record their final state.
func (w *Watcher) StartRun(ctx context.Context, sessionID, evalID, runID string) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if _, err := w.WatchRun(ctx, sessionID, evalID, runID); err != nil && ctx.Err() == nil {
			w.logger.Error("background run watch ended",
				logging.String(logging.FieldRunID, runID),
				logging.Error(err))
		}
	}()
}

// Wait blocks until all background watches finish.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

func (w *Watcher) recordRun(ctx context.Context, sessionID string, run evaluation.Run) {
	if w.store == nil || sessionID == "" {
		return
	}
	if err := w.store.SetRunState(ctx, sessionID, string(run.Status), run.ReportURL, run.Error); err != nil {
		w.logger.Warn("persist run state failed",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Error(err))
	}
}

func (w *Watcher) recordFailure(ctx context.Context, sessionID string, cause error) {
	if w.store == nil || sessionID == "" {
		return
	}
	if err := w.store.SetRunState(ctx, sessionID, string(evaluation.RunStatusFailed), "", cause.Error()); err != nil {
		w.logger.Warn("persist run failure failed",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Error(err))
	}
}
