package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"evalboard/internal/api"
	"evalboard/internal/config"
	"evalboard/internal/dataset"
	"evalboard/internal/logging"
	"evalboard/internal/services/evaluation"
	"evalboard/internal/services/translate"
	"evalboard/internal/session"
	"evalboard/internal/watcher"
)

// Daemon coordinates the conversion service, the evaluation service proxy,
// session storage, and run watching behind one HTTP API. It enforces
// single-instance execution with a file lock.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *session.Store
	eval       *evaluation.Client
	translator translate.Translator
	converter  *dataset.Converter
	watcher    *watcher.Watcher

	lockPath string
	lock     *flock.Flock

	apiSrv    *apiServer
	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running              bool
	PID                  int
	SessionDBPath        string
	LockFilePath         string
	EvaluationConfigured bool
	TranslateConfigured  bool
	ActiveSession        *session.Session
	StartedAt            time.Time
}

// New wires the daemon from configuration. The evaluation client is optional:
// without a configured base URL the conversion endpoints still work and the
// run endpoints report the missing configuration.
func New(cfg *config.Config, store *session.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var evalClient *evaluation.Client
	if cfg.Evaluation.BaseURL != "" {
		client, err := evaluation.NewFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("evaluation client: %w", err)
		}
		evalClient = client
	}

	translator, err := translate.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("translate client: %w", err)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "evalboardd.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.WithComponent(logger, "daemon"),
		store:      store,
		eval:       evalClient,
		translator: translator,
		converter:  dataset.NewConverter(translator, logger),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	d.watcher = watcher.New(
		store,
		evalClient,
		evalClient,
		time.Duration(cfg.Workflow.RunPollInterval)*time.Second,
		time.Duration(cfg.Workflow.SuggestionPollInterval)*time.Second,
		logger,
	)
	return d, nil
}

// Start acquires the daemon lock and brings up the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another evalboard daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}
	d.apiSrv = srv
	if err := d.apiSrv.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("evalboard daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the API server, waits for in-flight run watches, and
// releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.apiSrv != nil {
		d.apiSrv.stop()
	}
	d.watcher.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("evalboard daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports daemon runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:              d.running.Load(),
		PID:                  os.Getpid(),
		SessionDBPath:        d.store.Path(),
		LockFilePath:         d.lockPath,
		EvaluationConfigured: d.eval != nil,
		StartedAt:            d.startedAt,
	}
	if _, passthrough := d.translator.(translate.Passthrough); !passthrough {
		status.TranslateConfigured = true
	}
	if active, err := d.store.Active(ctx); err == nil {
		status.ActiveSession = active
	}
	return status
}

// StartRun uploads the dataset at path to the evaluation service, creates an
// eval and a run for it, opens a session for the linkage, and starts watching
// the run in the background.
func (d *Daemon) StartRun(ctx context.Context, name, path string, criteria []evaluation.TestingCriterion) (*session.Session, evaluation.Run, error) {
	var run evaluation.Run
	if d.eval == nil {
		return nil, run, errors.New("evaluation service is not configured")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, run, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	ref, err := d.eval.UploadFile(ctx, filepath.Base(path), file)
	if err != nil {
		return nil, run, fmt.Errorf("upload dataset: %w", err)
	}

	eval, err := d.eval.CreateEval(ctx, evaluation.CreateEvalRequest{Name: name, TestingCriteria: criteria})
	if err != nil {
		return nil, run, fmt.Errorf("create eval: %w", err)
	}

	run, err = d.eval.CreateRun(ctx, eval.ID, evaluation.CreateRunRequest{Name: name, FileID: ref.ID})
	if err != nil {
		return nil, run, fmt.Errorf("create run: %w", err)
	}

	criteriaID := ""
	if len(eval.TestingCriteria) > 0 {
		criteriaID = eval.TestingCriteria[0].ID
	}
	sess, err := d.store.Create(ctx, session.Session{
		Name:              name,
		FileID:            ref.ID,
		EvalID:            eval.ID,
		RunID:             run.ID,
		TestingCriteriaID: criteriaID,
		RunStatus:         string(run.Status),
	})
	if err != nil {
		return nil, run, fmt.Errorf("create session: %w", err)
	}

	watchCtx := d.ctx
	if watchCtx == nil {
		watchCtx = context.Background()
	}
	d.watcher.StartRun(watchCtx, sess.ID, eval.ID, run.ID)

	d.logger.Info("evaluation run started",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String(logging.FieldEvalID, eval.ID),
		logging.String(logging.FieldRunID, run.ID))
	return sess, run, nil
}

// ResolveRun finds the eval owning runID, preferring the explicit evalID when
// given and falling back to session linkage.
func (d *Daemon) ResolveRun(ctx context.Context, evalID, runID string) (evaluation.Run, error) {
	var run evaluation.Run
	if d.eval == nil {
		return run, errors.New("evaluation service is not configured")
	}
	if evalID == "" {
		sessions, err := d.store.List(ctx)
		if err != nil {
			return run, fmt.Errorf("list sessions: %w", err)
		}
		for _, sess := range sessions {
			if sess.RunID == runID {
				evalID = sess.EvalID
				break
			}
		}
	}
	if evalID == "" {
		return run, fmt.Errorf("no session links run %s to an eval", runID)
	}
	return d.eval.GetRun(ctx, evalID, runID)
}

// Sessions lists stored sessions, newest first.
func (d *Daemon) Sessions(ctx context.Context) ([]*session.Session, error) {
	return d.store.List(ctx)
}

// Session returns one session by id, nil when absent.
func (d *Daemon) Session(ctx context.Context, id string) (*session.Session, error) {
	return d.store.GetByID(ctx, id)
}

// Evaluation exposes the upstream client for proxy handlers. Nil when the
// service is not configured.
func (d *Daemon) Evaluation() *evaluation.Client {
	return d.eval
}

// Converter exposes the dataset converter.
func (d *Daemon) Converter() *dataset.Converter {
	return d.converter
}

// Watcher exposes the run watcher.
func (d *Daemon) Watcher() *watcher.Watcher {
	return d.watcher
}

// StatusView converts runtime status into its API payload.
func (d *Daemon) StatusView(ctx context.Context) api.DaemonStatus {
	status := d.Status(ctx)
	view := api.DaemonStatus{
		Running:              status.Running,
		PID:                  status.PID,
		SessionDBPath:        status.SessionDBPath,
		LockFilePath:         status.LockFilePath,
		EvaluationConfigured: status.EvaluationConfigured,
		TranslateConfigured:  status.TranslateConfigured,
	}
	if !status.StartedAt.IsZero() {
		view.StartedAt = status.StartedAt.Format(time.RFC3339)
	}
	if status.ActiveSession != nil {
		active := api.FromSession(status.ActiveSession)
		view.ActiveSession = &active
	}
	return view
}
