package session

import (
	"context"
	"testing"

	"evalboard/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	store, err := Open(&cfg)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateArchivesPreviousActiveSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, Session{Name: "first", FileID: "file_1"})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := store.Create(ctx, Session{Name: "second", FileID: "file_2"})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	active, err := store.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active == nil || active.ID != second.ID {
		t.Fatalf("expected second session active, got %+v", active)
	}

	refetched, err := store.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	if refetched.State != StateArchived {
		t.Fatalf("expected first session archived, got %s", refetched.State)
	}
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	sess, err := store.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected nil for missing session, got %+v", sess)
	}
}

func TestUpdatePersistsRunLinkage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, Session{Name: "taxonomy"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sess.EvalID = "ev_1"
	sess.RunID = "run_1"
	sess.TestingCriteriaID = "tc_1"
	sess.RunStatus = "queued"
	if err := store.Update(ctx, sess); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EvalID != "ev_1" || got.RunID != "run_1" || got.TestingCriteriaID != "tc_1" {
		t.Fatalf("linkage not persisted: %+v", got)
	}
	if got.RunStatus != "queued" {
		t.Fatalf("unexpected run status %q", got.RunStatus)
	}
}

func TestSetRunStateUpdatesStatusAndReportURL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, Session{Name: "taxonomy", RunID: "run_1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.SetRunState(ctx, sess.ID, "succeeded", "https://reports.example/run_1", ""); err != nil {
		t.Fatalf("set run state: %v", err)
	}

	got, err := store.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RunStatus != "succeeded" {
		t.Fatalf("unexpected status %q", got.RunStatus)
	}
	if got.ReportURL != "https://reports.example/run_1" {
		t.Fatalf("unexpected report url %q", got.ReportURL)
	}
}

func TestListFiltersByState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, Session{Name: "first"}); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := store.Create(ctx, Session{Name: "second"}); err != nil {
		t.Fatalf("create second: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(all))
	}

	archived, err := store.List(ctx, StateArchived)
	if err != nil {
		t.Fatalf("list archived: %v", err)
	}
	if len(archived) != 1 || archived[0].Name != "first" {
		t.Fatalf("unexpected archived set: %+v", archived)
	}
}

func TestArchiveOnlyAffectsActiveSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, Session{Name: "taxonomy"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	archived, err := store.Archive(ctx, sess.ID)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !archived {
		t.Fatal("expected archive to report a change")
	}

	again, err := store.Archive(ctx, sess.ID)
	if err != nil {
		t.Fatalf("archive again: %v", err)
	}
	if again {
		t.Fatal("archiving an archived session should be a no-op")
	}
}

func TestParseState(t *testing.T) {
	if state, ok := ParseState(" Active "); !ok || state != StateActive {
		t.Fatalf("unexpected parse result %q %v", state, ok)
	}
	if _, ok := ParseState("pending"); ok {
		t.Fatal("unknown state must not parse")
	}
}
