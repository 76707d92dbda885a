package runstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenPath returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close returned error: %v", err)
		}
	})
	return store
}

func newTestRun(path string) *Run {
	return &Run{
		ID:      uuid.NewString(),
		Path:    path,
		Protein: "lysozyme.pdb",
		Ligand:  "LIG",
		Status:  StatusRunning,
	}
}

func TestCreateAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run := newTestRun("/data/runs/lysozyme-001")
	if err := store.Create(ctx, run); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	got, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Path != run.Path || got.Protein != run.Protein || got.Ligand != run.Ligand {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, run)
	}
	if got.Status != StatusRunning {
		t.Fatalf("expected running status, got %q", got.Status)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be populated")
	}
}

func TestGetMissingRun(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetStageAndStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run := newTestRun("/data/runs/lysozyme-002")
	if err := store.Create(ctx, run); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := store.SetStage(ctx, run.ID, "production"); err != nil {
		t.Fatalf("SetStage returned error: %v", err)
	}
	if err := store.SetStatus(ctx, run.ID, StatusFailed); err != nil {
		t.Fatalf("SetStatus returned error: %v", err)
	}

	got, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.CurrentStage != "production" {
		t.Fatalf("expected current stage production, got %q", got.CurrentStage)
	}
	if got.Status != StatusFailed {
		t.Fatalf("expected failed status, got %q", got.Status)
	}
}

func TestGetByPath(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run := newTestRun("/data/runs/lysozyme-003")
	if err := store.Create(ctx, run); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	got, err := store.GetByPath(ctx, run.Path)
	if err != nil {
		t.Fatalf("GetByPath returned error: %v", err)
	}
	if got.ID != run.ID {
		t.Fatalf("expected run %s, got %s", run.ID, got.ID)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := newTestRun("/data/runs/a")
	second := newTestRun("/data/runs/b")
	if err := store.Create(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(ctx, second); err != nil {
		t.Fatal(err)
	}
	// Make the ordering unambiguous regardless of timestamp resolution.
	if err := store.execWithRetry(ctx, "UPDATE runs SET created_at = ? WHERE id = ?", time.Now().UTC().Add(-time.Hour), first.ID); err != nil {
		t.Fatal(err)
	}

	runs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second.ID {
		t.Fatalf("expected newest run first, got %s", runs[0].ID)
	}
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run := newTestRun("/data/runs/lysozyme-004")
	if err := store.Create(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, run.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := store.Get(ctx, run.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := OpenPath(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	run := newTestRun("/data/runs/persist")
	if err := store.Create(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenPath(dbPath)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(context.Background(), run.ID); err != nil {
		t.Fatalf("expected run to survive reopen: %v", err)
	}
}
