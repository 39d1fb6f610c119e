package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ParsaBazrpash/MirrorAPI/internal/models"
)

func TestSQLiteStorage_RecordAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	run := &models.IngestRun{
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Sources:    3,
		Chunks:     12,
		Dimensions: 384,
		Strategy:   "hash",
		Status:     models.IngestStatusOK,
	}
	if err := store.RecordIngest(ctx, run); err != nil {
		t.Fatal(err)
	}
	if run.ID == "" {
		t.Fatal("ID should be assigned")
	}

	got, err := store.GetIngest(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Chunks != 12 || got.Sources != 3 || got.Dimensions != 384 || got.Strategy != "hash" {
		t.Errorf("got %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}

	if _, err := store.GetIngest(ctx, "missing"); err == nil {
		t.Error("expected error for missing run")
	}
}

func TestSQLiteStorage_ListAndLast(t *testing.T) {
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	if _, err := store.LastIngest(ctx); !errors.Is(err, ErrNoIngests) {
		t.Fatalf("LastIngest on empty db: %v", err)
	}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, status := range []string{models.IngestStatusOK, models.IngestStatusEmpty, models.IngestStatusFailed} {
		run := &models.IngestRun{StartedAt: base.Add(time.Duration(i) * time.Minute), Status: status}
		if status == models.IngestStatusFailed {
			run.Error = "embed: boom"
		}
		if err := store.RecordIngest(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	n, err := store.CountIngests(ctx)
	if err != nil || n != 3 {
		t.Fatalf("CountIngests = %d, %v", n, err)
	}

	runs, err := store.ListIngests(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Status != models.IngestStatusFailed || runs[1].Status != models.IngestStatusEmpty {
		t.Errorf("unexpected order: %+v", runs)
	}

	last, err := store.LastIngest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last.Error != "embed: boom" {
		t.Errorf("last = %+v", last)
	}
}
