// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ParsaBazrpash/MirrorAPI/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingest_runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		sources INTEGER NOT NULL DEFAULT 0,
		chunks INTEGER NOT NULL DEFAULT 0,
		dimensions INTEGER NOT NULL DEFAULT 0,
		strategy TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_ingest_runs_started_at ON ingest_runs(started_at);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordIngest inserts a run. An empty ID is filled with a new UUID and a zero FinishedAt with
// the current time.
func (s *SQLiteStorage) RecordIngest(ctx context.Context, run *models.IngestRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, started_at, finished_at, sources, chunks, dimensions, strategy, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Sources, run.Chunks, run.Dimensions,
		run.Strategy, run.Status, run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record ingest: %w", err)
	}
	return nil
}

const ingestColumns = `id, started_at, finished_at, sources, chunks, dimensions, strategy, status, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanIngest(row scanner) (*models.IngestRun, error) {
	var run models.IngestRun
	if err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Sources, &run.Chunks,
		&run.Dimensions, &run.Strategy, &run.Status, &run.Error); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetIngest returns a run by ID.
func (s *SQLiteStorage) GetIngest(ctx context.Context, id string) (*models.IngestRun, error) {
	run, err := scanIngest(s.db.QueryRowContext(ctx,
		`SELECT `+ingestColumns+` FROM ingest_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ingest run not found: %s", id)
	}
	return run, err
}

// ListIngests returns runs newest first.
func (s *SQLiteStorage) ListIngests(ctx context.Context, offset, limit int) ([]*models.IngestRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ingestColumns+` FROM ingest_runs
		 ORDER BY started_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.IngestRun
	for rows.Next() {
		run, err := scanIngest(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LastIngest returns the most recent run, or ErrNoIngests.
func (s *SQLiteStorage) LastIngest(ctx context.Context) (*models.IngestRun, error) {
	runs, err := s.ListIngests(ctx, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoIngests
	}
	return runs[0], nil
}

// CountIngests returns the number of recorded runs.
func (s *SQLiteStorage) CountIngests(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ingest_runs").Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
