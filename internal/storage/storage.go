// Package storage defines the persistence interface for the ingest history.
package storage

import (
	"context"
	"errors"

	"github.com/ParsaBazrpash/MirrorAPI/internal/models"
)

// ErrNoIngests is returned by LastIngest when nothing has been recorded.
var ErrNoIngests = errors.New("no ingest runs recorded")

// Storage records ingest runs. It is an audit log; the retrieval index never reads from it.
type Storage interface {
	RecordIngest(ctx context.Context, run *models.IngestRun) error
	GetIngest(ctx context.Context, id string) (*models.IngestRun, error)
	ListIngests(ctx context.Context, offset, limit int) ([]*models.IngestRun, error)
	LastIngest(ctx context.Context) (*models.IngestRun, error)
	CountIngests(ctx context.Context) (int64, error)

	Close() error
}
