// Package vector provides the flat inner-product index and the persisted chunk store built on it.
package vector

import "context"

// VectorIndex is a flat, exhaustive inner-product index. Positions are assigned in insertion order
// starting at zero and never change; there is no removal.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Save(path string) error
	Load(path string) error
	// IDs returns the chunk ID stored at each position. Implementations that do not persist
	// IDs report an empty string for positions restored from disk.
	IDs() []string
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// VectorResult is a single search hit.
type VectorResult struct {
	ID       string
	Position int
	Score    float64 // inner product; cosine similarity when both sides are L2-normalized
}
