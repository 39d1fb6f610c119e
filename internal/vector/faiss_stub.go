//go:build !faiss || !cgo

package vector

import (
	"context"
	"errors"
)

// ErrFAISSUnavailable is returned by every FAISSIndex operation in builds without -tags=faiss.
var ErrFAISSUnavailable = errors.New("faiss index support not compiled in (rebuild with -tags=faiss and libfaiss_c)")

// FAISSIndex stands in for the cgo implementation so the faiss index type still parses.
type FAISSIndex struct{}

// NewFAISSIndex always fails with ErrFAISSUnavailable.
func NewFAISSIndex(int) (*FAISSIndex, error) { return nil, ErrFAISSUnavailable }

func (*FAISSIndex) Add(context.Context, []string, [][]float32) error { return ErrFAISSUnavailable }

func (*FAISSIndex) Search(context.Context, []float32, int) ([]*VectorResult, error) {
	return nil, ErrFAISSUnavailable
}

func (*FAISSIndex) Save(string) error { return ErrFAISSUnavailable }
func (*FAISSIndex) Load(string) error { return ErrFAISSUnavailable }
func (*FAISSIndex) IDs() []string     { return nil }
func (*FAISSIndex) Size() int         { return 0 }
func (*FAISSIndex) Dimensions() int   { return 0 }
func (*FAISSIndex) Close() error      { return nil }
func (*FAISSIndex) Type() string      { return string(IndexTypeFAISS) }
