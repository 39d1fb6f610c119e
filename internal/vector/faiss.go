//go:build faiss && cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"unsafe"
)

// FAISSIndex is IndexFlatIP through the FAISS C API. FAISS labels are positions, so chunk IDs
// live only in memory: after Load they are empty strings and the store resolves hits by Position.
type FAISSIndex struct {
	mu    sync.RWMutex
	index *C.FaissIndexFlatIP
	dim   int
	ids   []string
}

// faissErr turns a non-zero C return code into an error carrying FAISS's last message.
func faissErr(op string, rc C.int) error {
	if rc == 0 {
		return nil
	}
	msg := "unknown error"
	if cMsg := C.faiss_get_last_error(); cMsg != nil {
		msg = C.GoString(cMsg)
	}
	return fmt.Errorf("faiss %s: %s", op, msg)
}

func NewFAISSIndex(dim int) (*FAISSIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("faiss index: dimension must be positive, got %d", dim)
	}
	var index *C.FaissIndexFlatIP
	if err := faissErr("create", C.faiss_IndexFlatIP_new_with(&index, C.idx_t(dim))); err != nil {
		return nil, err
	}
	return &FAISSIndex{index: index, dim: dim}, nil
}

// Add appends vectors in one FAISS call. Nothing is added if any vector has the wrong length.
func (f *FAISSIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("add: %d ids for %d vectors", len(ids), len(vectors))
	}
	if len(vectors) == 0 {
		return nil
	}
	flat := make([]float32, 0, len(vectors)*f.dim)
	for i, vec := range vectors {
		if len(vec) != f.dim {
			return fmt.Errorf("add %s: vector dimension %d, index has %d", ids[i], len(vec), f.dim)
		}
		flat = append(flat, vec...)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	rc := C.faiss_Index_add(f.index, C.idx_t(len(vectors)), (*C.float)(unsafe.Pointer(&flat[0])))
	if err := faissErr("add", rc); err != nil {
		return err
	}
	f.ids = append(f.ids, ids...)
	return nil
}

// Search scores every stored vector and keeps the k best. FAISS breaks ties arbitrarily at the
// cut-off, so the whole index is ranked here and equal scores fall back to insertion order.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("search: query dimension %d, index has %d", len(query), f.dim)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := int(C.faiss_Index_ntotal(f.index))
	if k <= 0 || n == 0 {
		return nil, nil
	}
	scores := make([]float32, n)
	labels := make([]int64, n)
	rc := C.faiss_Index_search(f.index, 1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(n),
		(*C.float)(unsafe.Pointer(&scores[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if err := faissErr("search", rc); err != nil {
		return nil, err
	}

	hits := make([]*VectorResult, 0, n)
	for i, label := range labels {
		pos := int(label)
		if pos < 0 || pos >= len(f.ids) {
			continue
		}
		hits = append(hits, &VectorResult{ID: f.ids[pos], Position: pos, Score: float64(scores[i])})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Position < hits[j].Position
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Save writes the FAISS native format. An empty path is a no-op.
func (f *FAISSIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	f.mu.RLock()
	defer f.mu.RUnlock()
	return faissErr("write "+path, C.faiss_write_index_fname(f.index, cPath))
}

// Load replaces the index with the one stored at path. A missing file wraps os.ErrNotExist; a
// file FAISS cannot read, or one of another dimension, wraps ErrBadBlob. IDs become blanks.
func (f *FAISSIndex) Load(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var loaded *C.FaissIndex
	if err := faissErr("read "+path, C.faiss_read_index_fname(cPath, 0, &loaded)); err != nil {
		return fmt.Errorf("%w: %v", ErrBadBlob, err)
	}
	if d := int(C.faiss_Index_d(loaded)); d != f.dim {
		C.faiss_Index_free(loaded)
		return fmt.Errorf("%w: file has dimension %d, index has %d", ErrBadBlob, d, f.dim)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
	}
	f.index = loaded
	f.ids = make([]string, int(C.faiss_Index_ntotal(loaded)))
	return nil
}

func (f *FAISSIndex) IDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.ids...)
}

func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.index == nil {
		return 0
	}
	return int(C.faiss_Index_ntotal(f.index))
}

func (f *FAISSIndex) Dimensions() int { return f.dim }

func (f *FAISSIndex) Type() string { return string(IndexTypeFAISS) }

// Close frees the C index. Calling it twice is safe.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}
