package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ParsaBazrpash/MirrorAPI/pkg/utils"
)

// memoryMagic prefixes every memory index blob.
var memoryMagic = [4]byte{'M', 'A', 'P', 'I'}

const memoryFormatVersion uint32 = 1

// memoryHeaderSize is magic, version, dimension and count.
const memoryHeaderSize = 16

// ErrBadBlob is returned by Load when the blob is truncated or not a memory index file.
var ErrBadBlob = errors.New("malformed index blob")

// MemoryIndex is an in-memory flat index using brute-force inner product search.
type MemoryIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		ids:        make([]string, 0),
		vectors:    make([][]float32, 0),
	}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Dimensions returns the vector dimension fixed at construction.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Add appends vectors with the given IDs. Either all vectors are added or none are.
func (m *MemoryIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	for i := range vectors {
		if len(vectors[i]) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		m.ids = append(m.ids, id)
		m.vectors = append(m.vectors, vec)
	}
	return nil
}

// Search returns the top-k positions by inner product, highest first. Equal scores keep
// insertion order.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	results := make([]*VectorResult, len(m.vectors))
	for i, vec := range m.vectors {
		results[i] = &VectorResult{ID: m.ids[i], Position: i, Score: utils.Dot(query, vec)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Save writes the index to path, creating the directory if needed. Format (little endian):
// magic (4), version (4), dimension (4), n (4), then per vector: idLen (4), id bytes,
// vector (dimension*4 bytes).
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := m.writeTo(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush index file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync index file: %w", err)
	}
	return f.Close()
}

func (m *MemoryIndex) writeTo(w io.Writer) error {
	if _, err := w.Write(memoryMagic[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	header := []uint32{memoryFormatVersion, uint32(m.dimensions), uint32(len(m.ids))}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, id := range m.ids {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(id))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := io.WriteString(w, id); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := w.Write(float32SliceToBytes(m.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents. Dimensions must match.
// A missing file yields an error wrapping os.ErrNotExist and leaves the index unchanged.
func (m *MemoryIndex) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat index file: %w", err)
	}
	remaining := info.Size() - memoryHeaderSize
	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != memoryMagic {
		return fmt.Errorf("%w: bad magic", ErrBadBlob)
	}
	var header [3]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("%w: read header: %v", ErrBadBlob, err)
	}
	version, dim, n := header[0], int(header[1]), header[2]
	if version != memoryFormatVersion {
		return fmt.Errorf("%w: unsupported blob version %d", ErrBadBlob, version)
	}
	if dim != m.dimensions {
		return fmt.Errorf("%w: file has dimension %d, index expects %d", ErrBadBlob, dim, m.dimensions)
	}

	// Header fields are untrusted: every size is checked against the bytes actually on disk
	// before anything is allocated from it.
	recordMin := int64(4 + dim*4)
	if remaining < 0 || int64(n) > remaining/recordMin {
		return fmt.Errorf("%w: header claims %d vectors, file has %d bytes of records", ErrBadBlob, n, remaining)
	}

	var ids []string
	var vectors [][]float32
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var idLen uint32
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return fmt.Errorf("%w: read id len: %v", ErrBadBlob, err)
		}
		remaining -= 4
		if int64(idLen) > remaining-int64(dim*4) {
			return fmt.Errorf("%w: id length %d exceeds remaining %d bytes", ErrBadBlob, idLen, remaining)
		}
		remaining -= int64(idLen) + int64(dim*4)
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(r, idBytes); err != nil {
			return fmt.Errorf("%w: read id: %v", ErrBadBlob, err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("%w: read vector: %v", ErrBadBlob, err)
		}
		ids = append(ids, string(idBytes))
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}

	m.mu.Lock()
	m.ids = ids
	m.vectors = vectors
	m.mu.Unlock()
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// IDs returns a copy of the stored IDs in position order.
func (m *MemoryIndex) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
