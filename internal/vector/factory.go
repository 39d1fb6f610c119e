package vector

import (
	"errors"
	"fmt"
	"strings"
)

// IndexType names a flat index backend.
type IndexType string

const (
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS is IndexFlatIP through the FAISS C API; only present with -tags=faiss and cgo.
	IndexTypeFAISS IndexType = "faiss"
)

// ErrUnknownIndexType is returned for index names other than memory and faiss.
var ErrUnknownIndexType = errors.New("unknown index type")

// ParseIndexType maps a configured name onto an IndexType. An empty name selects memory.
func ParseIndexType(name string) (IndexType, error) {
	t := IndexType(strings.ToLower(strings.TrimSpace(name)))
	switch t {
	case "":
		return IndexTypeMemory, nil
	case IndexTypeMemory, IndexTypeFAISS:
		return t, nil
	}
	return "", fmt.Errorf("%w %q (want memory or faiss)", ErrUnknownIndexType, name)
}

// ResolveIndexType parses name and downgrades faiss to memory when this binary was built without
// FAISS. downgraded reports whether that happened.
func ResolveIndexType(name string) (t IndexType, downgraded bool, err error) {
	t, err = ParseIndexType(name)
	if err != nil {
		return "", false, err
	}
	if t == IndexTypeFAISS && !IsFAISSAvailable() {
		return IndexTypeMemory, true, nil
	}
	return t, false, nil
}

// BlobFileName is the file the vector blob of this index type is written to, next to the sidecar.
func (t IndexType) BlobFileName() string {
	if t == IndexTypeFAISS {
		return "index.faiss"
	}
	return "index.bin"
}

// NewIndex allocates an empty index of type t holding vectors of length dim.
func (t IndexType) NewIndex(dim int) (VectorIndex, error) {
	switch t {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dim)
	case IndexTypeFAISS:
		return NewFAISSIndex(dim)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownIndexType, string(t))
}

// IsFAISSAvailable reports whether FAISS support is compiled in.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
