package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ParsaBazrpash/MirrorAPI/internal/models"
	"github.com/ParsaBazrpash/MirrorAPI/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MetaFileName is the JSON sidecar written next to the vector blob.
const MetaFileName = "meta.json"

// metaVersion is the current sidecar schema version. Sidecars without a version field are read
// as version 1.
const metaVersion = 1

var (
	// ErrEmptyBuild is returned by Build when there are no chunks; the index is left untouched.
	ErrEmptyBuild = errors.New("no chunks to build")
	// ErrNoIndex is returned by Save when nothing has been built or loaded.
	ErrNoIndex = errors.New("no index in memory")
	// ErrIndexNotFound is returned by Load when either persisted file is missing.
	ErrIndexNotFound = errors.New("index not found")
	// ErrIndexCorrupt is returned by Load when the blob and sidecar disagree or cannot be parsed.
	ErrIndexCorrupt = errors.New("index corrupt")
	// ErrUnsupportedVersion is returned by Load for a sidecar written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported index version")
	// ErrDimensionMismatch is returned when embeddings disagree on dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// TextEmbedder turns texts into vectors. The vectors need not be normalized.
type TextEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type sidecar struct {
	Version   int            `json:"version,omitempty"`
	Meta      []models.Chunk `json:"meta"`
	Dim       int            `json:"dim"`
	IndexType string         `json:"index_type,omitempty"`
	Count     *int           `json:"count,omitempty"`
	BuildID   string         `json:"build_id,omitempty"`
	BuiltAt   string         `json:"built_at,omitempty"`
}

// Stats describes the in-memory index.
type Stats struct {
	Loaded     bool   `json:"loaded"`
	Chunks     int    `json:"chunks"`
	Dimensions int    `json:"dimensions"`
	IndexType  string `json:"index_type"`
	BuildID    string `json:"build_id,omitempty"`
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithIndexType selects the flat index backend.
func WithIndexType(indexType IndexType) StoreOption {
	return func(s *Store) {
		s.indexType = indexType
	}
}

// Store is the persisted retrieval index: a flat inner-product index over L2-normalized
// embeddings, the chunk metadata parallel to it, and the embedding dimension.
//
// Search and Stats run under the read lock. Build, Append, and Load take the write lock for the
// swap; buildMu serializes them end to end so embedding happens without blocking readers.
type Store struct {
	embedder  TextEmbedder
	dir       string
	indexType IndexType
	logger    *zap.Logger

	buildMu sync.Mutex
	mu      sync.RWMutex
	index   VectorIndex
	meta    []models.Chunk
	dim     int
	buildID string
}

// NewStore creates a store persisting under dir. Nothing is read from disk until Load.
func NewStore(embedder TextEmbedder, dir string, opts ...StoreOption) *Store {
	s := &Store{
		embedder:  embedder,
		dir:       dir,
		indexType: IndexTypeMemory,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Paths returns the vector blob path and the sidecar path.
func (s *Store) Paths() (indexPath, metaPath string) {
	return filepath.Join(s.dir, s.indexType.BlobFileName()), filepath.Join(s.dir, MetaFileName)
}

// Build embeds every chunk and replaces the index, metadata, and dimension, then persists both
// files. With no chunks it returns ErrEmptyBuild and changes nothing.
func (s *Store) Build(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return ErrEmptyBuild
	}
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	vectors, dim, err := s.embed(ctx, chunks, 0)
	if err != nil {
		return err
	}
	idx, err := s.indexType.NewIndex(dim)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := idx.Add(ctx, chunkIDs(chunks), vectors); err != nil {
		idx.Close()
		return fmt.Errorf("add vectors: %w", err)
	}
	meta := make([]models.Chunk, len(chunks))
	copy(meta, chunks)

	s.mu.Lock()
	defer s.mu.Unlock()
	buildID := uuid.NewString()
	if err := s.persist(idx, meta, dim, buildID); err != nil {
		idx.Close()
		return err
	}
	s.swap(idx, meta, dim, buildID)
	s.logger.Info("index built",
		zap.Int("chunks", len(meta)),
		zap.Int("dimensions", dim),
		zap.String("build_id", buildID))
	return nil
}

// Append adds chunks to the existing index without re-embedding what is already there, then
// persists. On a store with nothing built it behaves like Build.
func (s *Store) Append(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.RLock()
	empty := s.index == nil
	s.mu.RUnlock()
	if empty {
		return s.Build(ctx, chunks)
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	s.mu.RLock()
	dim := s.dim
	s.mu.RUnlock()
	vectors, _, err := s.embed(ctx, chunks, dim)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Add(ctx, chunkIDs(chunks), vectors); err != nil {
		return fmt.Errorf("add vectors: %w", err)
	}
	s.meta = append(s.meta, chunks...)
	s.buildID = uuid.NewString()
	if err := s.persist(s.index, s.meta, s.dim, s.buildID); err != nil {
		return err
	}
	s.logger.Info("index appended", zap.Int("added", len(chunks)), zap.Int("chunks", len(s.meta)))
	return nil
}

// embed returns normalized vectors for chunks. If wantDim is non-zero every vector must have it.
func (s *Store) embed(ctx context.Context, chunks []models.Chunk, wantDim int) ([][]float32, int, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, 0, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	dim := wantDim
	if dim == 0 {
		dim = len(vectors[0])
	}
	if dim == 0 {
		return nil, 0, fmt.Errorf("embed chunks: %w: empty vector", ErrDimensionMismatch)
	}
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, 0, fmt.Errorf("chunk %s: %w: got %d, want %d", chunks[i].ID, ErrDimensionMismatch, len(v), dim)
		}
		out[i] = make([]float32, dim)
		copy(out[i], v)
		utils.NormalizeL2(out[i])
	}
	return out, dim, nil
}

// Search returns up to k hits for query, highest score first. An empty or never-built store
// returns no hits and no error.
func (s *Store) Search(ctx context.Context, query string, k int) ([]models.Hit, error) {
	if k <= 0 {
		return []models.Hit{}, nil
	}
	s.mu.RLock()
	empty := s.index == nil || len(s.meta) == 0
	s.mu.RUnlock()
	if empty {
		return []models.Hit{}, nil
	}

	vecs, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	q := make([]float32, len(vecs[0]))
	copy(q, vecs[0])
	utils.NormalizeL2(q)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return []models.Hit{}, nil
	}
	if len(q) != s.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(q), s.dim)
	}
	results, err := s.index.Search(ctx, q, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	hits := make([]models.Hit, 0, len(results))
	for _, r := range results {
		if r.Position < 0 || r.Position >= len(s.meta) {
			continue
		}
		hits = append(hits, models.Hit{Score: r.Score, Chunk: s.meta[r.Position]})
	}
	return hits, nil
}

// Save writes the current index and sidecar. It returns ErrNoIndex if nothing is in memory.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return ErrNoIndex
	}
	return s.persist(s.index, s.meta, s.dim, s.buildID)
}

// persist stages the blob and the sidecar as temp files and renames them into place only once
// both are fully written. Caller holds the write lock.
func (s *Store) persist(idx VectorIndex, meta []models.Chunk, dim int, buildID string) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	indexPath, metaPath := s.Paths()

	count := len(meta)
	data, err := json.Marshal(sidecar{
		Version:   metaVersion,
		Meta:      meta,
		Dim:       dim,
		IndexType: idx.Type(),
		Count:     &count,
		BuildID:   buildID,
		BuiltAt:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}

	tmpIndex, tmpMeta := indexPath+".tmp", metaPath+".tmp"
	if err := idx.Save(tmpIndex); err != nil {
		os.Remove(tmpIndex)
		return fmt.Errorf("save index: %w", err)
	}
	if err := writeTemp(tmpMeta, data); err != nil {
		os.Remove(tmpIndex)
		return fmt.Errorf("save meta: %w", err)
	}
	if err := os.Rename(tmpIndex, indexPath); err != nil {
		os.Remove(tmpIndex)
		os.Remove(tmpMeta)
		return fmt.Errorf("save index: %w", err)
	}
	if err := os.Rename(tmpMeta, metaPath); err != nil {
		os.Remove(tmpMeta)
		return fmt.Errorf("save meta: %w", err)
	}
	return nil
}

// Load restores the index pair from disk, replacing anything in memory. It is serialized with
// Build and Append. The in-memory state is unchanged on error.
func (s *Store) Load() error {
	// A build finishing between the read and the swap would otherwise be replaced by the older pair.
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	indexPath, metaPath := s.Paths()
	for _, p := range []string{indexPath, metaPath} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrIndexNotFound, p)
			}
			return fmt.Errorf("stat %s: %w", p, err)
		}
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("read meta: %w", err)
	}
	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return fmt.Errorf("%w: decode meta: %v", ErrIndexCorrupt, err)
	}
	if sc.Version == 0 {
		sc.Version = 1
	}
	if sc.Version > metaVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, sc.Version)
	}
	if sc.Dim <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", ErrIndexCorrupt, sc.Dim)
	}
	if sc.IndexType != "" && sc.IndexType != string(s.indexType) {
		return fmt.Errorf("%w: index type %q on disk, %q configured", ErrIndexCorrupt, sc.IndexType, s.indexType)
	}
	if sc.Count != nil && *sc.Count != len(sc.Meta) {
		return fmt.Errorf("%w: sidecar count %d, meta has %d", ErrIndexCorrupt, *sc.Count, len(sc.Meta))
	}

	idx, err := s.indexType.NewIndex(sc.Dim)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := idx.Load(indexPath); err != nil {
		idx.Close()
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrIndexNotFound, indexPath)
		}
		return fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	if idx.Size() != len(sc.Meta) {
		idx.Close()
		return fmt.Errorf("%w: index has %d vectors, meta has %d entries", ErrIndexCorrupt, idx.Size(), len(sc.Meta))
	}
	for i, id := range idx.IDs() {
		if id != "" && id != sc.Meta[i].ID {
			idx.Close()
			return fmt.Errorf("%w: position %d is %q in index, %q in meta", ErrIndexCorrupt, i, id, sc.Meta[i].ID)
		}
	}

	s.mu.Lock()
	s.swap(idx, sc.Meta, sc.Dim, sc.BuildID)
	s.mu.Unlock()
	s.logger.Info("index loaded", zap.Int("chunks", len(sc.Meta)), zap.Int("dimensions", sc.Dim))
	return nil
}

// swap installs a new index. Caller holds the write lock.
func (s *Store) swap(idx VectorIndex, meta []models.Chunk, dim int, buildID string) {
	if s.index != nil && s.index != idx {
		_ = s.index.Close()
	}
	s.index = idx
	s.meta = meta
	s.dim = dim
	s.buildID = buildID
}

// Loaded reports whether an index is in memory.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index != nil
}

// Size returns the number of indexed chunks.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.meta)
}

// Stats returns a snapshot of the in-memory index.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Loaded:     s.index != nil,
		Chunks:     len(s.meta),
		Dimensions: s.dim,
		IndexType:  string(s.indexType),
		BuildID:    s.buildID,
	}
}

// Close releases the in-memory index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	s.meta = nil
	s.dim = 0
	return err
}

func chunkIDs(chunks []models.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

// writeTemp writes data to path and syncs it. The file is removed on failure.
func writeTemp(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}
