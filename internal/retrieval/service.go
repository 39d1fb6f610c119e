// Package retrieval ties chunking, the vector store, and generation into the ingest, query,
// chat, and explain operations.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ParsaBazrpash/MirrorAPI/internal/embedding"
	"github.com/ParsaBazrpash/MirrorAPI/internal/generation"
	"github.com/ParsaBazrpash/MirrorAPI/internal/indexer"
	"github.com/ParsaBazrpash/MirrorAPI/internal/models"
	"github.com/ParsaBazrpash/MirrorAPI/internal/schemadiff"
	"github.com/ParsaBazrpash/MirrorAPI/internal/storage"
	"github.com/ParsaBazrpash/MirrorAPI/internal/vector"
)

// Messages returned to clients in place of results.
const (
	NoTextMessage        = "No text found to ingest."
	IndexNotFoundMessage = "Index not found. Run /ingest first."
	NoResponseMessage    = "No response generated."
)

// Token caps and nucleus sampling per generation kind.
const (
	chatMaxTokens    = 500
	chatTopP         = 0.9
	insightMaxTokens = 800
	insightTopP      = 0.95
)

var (
	// ErrIndexNotFound is returned when no index is in memory and none can be loaded from disk.
	ErrIndexNotFound = errors.New("index not found")
	// ErrGenerationFailed wraps backend errors from Explain.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrNoGenerator is returned when Chat or Explain is called without a backend.
	ErrNoGenerator = errors.New("no generator configured")
)

// Defaults are the values applied when a request leaves a knob unset.
type Defaults struct {
	TopK         int
	MaxNewTokens int
	Temperature  float64
	InsightModel string
}

// DefaultDefaults mirrors the TOP_K, MAX_NEW_TOKENS, and TEMPERATURE environment defaults.
func DefaultDefaults() Defaults {
	return Defaults{TopK: 5, MaxNewTokens: 512, Temperature: 0.3}
}

// StrategyReporter exposes which embedding strategy served the last call.
type StrategyReporter interface {
	LastStrategy() embedding.Strategy
}

// Upload is a file posted for ingestion.
type Upload struct {
	Name    string
	Content []byte
}

// Status summarizes the service for health and status endpoints.
type Status struct {
	Index      vector.Stats      `json:"index"`
	Strategy   string            `json:"embedding_strategy,omitempty"`
	LastIngest *models.IngestRun `json:"last_ingest,omitempty"`
}

// Service implements the retrieval operations over one Store.
type Service struct {
	store    *vector.Store
	chunker  *indexer.Chunker
	loader   *indexer.Loader
	chat     generation.Generator
	insight  generation.Generator
	history  storage.Storage
	strategy StrategyReporter
	defaults Defaults
	logger   *zap.Logger

	loadMu sync.Mutex
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithChunker overrides the default 900/150 chunker.
func WithChunker(c *indexer.Chunker) Option {
	return func(s *Service) { s.chunker = c }
}

// WithLoader sets the folder and upload loader.
func WithLoader(l *indexer.Loader) Option {
	return func(s *Service) { s.loader = l }
}

// WithChatGenerator sets the backend for Chat.
func WithChatGenerator(g generation.Generator) Option {
	return func(s *Service) { s.chat = g }
}

// WithInsightGenerator sets the backend for Explain. Without one, Explain uses the chat backend.
func WithInsightGenerator(g generation.Generator) Option {
	return func(s *Service) { s.insight = g }
}

// WithHistory records every ingest run.
func WithHistory(h storage.Storage) Option {
	return func(s *Service) { s.history = h }
}

// WithStrategyReporter lets ingest history and status name the embedding strategy in use.
func WithStrategyReporter(r StrategyReporter) Option {
	return func(s *Service) { s.strategy = r }
}

// WithDefaults sets request defaults. Zero fields keep the built-in values.
func WithDefaults(d Defaults) Option {
	return func(s *Service) {
		if d.TopK > 0 {
			s.defaults.TopK = d.TopK
		}
		if d.MaxNewTokens > 0 {
			s.defaults.MaxNewTokens = d.MaxNewTokens
		}
		if d.Temperature > 0 {
			s.defaults.Temperature = d.Temperature
		}
		if d.InsightModel != "" {
			s.defaults.InsightModel = d.InsightModel
		}
	}
}

// NewService creates a service over store.
func NewService(store *vector.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		chunker:  indexer.NewChunker(indexer.DefaultChunkSize, indexer.DefaultChunkOverlap),
		defaults: DefaultDefaults(),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loader == nil {
		s.loader = indexer.NewLoader(nil, indexer.WithLogger(s.logger))
	}
	return s
}

// Defaults returns the effective request defaults.
func (s *Service) Defaults() Defaults {
	return s.defaults
}

// Ingest chunks docs and rebuilds the index from the full set. No chunks is reported as
// OK=false with NoTextMessage and leaves the index as it was.
func (s *Service) Ingest(ctx context.Context, docs []models.SourceDocument) (models.IngestResult, error) {
	run := &models.IngestRun{StartedAt: s.now(), Sources: len(docs)}

	chunks := s.chunker.ChunkAll(docs)
	if len(chunks) == 0 {
		run.Status = models.IngestStatusEmpty
		s.record(ctx, run)
		return models.IngestResult{OK: false, Message: NoTextMessage}, nil
	}

	if err := s.store.Build(ctx, chunks); err != nil {
		run.Status = models.IngestStatusFailed
		run.Error = err.Error()
		s.record(ctx, run)
		return models.IngestResult{}, fmt.Errorf("build index: %w", err)
	}

	run.Status = models.IngestStatusOK
	run.Chunks = len(chunks)
	run.Dimensions = s.store.Stats().Dimensions
	s.record(ctx, run)
	s.logger.Info("ingest complete",
		zap.Int("sources", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.String("strategy", run.Strategy),
	)
	return models.IngestResult{OK: true, Chunks: len(chunks), Sources: len(docs)}, nil
}

// IngestFolder loads every matching file under dir and ingests them together.
func (s *Service) IngestFolder(ctx context.Context, dir string) (models.IngestResult, error) {
	docs, err := s.loader.LoadFolder(ctx, dir)
	if err != nil {
		return models.IngestResult{}, fmt.Errorf("load folder: %w", err)
	}
	return s.Ingest(ctx, docs)
}

// IngestUploads converts uploaded files and ingests them together. Files that cannot be read as
// text are logged and skipped.
func (s *Service) IngestUploads(ctx context.Context, uploads []Upload) (models.IngestResult, error) {
	docs := make([]models.SourceDocument, 0, len(uploads))
	for _, u := range uploads {
		doc, err := s.loader.LoadBytes(u.Name, u.Content)
		if err != nil {
			s.logger.Warn("skipping upload", zap.String("name", u.Name), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	return s.Ingest(ctx, docs)
}

func (s *Service) record(ctx context.Context, run *models.IngestRun) {
	if s.strategy != nil {
		run.Strategy = string(s.strategy.LastStrategy())
	}
	run.FinishedAt = s.now()
	if s.history == nil {
		return
	}
	if err := s.history.RecordIngest(ctx, run); err != nil {
		s.logger.Warn("failed to record ingest run", zap.Error(err))
	}
}

// Query returns the top k chunks for q, loading the persisted index on first use. k <= 0 uses
// the configured top_k.
func (s *Service) Query(ctx context.Context, q string, k int) ([]models.Hit, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = s.defaults.TopK
	}
	hits, err := s.store.Search(ctx, q, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return hits, nil
}

func (s *Service) ensureLoaded() error {
	if s.store.Loaded() {
		return nil
	}
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if s.store.Loaded() {
		return nil
	}
	if err := s.store.Load(); err != nil {
		switch {
		case errors.Is(err, vector.ErrIndexNotFound),
			errors.Is(err, vector.ErrIndexCorrupt),
			errors.Is(err, vector.ErrUnsupportedVersion):
			s.logger.Debug("no usable index on disk", zap.Error(err))
			return fmt.Errorf("%w: %v", ErrIndexNotFound, err)
		default:
			return fmt.Errorf("load index: %w", err)
		}
	}
	return nil
}

// Chat retrieves context for the question and asks the chat backend to answer from it.
func (s *Service) Chat(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	if err := req.Validate(); err != nil {
		return models.ChatResponse{}, err
	}
	if s.chat == nil {
		return models.ChatResponse{}, ErrNoGenerator
	}
	hits, err := s.Query(ctx, req.Query, req.TopK)
	if err != nil {
		return models.ChatResponse{}, err
	}

	contexts := make([]models.Chunk, len(hits))
	scores := make([]float64, len(hits))
	for i, h := range hits {
		contexts[i] = h.Chunk
		scores[i] = h.Score
	}
	prompt := schemadiff.NewChatPrompt(contexts, req.Query)
	s.logger.Debug("chat prompt", zap.String("prompt", prompt.String()))

	resp, err := s.chat.Generate(ctx, generation.Request{
		System:      schemadiff.ChatSystemPrompt,
		Prompt:      prompt.UserMessage(),
		Context:     prompt.Contexts,
		MaxTokens:   min(s.maxTokens(req.MaxNewTokens), chatMaxTokens),
		Temperature: s.temperature(req.Temperature),
		TopP:        chatTopP,
	})
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("generate: %w", err)
	}
	return models.ChatResponse{
		OK:       true,
		Answer:   strings.TrimSpace(resp.Text),
		Contexts: contexts,
		Scores:   scores,
	}, nil
}

// Explain asks the insight backend why a schema changed. It does not touch the index.
func (s *Service) Explain(ctx context.Context, req models.GenerateRequest) (models.GenerateResponse, error) {
	g := s.insight
	if g == nil {
		g = s.chat
	}
	if g == nil {
		return models.GenerateResponse{}, ErrNoGenerator
	}
	resp, err := g.Generate(ctx, generation.Request{
		System:      schemadiff.InsightSystemPrompt,
		Prompt:      schemadiff.BuildInsightMessage(req),
		Model:       s.defaults.InsightModel,
		MaxTokens:   min(s.maxTokens(req.MaxNewTokens), insightMaxTokens),
		Temperature: s.temperature(req.Temperature),
		TopP:        insightTopP,
		Stream:      true,
	})
	if err != nil {
		s.logger.Warn("explain failed", zap.Error(err))
		return models.GenerateResponse{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		answer = NoResponseMessage
	}
	return models.GenerateResponse{
		OK:        true,
		Answer:    answer,
		Reasoning: strings.TrimSpace(resp.Reasoning),
		Model:     resp.Model,
	}, nil
}

func (s *Service) maxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.defaults.MaxNewTokens
}

func (s *Service) temperature(requested *float64) float64 {
	if requested != nil && *requested >= 0 {
		return *requested
	}
	return s.defaults.Temperature
}

// Status reports index statistics and the latest ingest run.
func (s *Service) Status(ctx context.Context) Status {
	st := Status{Index: s.store.Stats()}
	if s.strategy != nil {
		st.Strategy = string(s.strategy.LastStrategy())
	}
	if s.history != nil {
		if run, err := s.history.LastIngest(ctx); err == nil {
			st.LastIngest = run
		} else if !errors.Is(err, storage.ErrNoIngests) {
			s.logger.Warn("failed to read ingest history", zap.Error(err))
		}
	}
	return st
}
