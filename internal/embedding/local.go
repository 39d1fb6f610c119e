package embedding

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ONNXConfig describes the local model.
type ONNXConfig struct {
	ModelPath   string
	LibraryPath string // onnxruntime shared library; empty uses the platform default
	Dimensions  int
	MaxTokens   int
	CacheSize   int
	OutputName  string // "output" (pooled) or "last_hidden_state" (mean-pooled here)
	Tokenizer   Tokenizer
}

func (c ONNXConfig) withDefaults() ONNXConfig {
	if c.Dimensions <= 0 {
		c.Dimensions = 384
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 256
	}
	if c.OutputName == "" {
		c.OutputName = "output"
	}
	return c
}

// LocalEmbedder wraps the on-device model behind a once-only lazy load: the model is loaded on
// first use and shared by every caller for the life of the process. A load failure is also
// remembered, so a missing model costs one attempt rather than one per call.
type LocalEmbedder struct {
	load   func() (Embedder, error)
	logger *zap.Logger

	once  sync.Once
	inner Embedder
	err   error
	dims  atomic.Int64
}

// NewLocalEmbedder returns a lazily loaded ONNX embedder. vocabPath, when set, selects the
// WordPiece tokenizer.
func NewLocalEmbedder(cfg ONNXConfig, vocabPath string, logger *zap.Logger) *LocalEmbedder {
	return newLocalEmbedder(func() (Embedder, error) {
		if cfg.ModelPath == "" {
			return nil, fmt.Errorf("no local model configured")
		}
		if vocabPath != "" {
			tok, err := LoadWordPieceTokenizer(vocabPath)
			if err != nil {
				return nil, err
			}
			cfg.Tokenizer = tok
		}
		return NewONNXEmbedder(cfg)
	}, logger)
}

func newLocalEmbedder(load func() (Embedder, error), logger *zap.Logger) *LocalEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalEmbedder{load: load, logger: logger}
}

func (l *LocalEmbedder) get() (Embedder, error) {
	l.once.Do(func() {
		l.inner, l.err = l.load()
		if l.err != nil {
			l.logger.Warn("local embedding model unavailable", zap.Error(l.err))
			return
		}
		l.dims.Store(int64(l.inner.Dimensions()))
		l.logger.Info("local embedding model loaded", zap.Int("dimensions", l.inner.Dimensions()))
	})
	return l.inner, l.err
}

// Embed loads the model if needed and embeds text.
func (l *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m, err := l.get()
	if err != nil {
		return nil, err
	}
	return m.Embed(ctx, text)
}

// EmbedBatch loads the model if needed and embeds texts.
func (l *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m, err := l.get()
	if err != nil {
		return nil, err
	}
	return m.EmbedBatch(ctx, texts)
}

// Dimensions returns the model dimension, or 0 before a successful load.
func (l *LocalEmbedder) Dimensions() int {
	return int(l.dims.Load())
}

// Close releases the model if it was loaded.
func (l *LocalEmbedder) Close() error {
	// Mark the once as done so a late caller cannot load after shutdown.
	l.once.Do(func() { l.err = fmt.Errorf("local embedder closed") })
	if l.inner != nil {
		return l.inner.Close()
	}
	return nil
}

// meanPool averages token vectors (row-major [maxTokens, dim] in hidden) where mask is 1.
func meanPool(dst []float32, hidden []float32, mask []int64) {
	dim := len(dst)
	for i := range dst {
		dst[i] = 0
	}
	var count float32
	for tok, m := range mask {
		if m == 0 {
			continue
		}
		row := hidden[tok*dim : (tok+1)*dim]
		for i, v := range row {
			dst[i] += v
		}
		count++
	}
	if count == 0 {
		return
	}
	for i := range dst {
		dst[i] /= count
	}
}
