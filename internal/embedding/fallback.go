package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrAllStrategiesFailed is returned only when every strategy in the chain failed; a chain
// ending in HashEmbedder never returns it.
var ErrAllStrategiesFailed = errors.New("all embedding strategies failed")

// Link is one named strategy of a fallback chain.
type Link struct {
	Name     Strategy
	Embedder Embedder
}

type link struct {
	Link
	downUntil time.Time
}

// FallbackOption configures a FallbackEmbedder.
type FallbackOption func(*FallbackEmbedder)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) FallbackOption {
	return func(f *FallbackEmbedder) {
		f.logger = logger
	}
}

// WithCooldown skips a strategy for d after it fails. Zero (the default) retries every strategy
// on every call.
func WithCooldown(d time.Duration) FallbackOption {
	return func(f *FallbackEmbedder) {
		f.cooldown = d
	}
}

// FallbackEmbedder tries each strategy in order and returns the first success. Strategy errors
// are logged and swallowed; callers only see an error when the context is done or every
// strategy failed.
type FallbackEmbedder struct {
	links    []*link
	cooldown time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.Mutex // guards links[i].downUntil
	last atomic.Value
	dims atomic.Int64
}

// NewFallbackEmbedder builds a chain from links, tried first to last.
func NewFallbackEmbedder(links []Link, opts ...FallbackOption) *FallbackEmbedder {
	f := &FallbackEmbedder{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, l := range links {
		if l.Embedder != nil {
			f.links = append(f.links, &link{Link: l})
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Embed embeds a single text through the chain.
func (f *FallbackEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts with the first strategy that succeeds. One batch never mixes
// strategies.
func (f *FallbackEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	var errs []error
	for _, l := range f.links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.isDown(l) {
			f.logger.Debug("skipping embedding strategy in cooldown", zap.String("strategy", string(l.Name)))
			continue
		}
		vecs, err := l.Embedder.EmbedBatch(ctx, texts)
		if err == nil {
			err = validateBatch(vecs, len(texts))
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.markDown(l)
			f.logger.Warn("embedding strategy failed, falling back",
				zap.String("strategy", string(l.Name)),
				zap.Int("texts", len(texts)),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", l.Name, err))
			continue
		}
		if l.Name == StrategyHash {
			f.logger.Warn("using deterministic hash embeddings; retrieval quality is degraded",
				zap.Int("texts", len(texts)))
		}
		f.last.Store(l.Name)
		f.dims.Store(int64(len(vecs[0])))
		return vecs, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrAllStrategiesFailed, errors.Join(errs...))
}

func validateBatch(vecs [][]float32, n int) error {
	if len(vecs) != n {
		return fmt.Errorf("got %d vectors for %d texts", len(vecs), n)
	}
	dim := len(vecs[0])
	for _, v := range vecs {
		if len(v) == 0 || len(v) != dim {
			return errors.New("ragged or empty vectors")
		}
	}
	return nil
}

func (f *FallbackEmbedder) isDown(l *link) bool {
	if f.cooldown <= 0 {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now().Before(l.downUntil)
}

func (f *FallbackEmbedder) markDown(l *link) {
	if f.cooldown <= 0 {
		return
	}
	f.mu.Lock()
	l.downUntil = f.now().Add(f.cooldown)
	f.mu.Unlock()
}

// LastStrategy reports which strategy produced the most recent successful batch, or "" if
// none has succeeded yet.
func (f *FallbackEmbedder) LastStrategy() Strategy {
	s, _ := f.last.Load().(Strategy)
	return s
}

// Dimensions returns the dimension of the most recent successful batch, or 0.
func (f *FallbackEmbedder) Dimensions() int {
	return int(f.dims.Load())
}

// Close closes every strategy.
func (f *FallbackEmbedder) Close() error {
	var errs []error
	for _, l := range f.links {
		if err := l.Embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.Name, err))
		}
	}
	return errors.Join(errs...)
}
