package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder returns a constant vector or a fixed error, counting calls.
type stubEmbedder struct {
	vec   []float32
	err   error
	calls atomic.Int32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedEachOne(s, ctx, text)
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = append([]float32(nil), s.vec...)
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return len(s.vec) }
func (s *stubEmbedder) Close() error    { return nil }

func embedEachOne(e Embedder, ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func TestFallbackEmbedder_FirstSuccessWins(t *testing.T) {
	local := &stubEmbedder{vec: []float32{1, 0}}
	remote := &stubEmbedder{vec: []float32{0, 1}}
	f := NewFallbackEmbedder([]Link{{StrategyLocal, local}, {StrategyRemote, remote}})

	vecs, err := f.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {1, 0}}, vecs)
	assert.Equal(t, StrategyLocal, f.LastStrategy())
	assert.Equal(t, int32(0), remote.calls.Load())
	assert.Equal(t, 2, f.Dimensions())
}

func TestFallbackEmbedder_FallsThroughInOrder(t *testing.T) {
	local := &stubEmbedder{err: errors.New("no model")}
	remote := &stubEmbedder{err: errors.New("503")}
	f := NewFallbackEmbedder([]Link{
		{StrategyLocal, local},
		{StrategyRemote, remote},
		{StrategyHash, NewHashEmbedder(8)},
	})

	v, err := f.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, v, 8)
	assert.Equal(t, StrategyHash, f.LastStrategy())
	assert.Equal(t, int32(1), local.calls.Load())
	assert.Equal(t, int32(1), remote.calls.Load())

	// Without a cooldown every call retries the chain from the top.
	_, err = f.Embed(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, int32(2), local.calls.Load())
}

func TestFallbackEmbedder_RejectsMalformedBatch(t *testing.T) {
	short := &stubEmbedder{vec: []float32{}}
	good := &stubEmbedder{vec: []float32{1, 2, 3}}
	f := NewFallbackEmbedder([]Link{{StrategyRemote, short}, {StrategyHash, good}})

	vecs, err := f.EmbedBatch(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2, 3}}, vecs)
	assert.Equal(t, StrategyHash, f.LastStrategy())
}

func TestFallbackEmbedder_AllFail(t *testing.T) {
	f := NewFallbackEmbedder([]Link{
		{StrategyLocal, &stubEmbedder{err: errors.New("a")}},
		{StrategyRemote, &stubEmbedder{err: errors.New("b")}},
	})
	_, err := f.EmbedBatch(context.Background(), []string{"x"})
	require.ErrorIs(t, err, ErrAllStrategiesFailed)
	assert.Equal(t, Strategy(""), f.LastStrategy())
}

func TestFallbackEmbedder_Cooldown(t *testing.T) {
	local := &stubEmbedder{err: errors.New("no model")}
	hash := &stubEmbedder{vec: []float32{1}}
	f := NewFallbackEmbedder([]Link{{StrategyLocal, local}, {StrategyHash, hash}}, WithCooldown(time.Minute))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := f.Embed(ctx, "a")
	require.NoError(t, err)
	_, err = f.Embed(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int32(1), local.calls.Load(), "local is skipped during cooldown")

	now = now.Add(2 * time.Minute)
	_, err = f.Embed(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int32(2), local.calls.Load(), "local is retried after cooldown")
}

func TestFallbackEmbedder_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hash := &stubEmbedder{vec: []float32{1}}
	f := NewFallbackEmbedder([]Link{{StrategyHash, hash}})
	_, err := f.EmbedBatch(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), hash.calls.Load())
}

func TestFallbackEmbedder_Empty(t *testing.T) {
	f := NewFallbackEmbedder(nil)
	vecs, err := f.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}
