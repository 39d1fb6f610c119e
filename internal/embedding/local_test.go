package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmbedder_LoadsOnce(t *testing.T) {
	var loads atomic.Int32
	l := newLocalEmbedder(func() (Embedder, error) {
		loads.Add(1)
		return NewHashEmbedder(16), nil
	}, nil)

	assert.Equal(t, 0, l.Dimensions(), "nothing loaded yet")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Embed(context.Background(), "hello")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	assert.Equal(t, 16, l.Dimensions())
	require.NoError(t, l.Close())
}

func TestLocalEmbedder_RemembersFailure(t *testing.T) {
	var loads atomic.Int32
	l := newLocalEmbedder(func() (Embedder, error) {
		loads.Add(1)
		return nil, errors.New("model file missing")
	}, nil)

	_, err := l.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
	_, err = l.Embed(context.Background(), "b")
	require.Error(t, err)
	assert.Equal(t, int32(1), loads.Load())
}

func TestLocalEmbedder_NoModelConfigured(t *testing.T) {
	l := NewLocalEmbedder(ONNXConfig{}, "", nil)
	_, err := l.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestLocalEmbedder_CloseBeforeUse(t *testing.T) {
	var loads atomic.Int32
	l := newLocalEmbedder(func() (Embedder, error) {
		loads.Add(1)
		return NewHashEmbedder(4), nil
	}, nil)
	require.NoError(t, l.Close())
	_, err := l.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, int32(0), loads.Load())
}

func TestMeanPool(t *testing.T) {
	hidden := []float32{
		1, 2,
		3, 4,
		100, 100,
	}
	dst := make([]float32, 2)
	meanPool(dst, hidden, []int64{1, 1, 0})
	assert.Equal(t, []float32{2, 3}, dst)

	meanPool(dst, hidden, []int64{0, 0, 0})
	assert.Equal(t, []float32{0, 0}, dst)
}

func TestONNXConfigDefaults(t *testing.T) {
	c := ONNXConfig{}.withDefaults()
	assert.Equal(t, 384, c.Dimensions)
	assert.Equal(t, 256, c.MaxTokens)
	assert.Equal(t, "output", c.OutputName)
}
