package embedding

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(0)
	ctx := context.Background()

	a, err := e.Embed(ctx, "The user.email field was removed")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "The user.email field was removed")
	require.NoError(t, err)

	assert.Len(t, a, DefaultHashDimensions)
	assert.Equal(t, a, b)
	assert.Equal(t, DefaultHashDimensions, e.Dimensions())
}

func TestHashEmbedder_Features(t *testing.T) {
	e := NewHashEmbedder(8)
	text := "  Hello World  "
	v, err := e.Embed(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, v, 8)

	prefix := func(s string) uint64 {
		sum := md5.Sum([]byte(s))
		n, err := strconv.ParseUint(hex.EncodeToString(sum[:])[:8], 16, 64)
		require.NoError(t, err)
		return n
	}

	assert.InDelta(t, float64(prefix("hello world")%(1<<31))/float64(1<<31), v[0], 1e-6)
	assert.InDelta(t, 15.0/1000, v[1], 1e-6)
	assert.InDelta(t, 5.0/15, v[2], 1e-6)
	assert.InDelta(t, 5.0/20, v[3], 1e-6)
	for seed := 4; seed < 8; seed++ {
		want := float64(prefix("hello world_"+strconv.Itoa(seed))%1000) / 1000
		assert.InDelta(t, want, v[seed], 1e-6, "feature %d", seed)
	}
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	v, err := NewHashEmbedder(16).Embed(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, v, 16)
	assert.Equal(t, float32(0), v[1])
	assert.Equal(t, float32(0), v[2])
	assert.Equal(t, float32(0), v[3])
	for _, f := range v {
		assert.False(t, math.IsNaN(float64(f)))
	}
}

func TestHashEmbedder_SmallDimension(t *testing.T) {
	v, err := NewHashEmbedder(2).Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Len(t, v, 2)
}

func TestHashEmbedder_Batch(t *testing.T) {
	e := NewHashEmbedder(32)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "a"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, vecs[0], vecs[2])
	assert.NotEqual(t, vecs[0], vecs[1])
}
