package embedding

import (
	"container/list"
	"context"
	"fmt"
	"sync"
)

// EmbeddingCache is a bounded LRU of text to vector. Stored and returned vectors are copies.
// A capacity of zero or less disables it.
type EmbeddingCache struct {
	capacity int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is most recently used
	hits    uint64
	misses  uint64
}

type lruEntry struct {
	text string
	vec  []float32
}

// CacheStats counts lookups since the cache was created.
type CacheStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

func NewEmbeddingCache(capacity int) *EmbeddingCache {
	return &EmbeddingCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[text]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return append([]float32(nil), el.Value.(*lruEntry).vec...), true
}

func (c *EmbeddingCache) Set(text string, vec []float32) {
	if c.capacity <= 0 {
		return
	}
	own := append([]float32(nil), vec...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[text]; ok {
		el.Value.(*lruEntry).vec = own
		c.order.MoveToFront(el)
		return
	}
	c.entries[text] = c.order.PushFront(&lruEntry{text: text, vec: own})
	for c.order.Len() > c.capacity {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.entries, last.Value.(*lruEntry).text)
	}
}

func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *EmbeddingCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: c.order.Len(), Hits: c.hits, Misses: c.misses}
}

// CachedEmbedder puts an EmbeddingCache in front of another embedder. Only successful embeddings
// are cached, so a failing remote call is retried on the next request.
type CachedEmbedder struct {
	inner Embedder
	cache *EmbeddingCache
}

// NewCachedEmbedder wraps inner. With size <= 0 every call goes straight through.
func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: NewEmbeddingCache(size)}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, v)
	return v, nil
}

// EmbedBatch sends only the uncached texts to the inner embedder, in one batch.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var slots []int
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vecs, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("%w: %d vectors for %d texts", ErrMalformedResponse, len(vecs), len(missing))
	}
	for j, v := range vecs {
		out[slots[j]] = v
		c.cache.Set(missing[j], v)
	}
	return out, nil
}

func (c *CachedEmbedder) Dimensions() int   { return c.inner.Dimensions() }
func (c *CachedEmbedder) Close() error      { return c.inner.Close() }
func (c *CachedEmbedder) Stats() CacheStats { return c.cache.Stats() }
