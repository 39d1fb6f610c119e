package embedding

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultHashDimensions is the dimension of the deterministic fallback.
const DefaultHashDimensions = 384

// HashEmbedder is the last-resort strategy. It is deterministic and never fails, but texts that
// mean the same thing do not get similar vectors: retrieval quality degrades sharply when it is
// in use.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hash embedder of the given dimension (384 if dimensions <= 0).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the feature vector for text. The first four features are a digest bucket,
// length/1000, the space ratio, and mean word length/20; the rest are seeded digests.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	lowered := strings.TrimSpace(strings.ToLower(text))
	n := utf8.RuneCountInString(text)

	features := make([]float32, 0, e.dimensions+4)
	features = append(features, float32(float64(digestPrefix(lowered)%(1<<31))/float64(1<<31)))
	features = append(features, float32(float64(n)/1000))
	if n > 0 {
		features = append(features, float32(float64(strings.Count(text, " "))/float64(n)))
	} else {
		features = append(features, 0)
	}
	if words := SplitWords(lowered); len(words) > 0 {
		total := 0
		for _, w := range words {
			total += utf8.RuneCountInString(w)
		}
		features = append(features, float32(float64(total)/float64(len(words))/20))
	} else {
		features = append(features, 0)
	}

	for seed := len(features); seed < e.dimensions; seed++ {
		h := digestPrefix(fmt.Sprintf("%s_%d", lowered, seed))
		features = append(features, float32(h%1000)/1000)
	}
	return features[:e.dimensions], nil
}

// digestPrefix is the first 32 bits of the md5 digest (its first 8 hex digits).
func digestPrefix(s string) uint32 {
	sum := md5.Sum([]byte(s))
	return binary.BigEndian.Uint32(sum[:4])
}

// EmbedBatch embeds each text in order.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *HashEmbedder) Close() error {
	return nil
}
