// Package embedding turns text into vectors through an ordered chain of strategies: a local ONNX
// model, a remote inference API, and a deterministic hash fallback that never fails.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Strategy names one link of the fallback chain.
type Strategy string

const (
	StrategyLocal  Strategy = "local"
	StrategyRemote Strategy = "remote"
	StrategyHash   Strategy = "hash"
)

// embedEach implements EmbedBatch for embedders that only know how to embed one text.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
