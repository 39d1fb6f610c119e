package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	// DefaultRemoteModel is the sentence-transformers model served by the inference API.
	DefaultRemoteModel = "sentence-transformers/all-MiniLM-L6-v2"
	// DefaultRemoteBaseURL is the Hugging Face inference API model root.
	DefaultRemoteBaseURL = "https://api-inference.huggingface.co/models"
	// DefaultRemoteTimeout bounds a single remote embedding call.
	DefaultRemoteTimeout = 30 * time.Second
)

// ErrMalformedResponse is returned when the remote payload is not a usable list of vectors.
var ErrMalformedResponse = errors.New("malformed embedding response")

// RemoteConfig configures the hosted feature-extraction endpoint.
type RemoteConfig struct {
	URL     string // full endpoint; when empty it is BaseURL/Model
	Model   string
	Token   string
	Timeout time.Duration
}

// RemoteEmbedder calls a Hugging Face style feature-extraction endpoint with {"inputs": texts}.
// It accepts either a bare list of vectors or a list of {"embedding": [...]} objects.
type RemoteEmbedder struct {
	url        string
	token      string
	client     *http.Client
	dimensions atomic.Int64
}

// NewRemoteEmbedder returns a remote embedder. No request is made until the first Embed.
func NewRemoteEmbedder(cfg RemoteConfig) *RemoteEmbedder {
	if cfg.Model == "" {
		cfg.Model = DefaultRemoteModel
	}
	if cfg.URL == "" {
		cfg.URL = DefaultRemoteBaseURL + "/" + cfg.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}
	return &RemoteEmbedder{
		url:    cfg.URL,
		token:  cfg.Token,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Embed embeds a single text.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends all texts in one request.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	body, err := json.Marshal(map[string][]string{"inputs": texts})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote embeddings: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote embeddings failed: %s", resp.Status)
	}

	vecs, err := decodeVectors(payload)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: %d vectors for %d texts", ErrMalformedResponse, len(vecs), len(texts))
	}
	dim := len(vecs[0])
	for _, v := range vecs {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: ragged or empty vectors", ErrMalformedResponse)
		}
	}
	e.dimensions.Store(int64(dim))
	return vecs, nil
}

// decodeVectors accepts [[...], ...] or [{"embedding": [...]}, ...].
func decodeVectors(payload []byte) ([][]float32, error) {
	var plain [][]float32
	if err := json.Unmarshal(payload, &plain); err == nil && len(plain) > 0 {
		return plain, nil
	}
	var wrapped []struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &wrapped); err != nil || len(wrapped) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, snippet(payload))
	}
	out := make([][]float32, len(wrapped))
	for i, w := range wrapped {
		out[i] = w.Embedding
	}
	return out, nil
}

func snippet(b []byte) string {
	const max = 120
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Dimensions returns the dimension observed on the last successful call, or 0.
func (e *RemoteEmbedder) Dimensions() int {
	return int(e.dimensions.Load())
}

// Close releases idle connections.
func (e *RemoteEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
