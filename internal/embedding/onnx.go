//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/ParsaBazrpash/MirrorAPI/pkg/utils"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEmbedder runs a BERT-style sentence-embedding model with ONNX Runtime. It requires CGO and
// the onnxruntime shared library.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int
	meanPool   bool
	cache      *EmbeddingCache
	tokenizer  Tokenizer
	// Pre-allocated tensors for Run(); we update input data and read output.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXEmbedder creates the session and its tensors. When cfg.OutputName is
// "last_hidden_state" the output is token-level and is mean-pooled over the attention mask;
// otherwise the output is taken as a pooled [1, dimensions] sentence vector.
func NewONNXEmbedder(cfg ONNXConfig) (*ONNXEmbedder, error) {
	cfg = cfg.withDefaults()
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	tokenizer := cfg.Tokenizer
	if tokenizer == nil {
		tokenizer = &SimpleTokenizer{}
	}
	inputIDs, attentionMask, tokenTypeIDs := tokenizer.Tokenize("", cfg.MaxTokens)
	seqShape := ort.NewShape(1, int64(cfg.MaxTokens))

	var created []interface{ Destroy() error }
	cleanup := func() {
		for _, t := range created {
			_ = t.Destroy()
		}
	}

	inputIDsTensor, err := ort.NewTensor(seqShape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	created = append(created, inputIDsTensor)
	attentionMaskTensor, err := ort.NewTensor(seqShape, attentionMask)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	created = append(created, attentionMaskTensor)
	tokenTypeIDsTensor, err := ort.NewTensor(seqShape, tokenTypeIDs)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	created = append(created, tokenTypeIDsTensor)

	meanPool := cfg.OutputName == "last_hidden_state"
	outShape := ort.NewShape(1, int64(cfg.Dimensions))
	if meanPool {
		outShape = ort.NewShape(1, int64(cfg.MaxTokens), int64(cfg.Dimensions))
	}
	outputTensor, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	created = append(created, outputTensor)

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXEmbedder{
		session:             session,
		dimensions:          cfg.Dimensions,
		maxTokens:           cfg.MaxTokens,
		meanPool:            meanPool,
		cache:               NewEmbeddingCache(cfg.CacheSize),
		tokenizer:           tokenizer,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		tokenTypeIDsTensor:  tokenTypeIDsTensor,
		outputTensor:        outputTensor,
	}, nil
}

// Embed returns the normalized embedding for text, using the cache when available.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("onnx embedder is closed")
	}

	inputIDs, attentionMask, tokenTypeIDs := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.inputIDsTensor.GetData(), inputIDs)
	copy(e.attentionMaskTensor.GetData(), attentionMask)
	copy(e.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := e.outputTensor.GetData()
	embedding := make([]float32, e.dimensions)
	if e.meanPool {
		meanPool(embedding, out, attentionMask)
	} else {
		copy(embedding, out[:e.dimensions])
	}

	utils.NormalizeL2(embedding)
	e.cache.Set(text, embedding)
	return embedding, nil
}

// EmbedBatch embeds each text in order; the session has a fixed batch size of one.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session and tensors. Closing twice is a no-op.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	_ = e.inputIDsTensor.Destroy()
	_ = e.attentionMaskTensor.Destroy()
	_ = e.tokenTypeIDsTensor.Destroy()
	_ = e.outputTensor.Destroy()
	return err
}
