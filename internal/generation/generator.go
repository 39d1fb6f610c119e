// Package generation produces answers from prompts: an OpenAI-compatible chat backend and an
// offline template summarizer it falls back to.
package generation

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a backend answers with no choices.
var ErrEmptyResponse = errors.New("generation returned no choices")

// Request is a single generation call. Context holds the retrieved snippets the prompt was built
// from; backends that do not call a model work from it directly.
type Request struct {
	System      string
	Prompt      string
	Context     []string
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	Stream      bool
}

// Response is the generated text plus any reasoning trace the backend streamed.
type Response struct {
	Text      string
	Reasoning string
	Model     string
}

// Generator turns a request into text.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}
