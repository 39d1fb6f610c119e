package models

import (
	"errors"
	"strings"
)

// MaxTopK caps the number of hits a single request may ask for.
const MaxTopK = 100

// ErrEmptyQuery is returned when a request has no question text.
var ErrEmptyQuery = errors.New("query cannot be empty")

// ChatRequest asks a question against the ingested corpus. Zero values mean "use the configured
// default".
type ChatRequest struct {
	Query        string   `json:"query"`
	TopK         int      `json:"top_k,omitempty"`
	MaxNewTokens int      `json:"max_new_tokens,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

// Validate trims the query and normalizes limits.
func (r *ChatRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return ErrEmptyQuery
	}
	if r.TopK < 0 {
		r.TopK = 0
	}
	if r.TopK > MaxTopK {
		r.TopK = MaxTopK
	}
	if r.MaxNewTokens < 0 {
		r.MaxNewTokens = 0
	}
	return nil
}

// ChatResponse carries the generated answer with the contexts it was grounded on.
// Scores[i] belongs to Contexts[i].
type ChatResponse struct {
	OK       bool      `json:"ok"`
	Answer   string    `json:"answer"`
	Contexts []Chunk   `json:"contexts"`
	Scores   []float64 `json:"scores"`
}

// GenerateRequest asks for an explanation of a schema change set. Schemas are decoded JSON.
type GenerateRequest struct {
	Query        string         `json:"query,omitempty"`
	Changes      []Change       `json:"changes,omitempty"`
	OldSchema    map[string]any `json:"old_schema,omitempty"`
	NewSchema    map[string]any `json:"new_schema,omitempty"`
	MaxNewTokens int            `json:"max_new_tokens,omitempty"`
	Temperature  *float64       `json:"temperature,omitempty"`
}

// GenerateResponse is the explanation plus any reasoning trace the model streamed.
type GenerateResponse struct {
	OK        bool   `json:"ok"`
	Answer    string `json:"answer"`
	Reasoning string `json:"reasoning"`
	Model     string `json:"model"`
}
