package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGenerator_Generate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"message":{"role":"assistant","content":"  field zip was removed  "},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "chat-model"})
	resp, err := g.Generate(context.Background(), Request{
		System:      "sys",
		Prompt:      "what changed?",
		MaxTokens:   500,
		Temperature: 0.3,
		TopP:        0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, "field zip was removed", resp.Text)
	assert.Equal(t, "chat-model", resp.Model)

	assert.Equal(t, "chat-model", body["model"])
	assert.Equal(t, 500.0, body["max_tokens"])
	assert.Equal(t, 0.9, body["top_p"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestOpenAIGenerator_ModelOverride(t *testing.T) {
	var model string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		model, _ = body["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
	_, err := g.Generate(context.Background(), Request{Prompt: "p", Model: "other"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, "other", model)
}

func TestOpenAIGenerator_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, true, body["stream"])
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"id":"s","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"role":"assistant","reasoning_content":"Thinking "}}]}`,
			`{"id":"s","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"reasoning_content":"hard."}}]}`,
			`{"id":"s","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":"The id "}}]}`,
			`{"id":"s","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":"became a string."},"finish_reason":"stop"}]}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: DefaultInsightModel})
	resp, err := g.Generate(context.Background(), Request{Prompt: "why?", Stream: true, MaxTokens: 800, TopP: 0.95})
	require.NoError(t, err)
	assert.Equal(t, "The id became a string.", resp.Text)
	assert.Equal(t, "Thinking hard.", resp.Reasoning)
	assert.Equal(t, DefaultInsightModel, resp.Model)
}

func TestOpenAIGenerator_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	assert.Error(t, err)
}
