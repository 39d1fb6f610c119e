package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteEmbedder_PlainVectors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))
		var body struct {
			Inputs []string `json:"inputs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"a", "b"}, body.Inputs)
		_, _ = w.Write([]byte(`[[0.1,0.2,0.3],[0.4,0.5,0.6]]`))
	}))
	defer srv.Close()

	e := NewRemoteEmbedder(RemoteConfig{URL: srv.URL, Token: "hf_test"})
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}}, vecs)
	assert.Equal(t, 3, e.Dimensions())
}

func TestRemoteEmbedder_WrappedVectors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"embedding":[1,0]}]`))
	}))
	defer srv.Close()

	v, err := NewRemoteEmbedder(RemoteConfig{URL: srv.URL}).Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
}

func TestRemoteEmbedder_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusServiceUnavailable, `{"error":"loading"}`, nil},
		{"not a list", http.StatusOK, `{"error":"bad"}`, ErrMalformedResponse},
		{"count mismatch", http.StatusOK, `[[1,2]]`, ErrMalformedResponse},
		{"ragged", http.StatusOK, `[[1,2],[3]]`, ErrMalformedResponse},
		{"empty vectors", http.StatusOK, `[[],[]]`, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewRemoteEmbedder(RemoteConfig{URL: srv.URL}).EmbedBatch(context.Background(), []string{"a", "b"})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestRemoteEmbedder_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	e := NewRemoteEmbedder(RemoteConfig{URL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := e.Embed(context.Background(), "slow")
	assert.Error(t, err)
}

func TestRemoteEmbedder_DefaultURL(t *testing.T) {
	e := NewRemoteEmbedder(RemoteConfig{})
	assert.Equal(t, DefaultRemoteBaseURL+"/"+DefaultRemoteModel, e.url)
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		// Out of order on purpose: results are placed by index.
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL + "/", APIKey: "sk-test", Model: "m"})
	vecs, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, 2, e.Dimensions())
}

func TestOpenAIEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"down","type":"server_error"}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL + "/", APIKey: "k"})
	_, err := e.Embed(context.Background(), "x")
	assert.Error(t, err)
}
