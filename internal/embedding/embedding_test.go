// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1}, []float32{1, 2}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-6)
		})
	}
}

func TestHashDeterministicAndUnit(t *testing.T) {
	h := NewHash(0)
	ctx := context.Background()

	a, err := h.Embed(ctx, "flutter performance benchmarks")
	require.NoError(t, err)
	b, err := h.Embed(ctx, "flutter performance benchmarks")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, DefaultDimensions)
	assert.InDelta(t, 1.0, Cosine(a, a), 1e-6)

	empty, err := h.Embed(ctx, "")
	require.NoError(t, err)
	assert.Len(t, empty, DefaultDimensions)
	assert.Zero(t, Cosine(empty, a))
}

func TestHashSharedWordsAreCloser(t *testing.T) {
	h := NewHash(1024)
	ctx := context.Background()
	q, _ := h.Embed(ctx, "react native performance")
	near, _ := h.Embed(ctx, "react native performance tuning guide")
	far, _ := h.Embed(ctx, "sourdough bread baking schedule")

	assert.Greater(t, Cosine(q, near), Cosine(q, far))
}

func TestOllamaEmbed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "hello", req.Prompt)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embedding":[0.5,0.25,-1]}`))
	}))
	defer ts.Close()

	o := NewOllama(ts.URL+"/", "nomic-embed-text", httputil.NewClient(httputil.WithHTTPClient(ts.Client())))
	vec, err := o.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, -1}, vec)
	assert.Equal(t, "ollama:nomic-embed-text", o.Name())
}

func TestOllamaErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"not found", http.StatusNotFound, `{"error":"model not found"}`, nil},
		{"empty vector", http.StatusOK, `{"embedding":[]}`, ErrEmptyEmbedding},
		{"bad json", http.StatusOK, `not json`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			o := NewOllama(ts.URL, "m", httputil.NewClient(httputil.WithHTTPClient(ts.Client())))
			_, err := o.Embed(context.Background(), "x")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestOpenAIEmbed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2]}],"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	defer ts.Close()

	o, err := NewOpenAI(ts.URL, "m", "")
	require.NoError(t, err)
	vec, err := o.Embed(context.Background(), "hello\nworld")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.1, 0.2}, vec, 1e-6)
}

type stubEmbedder struct {
	name  string
	err   error
	calls int32
}

func (s *stubEmbedder) Name() string { return s.name }

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1}, nil
}

func TestFallbackSwitchesAfterFailure(t *testing.T) {
	primary := &stubEmbedder{name: "primary", err: errors.New("connection refused")}
	f := NewFallback(primary, NewHash(8), nil)
	ctx := context.Background()

	assert.Equal(t, "primary", f.Name())
	vec, err := f.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
	assert.Equal(t, "hash", f.Name())

	_, err = f.Embed(ctx, "again")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&primary.calls))
}

func TestFallbackPrimaryHealthy(t *testing.T) {
	primary := &stubEmbedder{name: "primary"}
	f := NewFallback(primary, NewHash(8), nil)
	vec, err := f.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
}

func TestFallbackCancelledDoesNotDegrade(t *testing.T) {
	primary := &stubEmbedder{name: "primary", err: context.Canceled}
	f := NewFallback(primary, NewHash(8), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Embed(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "primary", f.Name())
}

func TestNewSelectsBackend(t *testing.T) {
	e, err := New(types.EmbeddingConfig{Backend: types.EmbeddingHash}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hash", e.Name())

	e, err = New(types.EmbeddingConfig{Backend: types.EmbeddingOllama, BaseURL: "http://127.0.0.1:1", Model: "m"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ollama:m", e.Name())

	_, err = New(types.EmbeddingConfig{Backend: "word2vec"}, nil)
	assert.Error(t, err)
}
