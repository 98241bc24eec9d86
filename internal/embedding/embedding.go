// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embedding turns text into vectors for semantic re-ranking. Remote
// backends (Ollama, OpenAI-compatible) are paired with a deterministic hash
// embedder used when the remote service is unreachable.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// ErrEmptyEmbedding is returned when a backend answers without a vector.
var ErrEmptyEmbedding = errors.New("empty embedding")

// Embedder produces a vector for a text.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// New builds the embedder selected by cfg. Remote backends are wrapped in a
// Fallback to the hash embedder.
func New(cfg types.EmbeddingConfig, log *zap.Logger) (Embedder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	hash := NewHash(DefaultDimensions)

	switch cfg.Backend {
	case types.EmbeddingHash:
		return hash, nil
	case types.EmbeddingOllama, "":
		client := httputil.NewClient(
			httputil.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			httputil.WithMaxRetries(1),
			httputil.WithLogger(log),
		)
		return NewFallback(NewOllama(cfg.BaseURL, cfg.Model, client), hash, log), nil
	case types.EmbeddingOpenAI:
		oa, err := NewOpenAI(cfg.BaseURL, cfg.Model, cfg.APIKey)
		if err != nil {
			return nil, fmt.Errorf("creating openai embedder: %w", err)
		}
		return NewFallback(oa, hash, log), nil
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.Backend)
	}
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Fallback tries the primary and, on any error, answers from the secondary.
// After the first primary failure the primary is not called again.
type Fallback struct {
	primary   Embedder
	secondary Embedder
	log       *zap.Logger
	degraded  atomic.Bool
}

// NewFallback pairs a primary embedder with a secondary.
func NewFallback(primary, secondary Embedder, log *zap.Logger) *Fallback {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fallback{primary: primary, secondary: secondary, log: log}
}

// Name reports the embedder currently answering.
func (f *Fallback) Name() string {
	if f.degraded.Load() {
		return f.secondary.Name()
	}
	return f.primary.Name()
}

// Embed implements Embedder.
func (f *Fallback) Embed(ctx context.Context, text string) ([]float32, error) {
	if !f.degraded.Load() {
		vec, err := f.primary.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.degraded.Store(true)
		f.log.Warn("embedding backend unavailable, using fallback",
			zap.String("backend", f.primary.Name()),
			zap.String("fallback", f.secondary.Name()),
			zap.Error(err),
		)
	}
	return f.secondary.Embed(ctx, text)
}
