// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/embedding"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// semanticCandidates is how many inner results get embedded per query.
const semanticCandidates = 20

// Semantic wraps another provider and re-orders its results by embedding
// similarity to the query. When embedding fails the inner order is kept.
type Semantic struct {
	*Base
	inner    Provider
	embedder embedding.Embedder
}

// NewSemantic creates the re-ranking provider. An empty name defaults to
// "semantic".
func NewSemantic(cfg BaseConfig, inner Provider, embedder embedding.Embedder) *Semantic {
	if cfg.Name == "" {
		cfg.Name = "semantic"
	}
	return &Semantic{Base: NewBase(cfg), inner: inner, embedder: embedder}
}

// Close releases the wrapped provider's resources.
func (s *Semantic) Close() error {
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// CanHandle delegates to the wrapped provider.
func (s *Semantic) CanHandle(q types.Query) bool { return s.inner.CanHandle(q) }

// Search implements Provider.
func (s *Semantic) Search(ctx context.Context, q types.Query) ([]types.Result, error) {
	return s.Run(ctx, func(ctx context.Context) ([]types.Result, error) {
		wide := q
		wide.MaxResults = max(limitFor(q), semanticCandidates)
		results, err := s.inner.Search(ctx, wide)
		if err != nil {
			return nil, fmt.Errorf("semantic inner search: %w", err)
		}

		if ranked, err := s.rerank(ctx, q.Text, results); err != nil {
			s.Logger().Warn("semantic re-rank skipped", zap.Error(err))
		} else {
			results = ranked
		}
		if limit := limitFor(q); len(results) > limit {
			results = results[:limit]
		}
		return results, nil
	})
}

// rerank sorts results by cosine similarity between the query and each
// result's title and snippet. The similarity is stored in metadata.
func (s *Semantic) rerank(ctx context.Context, query string, results []types.Result) ([]types.Result, error) {
	qv, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	sims := make([]float64, len(results))
	out := make([]types.Result, len(results))
	for i, r := range results {
		rv, err := s.embedder.Embed(ctx, r.Title+"\n"+r.Snippet)
		if err != nil {
			return nil, fmt.Errorf("embedding result %d: %w", i, err)
		}
		sims[i] = embedding.Cosine(qv, rv)

		meta := make(map[string]string, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			meta[k] = v
		}
		meta["semantic_similarity"] = strconv.FormatFloat(sims[i], 'f', 4, 64)
		meta["embedder"] = s.embedder.Name()
		r.Metadata = meta
		out[i] = r
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return sims[idx[a]] > sims[idx[b]] })

	ranked := make([]types.Result, len(out))
	for i, j := range idx {
		ranked[i] = out[j]
	}
	return ranked, nil
}
