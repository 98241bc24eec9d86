// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// maxMultiConcurrency bounds simultaneous upstream requests of one Multi.
const maxMultiConcurrency = 3

// Multi queries several engines concurrently and interleaves their results.
// It succeeds when at least one engine succeeds.
type Multi struct {
	*Base
	engines []Provider
	pool    *ants.Pool
}

// NewMulti creates a multi-engine provider over engines. concurrency is
// clamped to [1, 3]. An empty name defaults to "multi".
func NewMulti(cfg BaseConfig, engines []Provider, concurrency int) (*Multi, error) {
	if cfg.Name == "" {
		cfg.Name = "multi"
	}
	if len(engines) == 0 {
		return nil, fmt.Errorf("multi provider needs at least one engine")
	}
	concurrency = max(1, min(concurrency, maxMultiConcurrency))
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	return &Multi{Base: NewBase(cfg), engines: engines, pool: pool}, nil
}

// CanHandle accepts a query any engine can handle.
func (m *Multi) CanHandle(q types.Query) bool {
	for _, e := range m.engines {
		if e.CanHandle(q) {
			return true
		}
	}
	return false
}

// Close releases the worker pool.
func (m *Multi) Close() error {
	m.pool.Release()
	return nil
}

// Search implements Provider.
func (m *Multi) Search(ctx context.Context, q types.Query) ([]types.Result, error) {
	return m.Run(ctx, func(ctx context.Context) ([]types.Result, error) {
		lists := make([][]types.Result, len(m.engines))
		errs := make([]error, len(m.engines))
		ran := make([]bool, len(m.engines))
		var wg sync.WaitGroup

		for i, e := range m.engines {
			if !e.CanHandle(q) || !e.Available() {
				continue
			}
			ran[i] = true
			i, e := i, e // per-iteration copy; go.mod targets go1.21 (pre-1.22 loop semantics)
			wg.Add(1)
			err := m.pool.Submit(func() {
				defer wg.Done()
				lists[i], errs[i] = e.Search(ctx, q)
			})
			if err != nil {
				wg.Done()
				errs[i] = fmt.Errorf("submitting %s: %w", e.Name(), err)
			}
		}
		wg.Wait()

		attempted := 0
		for _, r := range ran {
			if r {
				attempted++
			}
		}
		if attempted == 0 {
			return nil, fmt.Errorf("%w: no engine of %s can serve the query", ErrNoProviderAvailable, m.Name())
		}

		succeeded := 0
		var failures []error
		for i, err := range errs {
			if err != nil {
				m.Logger().Debug("engine failed", zap.String("engine", m.engines[i].Name()), zap.Error(err))
				failures = append(failures, err)
				continue
			}
			if ran[i] {
				succeeded++
			}
		}
		if succeeded == 0 && len(failures) > 0 {
			return nil, fmt.Errorf("all engines failed: %w", errors.Join(failures...))
		}

		merged, _ := Deduplicate(interleave(lists))
		if limit := limitFor(q); len(merged) > limit {
			merged = merged[:limit]
		}
		return merged, nil
	})
}

// interleave takes rank 1 of every list, then rank 2, and so on.
func interleave(lists [][]types.Result) []types.Result {
	var out []types.Result
	for rank := 0; ; rank++ {
		added := false
		for _, l := range lists {
			if rank < len(l) {
				out = append(out, l[rank])
				added = true
			}
		}
		if !added {
			return out
		}
	}
}
