// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/breaker"
	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Provider executes one search against one external source. Each concrete
// provider (DuckDuckGo, Bing, Brave, Wikipedia, SearXNG, multi-engine,
// semantic re-rank) implements this interface, and the Manager picks among
// them per query.
type Provider interface {
	Name() string
	Priority() int
	Timeout() time.Duration

	// Available reports whether the provider would currently accept a call.
	Available() bool

	// CanHandle reports whether the provider supports the query's filters
	// and type.
	CanHandle(q types.Query) bool

	Search(ctx context.Context, q types.Query) ([]types.Result, error)
	Metrics() types.ProviderMetrics
}

const defaultProviderTimeout = 10 * time.Second

// BaseConfig holds what every provider shares.
type BaseConfig struct {
	Name     string
	Priority int
	Timeout  time.Duration
	Breaker  *breaker.Breaker
	Client   *httputil.Client
	Logger   *zap.Logger
}

// Base implements the bookkeeping half of Provider: identity, breaker
// admission, per-call timeout and rolling metrics. Concrete providers embed
// it and route each round-trip through Run.
type Base struct {
	name     string
	priority int
	timeout  time.Duration
	breaker  *breaker.Breaker
	client   *httputil.Client
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	metrics types.ProviderMetrics
}

// NewBase fills defaults for a zero timeout, breaker, client or logger.
func NewBase(cfg BaseConfig) *Base {
	b := &Base{
		name:     cfg.Name,
		priority: cfg.Priority,
		timeout:  cfg.Timeout,
		breaker:  cfg.Breaker,
		client:   cfg.Client,
		log:      cfg.Logger,
		now:      time.Now,
	}
	if b.timeout <= 0 {
		b.timeout = defaultProviderTimeout
	}
	if b.breaker == nil {
		b.breaker = breaker.New(cfg.Name, types.BreakerConfig{})
	}
	if b.client == nil {
		b.client = httputil.NewClient()
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	b.log = b.log.With(zap.String("provider", cfg.Name))
	return b
}

// Name returns the provider identifier.
func (b *Base) Name() string { return b.name }

// Priority returns the configured priority; higher is preferred.
func (b *Base) Priority() int { return b.priority }

// Timeout returns the per-call timeout.
func (b *Base) Timeout() time.Duration { return b.timeout }

// Available reports whether the breaker would admit a call.
func (b *Base) Available() bool { return b.breaker.Ready() }

// Breaker exposes the provider's circuit breaker for diagnostics and resets.
func (b *Base) Breaker() *breaker.Breaker { return b.breaker }

// Client returns the HTTP client providers use for their requests.
func (b *Base) Client() *httputil.Client { return b.client }

// Logger returns the provider-scoped logger.
func (b *Base) Logger() *zap.Logger { return b.log }

// Metrics returns a copy of the rolling metrics.
func (b *Base) Metrics() types.ProviderMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}

// ResetMetrics clears the rolling metrics.
func (b *Base) ResetMetrics() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics = types.ProviderMetrics{LastUpdated: b.now()}
}

// record folds one completed round-trip into the metrics.
func (b *Base) record(latency time.Duration, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := &b.metrics
	m.TotalSearches++
	if ok {
		m.SuccessfulSearches++
	}
	m.AverageLatency += (latency - m.AverageLatency) / time.Duration(m.TotalSearches)
	m.LastUpdated = b.now()
}

// Run executes fn under the breaker with the provider timeout. Every call
// that gets past the breaker is recorded exactly once in the metrics; a
// call rejected by an open breaker is not. Errors come back as
// *ProviderError.
func (b *Base) Run(ctx context.Context, fn func(ctx context.Context) ([]types.Result, error)) ([]types.Result, error) {
	if err := b.breaker.Allow(); err != nil {
		return nil, &ProviderError{Provider: b.name, Kind: KindBreakerOpen, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := b.now()
	results, err := fn(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	latency := b.now().Sub(start)
	b.record(latency, err == nil)

	if err != nil {
		b.breaker.Failure()
		err = wrapProviderError(b.name, err)
		b.log.Debug("search failed", zap.Duration("latency", latency), zap.Error(err))
		return nil, err
	}
	b.breaker.Success()
	for i := range results {
		if results[i].Source == "" {
			results[i].Source = b.name
		}
	}
	b.log.Debug("search completed", zap.Duration("latency", latency), zap.Int("results", len(results)))
	return results, nil
}
