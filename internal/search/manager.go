// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/breaker"
	"github.com/pdiddy/evidence-engine/internal/cache"
	"github.com/pdiddy/evidence-engine/internal/ratelimit"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Attempt records what happened to one provider during a Search.
type Attempt struct {
	Provider string        `json:"provider" yaml:"provider"`
	Skipped  bool          `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Kind     ErrorKind     `json:"kind,omitempty" yaml:"kind,omitempty"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Results  int           `json:"results" yaml:"results"`
	Latency  time.Duration `json:"latency" yaml:"latency"`
}

// Outcome is the result of one Manager.Search.
type Outcome struct {
	Query       types.Query    `json:"query" yaml:"query"`
	Provider    string         `json:"provider" yaml:"provider"`
	Results     []types.Result `json:"results" yaml:"results"`
	DupsRemoved int            `json:"duplicates_removed" yaml:"duplicates_removed"`
	Attempts    []Attempt      `json:"attempts" yaml:"attempts"`
	Cached      bool           `json:"cached" yaml:"cached"`
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLimiters sets the per-provider rate limiter registry.
func WithLimiters(r *ratelimit.Registry) ManagerOption {
	return func(m *Manager) { m.limiters = r }
}

// WithOutcomeCache sets the cache consulted before any provider call.
func WithOutcomeCache(c *cache.Cache[Outcome]) ManagerOption {
	return func(m *Manager) { m.cache = c }
}

// WithManagerLogger sets the logger.
func WithManagerLogger(log *zap.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// Manager selects providers per query and falls back across them.
type Manager struct {
	cfg      types.ManagerConfig
	limiters *ratelimit.Registry
	cache    *cache.Cache[Outcome]
	log      *zap.Logger

	mu        sync.RWMutex
	providers []Provider
}

// NewManager creates a Manager with no providers. Without WithLimiters a
// registry with default settings is used; without WithOutcomeCache results
// are not cached.
func NewManager(cfg types.ManagerConfig, opts ...ManagerOption) *Manager {
	if cfg.MaxFallbackAttempts <= 0 {
		cfg.MaxFallbackAttempts = types.DefaultEngineConfig().Manager.MaxFallbackAttempts
	}
	m := &Manager{cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	if m.limiters == nil {
		m.limiters = ratelimit.NewRegistry(types.RateLimitConfig{})
	}
	return m
}

// Register adds providers. Registering a name twice replaces the earlier
// provider.
func (m *Manager) Register(ps ...Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range ps {
		replaced := false
		for i, existing := range m.providers {
			if existing.Name() == p.Name() {
				m.providers[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			m.providers = append(m.providers, p)
		}
	}
}

// Providers returns the registered providers in registration order.
func (m *Manager) Providers() []Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Provider(nil), m.providers...)
}

// Provider returns the provider named name.
func (m *Manager) Provider(name string) (Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Search runs q against the best eligible provider, falling back to the
// next one on failure. Fallback attempts run strictly one after another.
//
// Providers that are rate limited or whose breaker is open are skipped
// without using up an attempt. A provider that answers with zero results
// is remembered; its empty outcome is returned only when no later provider
// returns results. When every attempt fails the returned error wraps the
// last failure.
func (m *Manager) Search(ctx context.Context, q types.Query) (Outcome, error) {
	if q.IsEmpty() {
		return Outcome{}, ErrEmptyQuery
	}

	key := OutcomeKey(q)
	if m.cache != nil {
		if out, ok := m.cache.Get(key); ok {
			out.Results = cloneResults(out.Results)
			out.Attempts = append([]Attempt(nil), out.Attempts...)
			out.Cached = true
			m.log.Debug("search cache hit", zap.String("query", q.Text), zap.String("provider", out.Provider))
			return out, nil
		}
	}

	candidates := m.rank(m.eligible(q))
	if len(candidates) == 0 {
		return Outcome{Query: q}, ErrNoProviderAvailable
	}

	var (
		attempts []Attempt
		tries    int
		lastErr  error
		skipErr  error
		empty    *Outcome
	)
	for _, p := range candidates {
		if tries >= m.cfg.MaxFallbackAttempts {
			break
		}
		if err := ctx.Err(); err != nil {
			return Outcome{Query: q, Attempts: attempts}, err
		}

		if !p.Available() {
			skipErr = &ProviderError{Provider: p.Name(), Kind: KindBreakerOpen, Err: breaker.ErrOpen}
			attempts = append(attempts, Attempt{Provider: p.Name(), Skipped: true, Kind: KindBreakerOpen})
			continue
		}
		if !m.limiters.Get(p.Name()).TryAcquire() {
			skipErr = &ProviderError{Provider: p.Name(), Kind: KindRateLimited, Err: ratelimit.ErrRateLimited}
			attempts = append(attempts, Attempt{Provider: p.Name(), Skipped: true, Kind: KindRateLimited})
			continue
		}

		start := time.Now()
		results, err := p.Search(ctx, q)
		att := Attempt{Provider: p.Name(), Latency: time.Since(start)}

		if err != nil {
			att.Kind, att.Error = KindOf(err), err.Error()
			attempts = append(attempts, att)
			if att.Kind == KindBreakerOpen {
				// Lost the half-open probe to a concurrent caller.
				skipErr = err
				continue
			}
			tries++
			lastErr = err
			m.log.Info("provider failed, falling back",
				zap.String("provider", p.Name()),
				zap.String("kind", string(att.Kind)),
				zap.Error(err),
			)
			continue
		}
		tries++

		results, removed := Deduplicate(results)
		if q.MaxResults > 0 && len(results) > q.MaxResults {
			results = results[:q.MaxResults]
		}
		att.Results = len(results)
		attempts = append(attempts, att)

		out := Outcome{Query: q, Provider: p.Name(), Results: results, DupsRemoved: removed}
		if len(results) == 0 {
			if empty == nil {
				empty = &out
			}
			continue
		}

		out.Attempts = attempts
		m.store(key, out)
		return out, nil
	}

	if empty != nil {
		empty.Attempts = attempts
		m.store(key, *empty)
		return *empty, nil
	}
	if lastErr != nil {
		return Outcome{Query: q, Attempts: attempts},
			fmt.Errorf("all search providers failed after %d attempts: %w", tries, lastErr)
	}
	if skipErr != nil {
		return Outcome{Query: q, Attempts: attempts}, fmt.Errorf("%w: %w", ErrNoProviderAvailable, skipErr)
	}
	return Outcome{Query: q, Attempts: attempts}, ErrNoProviderAvailable
}

func (m *Manager) store(key string, out Outcome) {
	if m.cache == nil {
		return
	}
	out.Results = cloneResults(out.Results)
	if err := m.cache.Set(key, out); err != nil {
		m.log.Debug("search cache store failed", zap.Error(err))
	}
}

// eligible returns providers that can handle q and whose success rate is
// acceptable. The rate floor applies once a provider has MinSamples
// searches. When the floor would exclude every provider that can handle q,
// all of them stay eligible so a recovered provider gets called again.
// Breaker and limiter state are checked at attempt time.
func (m *Manager) eligible(q types.Query) []Provider {
	var out, lowRate []Provider
	for _, p := range m.Providers() {
		if !p.CanHandle(q) {
			continue
		}
		if met := p.Metrics(); met.TotalSearches >= max(m.cfg.MinSamples, 1) && met.SuccessRate() < m.cfg.MinSuccessRate {
			lowRate = append(lowRate, p)
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 && len(lowRate) > 0 {
		m.log.Debug("every provider below success floor; trying them anyway", zap.Int("count", len(lowRate)))
		return lowRate
	}
	return out
}

// rank orders providers by composite score, then priority, then name.
func (m *Manager) rank(ps []Provider) []Provider {
	scores := make(map[string]float64, len(ps))
	for _, p := range ps {
		scores[p.Name()] = Composite(p)
	}
	sort.SliceStable(ps, func(i, j int) bool {
		si, sj := scores[ps[i].Name()], scores[ps[j].Name()]
		if si != sj {
			return si > sj
		}
		if ps[i].Priority() != ps[j].Priority() {
			return ps[i].Priority() > ps[j].Priority()
		}
		return ps[i].Name() < ps[j].Name()
	})
	return ps
}

// Composite scores a provider as (0.7·successRate + 0.3·speed) scaled by
// priority. A provider without history counts as perfect on both terms.
func Composite(p Provider) float64 {
	met := p.Metrics()
	success, speed := 1.0, 1.0
	if met.TotalSearches > 0 {
		success = met.SuccessRate()
		if t := p.Timeout(); t > 0 {
			speed = 1 - float64(met.AverageLatency)/float64(t)
			speed = max(0, min(1, speed))
		}
	}
	return (0.7*success + 0.3*speed) * float64(max(p.Priority(), 1))
}

// OutcomeKey hashes the normalized query and its filters.
func OutcomeKey(q types.Query) string {
	parts := []string{
		q.Normalized(),
		string(q.Type),
		strconv.Itoa(q.MaxResults),
		strings.ToLower(q.Language),
		q.TimeRange,
		strings.Join(q.Domains, ","),
		strings.Join(q.ExcludeTerms, ","),
		strings.Join(q.Synonyms, ","),
	}
	return strconv.FormatUint(xxhash.Sum64String(strings.Join(parts, "\x00")), 16)
}

// ProviderStatus is a diagnostic view of one provider.
type ProviderStatus struct {
	Name      string                `json:"name" yaml:"name"`
	Priority  int                   `json:"priority" yaml:"priority"`
	Available bool                  `json:"available" yaml:"available"`
	Composite float64               `json:"composite" yaml:"composite"`
	Metrics   types.ProviderMetrics `json:"metrics" yaml:"metrics"`
	Breaker   *breaker.Stats        `json:"breaker,omitempty" yaml:"breaker,omitempty"`
	Limiter   ratelimit.Stats       `json:"limiter" yaml:"limiter"`
}

type breakerHolder interface {
	Breaker() *breaker.Breaker
}

// Snapshot returns the status of every provider in registration order.
func (m *Manager) Snapshot() []ProviderStatus {
	var out []ProviderStatus
	for _, p := range m.Providers() {
		st := ProviderStatus{
			Name:      p.Name(),
			Priority:  p.Priority(),
			Available: p.Available(),
			Composite: Composite(p),
			Metrics:   p.Metrics(),
			Limiter:   m.limiters.Get(p.Name()).Snapshot(),
		}
		if bh, ok := p.(breakerHolder); ok {
			s := bh.Breaker().Snapshot()
			st.Breaker = &s
		}
		out = append(out, st)
	}
	return out
}

type metricsResetter interface {
	ResetMetrics()
}

// ResetProvider closes the breaker of the named provider and clears its
// metrics. It reports false when the provider is unknown or has neither.
func (m *Manager) ResetProvider(name string) bool {
	p, ok := m.Provider(name)
	if !ok {
		return false
	}
	bh, hasBreaker := p.(breakerHolder)
	mr, hasMetrics := p.(metricsResetter)
	if !hasBreaker && !hasMetrics {
		return false
	}
	if hasBreaker {
		bh.Breaker().Reset()
	}
	if hasMetrics {
		mr.ResetMetrics()
	}
	m.log.Info("provider reset", zap.String("provider", name))
	return true
}

// CacheStats reports the outcome cache counters, or zero values when no
// cache is configured.
func (m *Manager) CacheStats() cache.Stats {
	if m.cache == nil {
		return cache.Stats{}
	}
	return m.cache.Stats()
}

// Close releases provider resources such as worker pools.
func (m *Manager) Close() error {
	var first error
	for _, p := range m.Providers() {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
