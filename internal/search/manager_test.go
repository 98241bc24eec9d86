// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/internal/breaker"
	"github.com/pdiddy/evidence-engine/internal/cache"
	"github.com/pdiddy/evidence-engine/internal/ratelimit"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// mockProvider answers every query with fixed results or a fixed error.
type mockProvider struct {
	*Base
	results []types.Result
	err     error
	handle  func(types.Query) bool
	calls   atomic.Int32
}

func newMock(name string, priority int, results []types.Result, err error) *mockProvider {
	return &mockProvider{
		Base: NewBase(BaseConfig{
			Name:     name,
			Priority: priority,
			Timeout:  time.Second,
			Breaker:  breaker.New(name, types.BreakerConfig{FailureThreshold: 5, Timeout: time.Hour}),
		}),
		results: results,
		err:     err,
	}
}

func (m *mockProvider) CanHandle(q types.Query) bool {
	if m.handle != nil {
		return m.handle(q)
	}
	return !q.IsEmpty()
}

func (m *mockProvider) Search(ctx context.Context, q types.Query) ([]types.Result, error) {
	return m.Run(ctx, func(ctx context.Context) ([]types.Result, error) {
		m.calls.Add(1)
		if m.err != nil {
			return nil, m.err
		}
		return cloneResults(m.results), nil
	})
}

func someResults(prefix string, n int) []types.Result {
	out := make([]types.Result, n)
	for i := range out {
		out[i] = types.Result{
			Title: prefix + " result " + string(rune('a'+i)),
			URL:   "https://" + prefix + ".example/" + string(rune('a'+i)),
		}
	}
	return out
}

// roomyLimiters never throttles within a test.
func roomyLimiters() *ratelimit.Registry {
	return ratelimit.NewRegistry(types.RateLimitConfig{Capacity: 100, RefillRate: 1, Window: time.Minute, WindowMax: 100})
}

func newTestManager(maxAttempts int, opts ...ManagerOption) *Manager {
	opts = append([]ManagerOption{WithLimiters(roomyLimiters())}, opts...)
	return NewManager(types.ManagerConfig{MaxFallbackAttempts: maxAttempts}, opts...)
}

var testQuery = types.Query{Text: "flutter vs react native performance"}

func TestManagerFirstProviderSucceeds(t *testing.T) {
	m := newTestManager(3)
	a := newMock("a", 3, someResults("a", 2), nil)
	b := newMock("b", 2, someResults("b", 2), nil)
	m.Register(a, b)

	out, err := m.Search(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Equal(t, "a", out.Provider)
	assert.Len(t, out.Results, 2)
	assert.Equal(t, "a", out.Results[0].Source)
	assert.Len(t, out.Attempts, 1)
	assert.Equal(t, int32(0), b.calls.Load())
}

func TestManagerFallsBackOnFailure(t *testing.T) {
	m := newTestManager(3)
	a := newMock("a", 3, nil, ErrBlocked)
	b := newMock("b", 2, someResults("b", 1), nil)
	m.Register(a, b)

	out, err := m.Search(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Equal(t, "b", out.Provider)
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, KindBlocked, out.Attempts[0].Kind)
	assert.NotEmpty(t, out.Attempts[0].Error)
	assert.Equal(t, 1, out.Attempts[1].Results)
}

func TestManagerAllProvidersFail(t *testing.T) {
	m := newTestManager(5)
	providers := []*mockProvider{
		newMock("a", 3, nil, ErrBlocked),
		newMock("b", 2, nil, ErrParse),
		newMock("c", 1, nil, errors.New("connection refused")),
	}
	for _, p := range providers {
		m.Register(p)
	}

	out, err := m.Search(context.Background(), testQuery)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Len(t, out.Attempts, 3)
	for _, p := range providers {
		assert.Equal(t, int32(1), p.calls.Load(), p.Name())
		assert.Equal(t, 1, p.Metrics().FailedSearches(), p.Name())
	}
	// The last failure is the one wrapped.
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestManagerBoundsAttempts(t *testing.T) {
	m := newTestManager(2)
	var providers []*mockProvider
	for i, name := range []string{"a", "b", "c", "d"} {
		p := newMock(name, 4-i, nil, ErrParse)
		providers = append(providers, p)
		m.Register(p)
	}

	_, err := m.Search(context.Background(), testQuery)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, int32(1), providers[0].calls.Load())
	assert.Equal(t, int32(1), providers[1].calls.Load())
	assert.Equal(t, int32(0), providers[2].calls.Load())
	assert.Equal(t, int32(0), providers[3].calls.Load())
}

func TestManagerSkipsRateLimitedProvider(t *testing.T) {
	limiters := ratelimit.NewRegistry(types.RateLimitConfig{Capacity: 1, RefillRate: 0.001, Window: time.Minute, WindowMax: 10})
	m := NewManager(types.ManagerConfig{MaxFallbackAttempts: 1}, WithLimiters(limiters))
	a := newMock("a", 3, someResults("a", 1), nil)
	b := newMock("b", 2, someResults("b", 1), nil)
	m.Register(a, b)

	require.True(t, limiters.Get("a").TryAcquire())

	out, err := m.Search(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Equal(t, "b", out.Provider)
	require.Len(t, out.Attempts, 2)
	assert.True(t, out.Attempts[0].Skipped)
	assert.Equal(t, KindRateLimited, out.Attempts[0].Kind)
	assert.Equal(t, int32(0), a.calls.Load())
}

func TestManagerSkipsOpenBreaker(t *testing.T) {
	m := newTestManager(1)
	a := newMock("a", 3, someResults("a", 1), nil)
	b := newMock("b", 2, someResults("b", 1), nil)
	m.Register(a, b)
	for rangeIter := 0; rangeIter < 5; rangeIter++ {
		a.Breaker().Failure()
	}
	require.False(t, a.Available())

	out, err := m.Search(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Equal(t, "b", out.Provider)
	assert.True(t, out.Attempts[0].Skipped)
	assert.Equal(t, KindBreakerOpen, out.Attempts[0].Kind)
	assert.Equal(t, int32(0), a.calls.Load())
}

func TestManagerAllSkipped(t *testing.T) {
	m := newTestManager(3)
	a := newMock("a", 1, someResults("a", 1), nil)
	m.Register(a)
	for rangeIter := 0; rangeIter < 5; rangeIter++ {
		a.Breaker().Failure()
	}

	_, err := m.Search(context.Background(), testQuery)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoProviderAvailable)
	assert.ErrorIs(t, err, breaker.ErrOpen)
	assert.Equal(t, KindNoProvider, KindOf(err))
}

func TestManagerNoEligibleProvider(t *testing.T) {
	m := newTestManager(3)
	a := newMock("a", 1, nil, nil)
	a.handle = func(types.Query) bool { return false }
	m.Register(a)

	_, err := m.Search(context.Background(), testQuery)
	assert.ErrorIs(t, err, ErrNoProviderAvailable)

	_, err = newTestManager(3).Search(context.Background(), testQuery)
	assert.ErrorIs(t, err, ErrNoProviderAvailable)
}

func TestManagerEmptyQuery(t *testing.T) {
	m := newTestManager(3)
	m.Register(newMock("a", 1, someResults("a", 1), nil))
	_, err := m.Search(context.Background(), types.Query{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Equal(t, KindInvalid, KindOf(err))
}

func TestManagerEmptyResultsFallThrough(t *testing.T) {
	m := newTestManager(3)
	a := newMock("a", 3, nil, nil)
	b := newMock("b", 2, someResults("b", 2), nil)
	m.Register(a, b)

	out, err := m.Search(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Equal(t, "b", out.Provider)
	assert.Len(t, out.Attempts, 2)
}

func TestManagerEmptyResultsReturnedWhenNothingBetter(t *testing.T) {
	m := newTestManager(3)
	a := newMock("a", 3, nil, nil)
	b := newMock("b", 2, nil, ErrBlocked)
	m.Register(a, b)

	out, err := m.Search(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Equal(t, "a", out.Provider)
	assert.Empty(t, out.Results)
	assert.Len(t, out.Attempts, 2)
}

func TestManagerDeduplicatesAndCaps(t *testing.T) {
	m := newTestManager(3)
	results := append(someResults("a", 3), types.Result{Title: "dup", URL: "https://www.a.example/a/"})
	m.Register(newMock("a", 1, results, nil))

	query := testQuery
	query.MaxResults = 2
	out, err := m.Search(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, 1, out.DupsRemoved)
	assert.Len(t, out.Results, 2)
}

func TestManagerCacheHit(t *testing.T) {
	c := cache.New[Outcome](types.CacheConfig{MaxBytes: 1 << 20, TTL: time.Minute},
		cache.WithSizeFunc[Outcome](cache.JSONSize[Outcome]))
	m := newTestManager(3, WithOutcomeCache(c))
	a := newMock("a", 1, someResults("a", 2), nil)
	m.Register(a)

	first, err := m.Search(context.Background(), testQuery)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	first.Results[0].Title = "mutated by caller"

	second, err := m.Search(context.Background(), testQuery)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "a", second.Provider)
	assert.Equal(t, "a result a", second.Results[0].Title)
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int64(1), m.CacheStats().Hits)

	// A different filter is a different key.
	other := testQuery
	other.TimeRange = "week"
	third, err := m.Search(context.Background(), other)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, int32(2), a.calls.Load())
}

func TestManagerCancelledContextConsumesNothing(t *testing.T) {
	limiters := ratelimit.NewRegistry(types.RateLimitConfig{Capacity: 1, RefillRate: 0.001, Window: time.Minute, WindowMax: 10})
	m := NewManager(types.ManagerConfig{MaxFallbackAttempts: 3}, WithLimiters(limiters))
	a := newMock("a", 1, someResults("a", 1), nil)
	m.Register(a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Search(ctx, testQuery)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), a.calls.Load())
	assert.True(t, limiters.Get("a").TryAcquire(), "token should still be available")
}

func TestManagerExcludesLowSuccessRate(t *testing.T) {
	m := NewManager(types.ManagerConfig{MaxFallbackAttempts: 3, MinSuccessRate: 0.5}, WithLimiters(roomyLimiters()))
	a := newMock("a", 5, nil, ErrParse)
	b := newMock("b", 1, someResults("b", 1), nil)
	m.Register(a, b)

	out, err := m.Search(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Equal(t, "b", out.Provider)
	assert.Equal(t, int32(1), a.calls.Load())

	// a now has a success rate of zero and is no longer eligible.
	other := testQuery
	other.Text = "another query"
	out, err = m.Search(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, "b", out.Provider)
	assert.Len(t, out.Attempts, 1)
	assert.Equal(t, int32(1), a.calls.Load())
}

func TestManagerSuccessFloorWaitsForSamples(t *testing.T) {
	m := NewManager(types.ManagerConfig{MaxFallbackAttempts: 1, MinSuccessRate: 0.5, MinSamples: 3},
		WithLimiters(roomyLimiters()))
	a := newMock("a", 5, nil, ErrParse)
	b := newMock("b", 1, someResults("b", 1), nil)
	m.Register(a, b)

	// With one attempt per search a keeps getting tried until it has
	// three samples.
	for i, text := range []string{"q one", "q two", "q three"} {
		_, err := m.Search(context.Background(), types.Query{Text: text})
		require.Error(t, err, "search %d", i)
	}
	assert.Equal(t, int32(3), a.calls.Load())

	out, err := m.Search(context.Background(), types.Query{Text: "q four"})
	require.NoError(t, err)
	assert.Equal(t, "b", out.Provider)
	assert.Equal(t, int32(3), a.calls.Load())
}

func TestManagerRetriesLowRateProvidersWhenNoneRemain(t *testing.T) {
	m := NewManager(types.ManagerConfig{MaxFallbackAttempts: 3, MinSuccessRate: 0.5}, WithLimiters(roomyLimiters()))
	a := newMock("a", 1, someResults("a", 1), ErrParse)
	m.Register(a)

	_, err := m.Search(context.Background(), testQuery)
	require.Error(t, err)

	// The outage is over; a is the only provider and gets another chance.
	a.err = nil
	out, err := m.Search(context.Background(), types.Query{Text: "another query"})
	require.NoError(t, err)
	assert.Equal(t, "a", out.Provider)
	assert.Equal(t, int32(2), a.calls.Load())
}

func TestManagerProviderRecoversAfterReset(t *testing.T) {
	m := NewManager(types.ManagerConfig{MaxFallbackAttempts: 3, MinSuccessRate: 0.5}, WithLimiters(roomyLimiters()))
	a := newMock("a", 5, someResults("a", 1), ErrParse)
	b := newMock("b", 1, someResults("b", 1), nil)
	m.Register(a, b)

	out, err := m.Search(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Equal(t, "b", out.Provider)

	a.err = nil
	require.True(t, m.ResetProvider("a"))
	assert.Zero(t, a.Metrics().TotalSearches)

	out, err = m.Search(context.Background(), types.Query{Text: "another query"})
	require.NoError(t, err)
	assert.Equal(t, "a", out.Provider)
	assert.Equal(t, int32(2), a.calls.Load())
	assert.Equal(t, 1, a.Metrics().SuccessfulSearches)
}

func TestManagerCachesEmptyOutcome(t *testing.T) {
	c := cache.New[Outcome](types.CacheConfig{MaxBytes: 1 << 20, TTL: time.Minute},
		cache.WithSizeFunc[Outcome](cache.JSONSize[Outcome]))
	m := newTestManager(3, WithOutcomeCache(c))
	a := newMock("a", 1, nil, nil)
	m.Register(a)

	first, err := m.Search(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Empty(t, first.Results)

	second, err := m.Search(context.Background(), testQuery)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Empty(t, second.Results)
	assert.Equal(t, int32(1), a.calls.Load())
}

func TestComposite(t *testing.T) {
	fresh := newMock("fresh", 2, nil, nil)
	assert.InDelta(t, 2.0, Composite(fresh), 1e-9)

	zero := newMock("zero", 0, nil, nil)
	assert.InDelta(t, 1.0, Composite(zero), 1e-9)

	failing := newMock("failing", 1, nil, ErrParse)
	_, _ = failing.Search(context.Background(), testQuery)
	// Success rate 0; speed close to 1 for an instant failure.
	assert.Less(t, Composite(failing), 0.31)
	assert.Greater(t, Composite(failing), 0.29)
}

func TestManagerRanksByComposite(t *testing.T) {
	m := newTestManager(1)
	low := newMock("low", 1, someResults("low", 1), nil)
	high := newMock("high", 4, someResults("high", 1), nil)
	tieB := newMock("tie-b", 4, someResults("tie-b", 1), nil)
	m.Register(low, tieB, high)

	out, err := m.Search(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Equal(t, "high", out.Provider, "equal scores and priorities fall back to name order")
}

func TestManagerRegisterReplaces(t *testing.T) {
	m := newTestManager(1)
	m.Register(newMock("a", 1, nil, ErrParse))
	m.Register(newMock("a", 1, someResults("a", 1), nil))
	assert.Len(t, m.Providers(), 1)

	out, err := m.Search(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Equal(t, "a", out.Provider)

	_, ok := m.Provider("missing")
	assert.False(t, ok)
}

func TestManagerSnapshotAndReset(t *testing.T) {
	m := newTestManager(1)
	a := newMock("a", 2, nil, nil)
	m.Register(a)
	for rangeIter := 0; rangeIter < 5; rangeIter++ {
		a.Breaker().Failure()
	}

	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "a", snap[0].Name)
	assert.False(t, snap[0].Available)
	require.NotNil(t, snap[0].Breaker)
	assert.Equal(t, breaker.Open.String(), snap[0].Breaker.State)
	assert.Equal(t, 100, snap[0].Limiter.WindowMax)

	assert.True(t, m.ResetProvider("a"))
	assert.True(t, a.Available())
	assert.False(t, m.ResetProvider("missing"))
}

func TestOutcomeKey(t *testing.T) {
	base := types.Query{Text: "Flutter  Performance"}
	same := types.Query{Text: "flutter performance"}
	assert.Equal(t, OutcomeKey(base), OutcomeKey(same))

	withSite := base
	withSite.Domains = []string{"flutter.dev"}
	assert.NotEqual(t, OutcomeKey(base), OutcomeKey(withSite))

	withType := base
	withType.Type = types.QueryTechnical
	assert.NotEqual(t, OutcomeKey(base), OutcomeKey(withType))
}

func TestManagerCloseReleasesPools(t *testing.T) {
	m := newTestManager(1)
	multi, err := NewMulti(BaseConfig{}, []Provider{newMock("a", 1, nil, nil)}, 2)
	require.NoError(t, err)
	m.Register(multi)
	assert.NoError(t, m.Close())
	assert.True(t, multi.pool.IsClosed())
}
