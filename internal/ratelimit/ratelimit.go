// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit provides per-provider admission control combining a
// token bucket with a sliding time window. A request is admitted only when
// both gates pass.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// ErrRateLimited is returned when admission is denied.
var ErrRateLimited = errors.New("rate limited")

// minWait is the shortest sleep between admission polls in Acquire.
const minWait = 5 * time.Millisecond

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// Limiter is a dual-gate admission controller for one provider.
type Limiter struct {
	now func() time.Time

	mu        sync.Mutex
	bucket    *rate.Limiter
	refill    float64
	window    time.Duration
	windowMax int
	stamps    []time.Time
}

// New creates a limiter whose bucket starts full. Non-positive values take
// the defaults from types.DefaultEngineConfig.
func New(cfg types.RateLimitConfig, opts ...Option) *Limiter {
	def := types.DefaultEngineConfig().RateLimit
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.RefillRate <= 0 {
		cfg.RefillRate = def.RefillRate
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.WindowMax <= 0 {
		cfg.WindowMax = def.WindowMax
	}

	l := &Limiter{
		now:       time.Now,
		bucket:    rate.NewLimiter(rate.Limit(cfg.RefillRate), cfg.Capacity),
		refill:    cfg.RefillRate,
		window:    cfg.Window,
		windowMax: cfg.WindowMax,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// purge drops window timestamps older than the window. Caller holds mu.
func (l *Limiter) purge(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

// TryAcquire admits one request if both gates pass, consuming a token and
// recording a window timestamp. It never blocks.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.purge(now)
	if len(l.stamps) >= l.windowMax {
		return false
	}
	// The window is checked first so a denied window never costs a token.
	if !l.bucket.AllowN(now, 1) {
		return false
	}
	l.stamps = append(l.stamps, now)
	return true
}

// nextWait returns the shorter of the time until the next token and the time
// until the oldest window slot frees up. Caller holds mu.
func (l *Limiter) nextWait(now time.Time) time.Duration {
	wait := time.Duration(math.MaxInt64)

	if tokens := l.bucket.TokensAt(now); tokens < 1 {
		d := time.Duration((1 - tokens) / l.refill * float64(time.Second))
		wait = min(wait, d)
	}
	if len(l.stamps) >= l.windowMax {
		d := l.stamps[0].Add(l.window).Sub(now)
		wait = min(wait, d)
	}
	if wait == time.Duration(math.MaxInt64) {
		wait = 0
	}
	return max(wait, minWait)
}

// Acquire blocks until a request is admitted or ctx ends. A call that returns
// an error never consumes a token.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.TryAcquire() {
			return nil
		}

		l.mu.Lock()
		wait := l.nextWait(l.now())
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Stats is a point-in-time view of a limiter.
type Stats struct {
	Tokens      float64 `json:"tokens" yaml:"tokens"`
	WindowCount int     `json:"window_count" yaml:"window_count"`
	WindowMax   int     `json:"window_max" yaml:"window_max"`
	RefillRate  float64 `json:"refill_rate" yaml:"refill_rate"`
}

// Snapshot returns current token and window counts.
func (l *Limiter) Snapshot() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.purge(now)
	return Stats{
		Tokens:      l.bucket.TokensAt(now),
		WindowCount: len(l.stamps),
		WindowMax:   l.windowMax,
		RefillRate:  l.refill,
	}
}

// Registry holds one Limiter per provider name.
type Registry struct {
	cfg  types.RateLimitConfig
	opts []Option

	mu       sync.Mutex
	limiters map[string]*Limiter
}

// NewRegistry creates an empty registry whose limiters use cfg and opts.
func NewRegistry(cfg types.RateLimitConfig, opts ...Option) *Registry {
	return &Registry{cfg: cfg, opts: opts, limiters: make(map[string]*Limiter)}
}

// Get returns the limiter for name, creating it on first use.
func (r *Registry) Get(name string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[name]
	if !ok {
		l = New(r.cfg, r.opts...)
		r.limiters[name] = l
	}
	return l
}
