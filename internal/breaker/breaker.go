// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package breaker implements a three-state circuit breaker used to isolate
// failing search providers. Each provider gets its own Breaker; breakers
// share no state with each other.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// ErrOpen is returned when a call is rejected because the breaker is open.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const (
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 2
	defaultTimeout          = 30 * time.Second
)

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock replaces time.Now. Tests use it to control timeout expiry.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// Breaker is a finite-state machine guarding calls to one provider.
//
//	closed    --FailureThreshold consecutive failures-->  open
//	open      --Timeout elapsed since last failure----->  half-open
//	half-open --SuccessThreshold consecutive successes->  closed
//	half-open --any failure---------------------------->  open
type Breaker struct {
	name string
	cfg  types.BreakerConfig
	now  func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	probing     bool
}

// New creates a closed breaker. Zero config values take defaults.
func New(name string, cfg types.BreakerConfig, opts ...Option) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = defaultSuccessThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	b := &Breaker{name: name, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the provider name this breaker guards.
func (b *Breaker) Name() string { return b.name }

// State returns the current state, promoting open to half-open when the
// timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

// Ready reports whether a call would currently be admitted.
func (b *Breaker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	switch b.state {
	case Open:
		return false
	case HalfOpen:
		return !b.probing
	default:
		return true
	}
}

// advance moves open to half-open once Timeout has passed since the last
// failure. Caller holds mu.
func (b *Breaker) advance() {
	if b.state == Open && b.now().Sub(b.lastFailure) >= b.cfg.Timeout {
		b.state = HalfOpen
		b.successes = 0
		b.probing = false
	}
}

// Allow admits or rejects a call. A nil return obliges the caller to report
// the outcome with exactly one of Success or Failure.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	switch b.state {
	case Open:
		return ErrOpen
	case HalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
	}
	return nil
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed:
		b.failures = 0
	case HalfOpen:
		b.probing = false
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = Closed
			b.failures = 0
			b.successes = 0
		}
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailure = b.now()
	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.trip()
		}
	case HalfOpen:
		b.trip()
	case Open:
		// A late result from a call admitted before the trip.
	}
}

func (b *Breaker) trip() {
	b.state = Open
	b.successes = 0
	b.probing = false
}

// Execute runs fn under the breaker. Rejected calls return ErrOpen without
// running fn. Any error from fn, including context cancellation, counts as a
// failure.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		b.Failure()
		return err
	}
	b.Success()
	return nil
}

// Reset forces the breaker closed and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.successes = 0
	b.probing = false
	b.lastFailure = time.Time{}
}

// Stats is a point-in-time view of a breaker.
type Stats struct {
	Name        string    `json:"name" yaml:"name"`
	State       string    `json:"state" yaml:"state"`
	Failures    int       `json:"failures" yaml:"failures"`
	Successes   int       `json:"successes" yaml:"successes"`
	LastFailure time.Time `json:"last_failure,omitempty" yaml:"last_failure,omitempty"`
}

// Snapshot returns the current counters.
func (b *Breaker) Snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return Stats{
		Name:        b.name,
		State:       b.state.String(),
		Failures:    b.failures,
		Successes:   b.successes,
		LastFailure: b.lastFailure,
	}
}
