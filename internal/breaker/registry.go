// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package breaker

import (
	"sort"
	"sync"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Registry hands out one Breaker per provider name. The registry lock only
// guards the map; each breaker has its own lock.
type Registry struct {
	cfg  types.BreakerConfig
	opts []Option

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates an empty registry whose breakers use cfg and opts.
func NewRegistry(cfg types.BreakerConfig, opts ...Option) *Registry {
	return &Registry{
		cfg:      cfg,
		opts:     opts,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = New(name, r.cfg, r.opts...)
		r.breakers[name] = b
	}
	return b
}

// Reset closes the breaker for name. It reports false when no breaker exists.
func (r *Registry) Reset(name string) bool {
	r.mu.Lock()
	b, ok := r.breakers[name]
	r.mu.Unlock()
	if ok {
		b.Reset()
	}
	return ok
}

// Snapshots returns the stats of every breaker sorted by name.
func (r *Registry) Snapshots() []Stats {
	r.mu.Lock()
	list := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		list = append(list, b)
	}
	r.mu.Unlock()

	out := make([]Stats, 0, len(list))
	for _, b := range list {
		out = append(out, b.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
