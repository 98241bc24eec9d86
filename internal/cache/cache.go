// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache implements a size-bounded TTL cache whose eviction order is
// driven by a weighted score of age, access count, recency and priority.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// ErrTooLarge is returned by Set when a value alone exceeds the byte budget.
var ErrTooLarge = errors.New("cache: value exceeds size budget")

const (
	defaultPriority = 5.0
	maxPriority     = 10.0
	hitBoost        = 0.5

	// Access counts at or above this saturate the access term.
	accessSaturation = 100
	recencyHalfLife  = 300 * time.Second
)

// SizeFunc reports the size in bytes charged for a value.
type SizeFunc[V any] func(V) int

// JSONSize charges the length of the JSON encoding. Unencodable values cost 1.
func JSONSize[V any](v V) int {
	data, err := json.Marshal(v)
	if err != nil || len(data) == 0 {
		return 1
	}
	return len(data)
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock replaces time.Now.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) { c.now = now }
}

// WithSizeFunc replaces JSONSize.
func WithSizeFunc[V any](fn SizeFunc[V]) Option[V] {
	return func(c *Cache[V]) { c.size = fn }
}

// WithLogger sets the logger used for eviction and cleanup events.
func WithLogger[V any](log *zap.Logger) Option[V] {
	return func(c *Cache[V]) { c.log = log }
}

// WithName labels log lines from this cache.
func WithName[V any](name string) Option[V] {
	return func(c *Cache[V]) { c.name = name }
}

type entry[V any] struct {
	value    V
	size     int
	created  time.Time
	accessed time.Time
	ttl      time.Duration
	hits     int
	priority float64
}

func (e *entry[V]) expired(now time.Time) bool {
	return !now.Before(e.created.Add(e.ttl))
}

// score is the retention value of an entry; the lowest score is evicted
// first. Each term lies in [0,1].
func (e *entry[V]) score(now time.Time) float64 {
	age := clamp01(1 - float64(now.Sub(e.created))/float64(e.ttl))
	access := clamp01(math.Log1p(float64(e.hits)) / math.Log1p(accessSaturation))
	recency := math.Exp(-float64(now.Sub(e.accessed)) / float64(recencyHalfLife))
	return 0.25*age + 0.30*access + 0.25*clamp01(recency) + 0.20*e.priority/maxPriority
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Stats reports cache counters.
type Stats struct {
	Name      string  `json:"name,omitempty" yaml:"name,omitempty"`
	Entries   int     `json:"entries" yaml:"entries"`
	Bytes     int     `json:"bytes" yaml:"bytes"`
	MaxBytes  int     `json:"max_bytes" yaml:"max_bytes"`
	Hits      int64   `json:"hits" yaml:"hits"`
	Misses    int64   `json:"misses" yaml:"misses"`
	Evictions int64   `json:"evictions" yaml:"evictions"`
	HitRate   float64 `json:"hit_rate" yaml:"hit_rate"`
}

// Cache is a concurrency-safe keyed store of V values.
type Cache[V any] struct {
	name     string
	maxBytes int
	ttl      time.Duration
	size     SizeFunc[V]
	now      func() time.Time
	log      *zap.Logger

	mu        sync.Mutex
	entries   map[string]*entry[V]
	bytes     int
	hits      int64
	misses    int64
	evictions int64
}

// New creates an empty cache. Zero config values take the defaults of the
// search cache in types.DefaultEngineConfig.
func New[V any](cfg types.CacheConfig, opts ...Option[V]) *Cache[V] {
	def := types.DefaultEngineConfig().SearchCache
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	c := &Cache[V]{
		maxBytes: int(cfg.MaxBytes),
		ttl:      cfg.TTL,
		size:     JSONSize[V],
		now:      time.Now,
		log:      zap.NewNop(),
		entries:  make(map[string]*entry[V]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores v under key with the default TTL and priority.
func (c *Cache[V]) Set(key string, v V) error {
	return c.SetWithOptions(key, v, 0, defaultPriority)
}

// SetWithTTL stores v under key with a specific TTL.
func (c *Cache[V]) SetWithTTL(key string, v V, ttl time.Duration) error {
	return c.SetWithOptions(key, v, ttl, defaultPriority)
}

// SetWithOptions stores v under key. A non-positive ttl takes the cache
// default; priority is clamped to [0,10]. Expired entries are purged first,
// then the lowest-scoring entries are evicted until v fits.
func (c *Cache[V]) SetWithOptions(key string, v V, ttl time.Duration, priority float64) error {
	size := c.size(v)
	if size > c.maxBytes {
		return ErrTooLarge
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if old, ok := c.entries[key]; ok {
		c.remove(key, old)
	}
	c.purgeExpired(now)
	for c.bytes+size > c.maxBytes && len(c.entries) > 0 {
		c.evictLowest(now)
	}

	c.entries[key] = &entry[V]{
		value:    v,
		size:     size,
		created:  now,
		accessed: now,
		ttl:      ttl,
		priority: math.Max(0, math.Min(maxPriority, priority)),
	}
	c.bytes += size
	return nil
}

// Get returns the value for key. Absent and expired keys are misses; an
// expired entry is removed.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	now := c.now()
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if e.expired(now) {
		c.remove(key, e)
		c.misses++
		return zero, false
	}
	e.hits++
	e.accessed = now
	e.priority = math.Min(maxPriority, e.priority+hitBoost)
	c.hits++
	return e.value, true
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok {
		c.remove(key, e)
	}
	return ok
}

// Clear removes every entry. Counters are kept.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[V])
	c.bytes = 0
}

// Len returns the number of stored entries, including expired ones not yet
// purged.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cleanup removes expired entries and returns how many were removed.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.purgeExpired(c.now())
	if n > 0 {
		c.log.Debug("cache cleanup", zap.String("cache", c.name), zap.Int("removed", n))
	}
	return n
}

// Optimize evicts the lowest-scoring quarter of the entries and returns the
// number evicted.
func (c *Cache[V]) Optimize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries) / 4
	if n == 0 {
		return 0
	}
	now := c.now()
	for _, k := range c.rankedKeys(now)[:n] {
		c.remove(k, c.entries[k])
		c.evictions++
	}
	c.log.Debug("cache optimize", zap.String("cache", c.name), zap.Int("evicted", n))
	return n
}

// Start runs Cleanup every interval until ctx ends. A non-positive interval
// disables the loop.
func (c *Cache[V]) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Cleanup()
			}
		}
	}()
}

// Stats returns the current counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Name:      c.name,
		Entries:   len(c.entries),
		Bytes:     c.bytes,
		MaxBytes:  c.maxBytes,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// remove deletes an entry and releases its bytes. Caller holds mu.
func (c *Cache[V]) remove(key string, e *entry[V]) {
	delete(c.entries, key)
	c.bytes -= e.size
}

// purgeExpired removes expired entries. Caller holds mu.
func (c *Cache[V]) purgeExpired(now time.Time) int {
	n := 0
	for k, e := range c.entries {
		if e.expired(now) {
			c.remove(k, e)
			n++
		}
	}
	return n
}

// evictLowest removes the single lowest-scoring entry. Caller holds mu.
func (c *Cache[V]) evictLowest(now time.Time) {
	keys := c.rankedKeys(now)
	if len(keys) == 0 {
		return
	}
	c.remove(keys[0], c.entries[keys[0]])
	c.evictions++
	c.log.Debug("cache evict", zap.String("cache", c.name), zap.String("key", keys[0]))
}

// rankedKeys returns keys ordered by ascending score, ties by key. Caller
// holds mu.
func (c *Cache[V]) rankedKeys(now time.Time) []string {
	type scored struct {
		key   string
		score float64
	}
	list := make([]scored, 0, len(c.entries))
	for k, e := range c.entries {
		list = append(list, scored{k, e.score(now)})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score < list[j].score
		}
		return list[i].key < list[j].key
	})
	keys := make([]string, len(list))
	for i, s := range list {
		keys[i] = s.key
	}
	return keys
}
