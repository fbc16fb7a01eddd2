package service

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"dgsync/internal/application/common/slogger"
	"dgsync/internal/port/outbound"

	"golang.org/x/sync/singleflight"
)

// LookupCacheConfig configures a LookupCache.
type LookupCacheConfig struct {
	// Name labels metrics and logs.
	Name string
	// TTL bounds how long settled entries are served. Zero keeps them until Clear.
	TTL time.Duration
	// Shared is an optional second tier consulted before computing.
	Shared  outbound.SharedCache
	Metrics SyncMetrics
	Clock   Clock
}

type settledEntry[V any] struct {
	value    V
	storedAt time.Time
}

// LookupCache memoizes keyed lookups and collapses concurrent identical
// requests onto one computation. Failed computations are never cached.
type LookupCache[V any] struct {
	config LookupCacheConfig
	group  singleflight.Group

	mu         sync.RWMutex
	settled    map[string]settledEntry[V]
	generation uint64
}

// NewLookupCache creates an empty cache.
func NewLookupCache[V any](config LookupCacheConfig) *LookupCache[V] {
	if config.Name == "" {
		config.Name = "lookup"
	}
	if config.Metrics == nil {
		config.Metrics = NewNoopSyncMetrics()
	}
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}
	return &LookupCache[V]{config: config, settled: make(map[string]settledEntry[V])}
}

// CacheKey builds the composite key for scope and subject. The subject is
// used verbatim.
func CacheKey(scope, subject string) string {
	return scope + "::" + subject
}

// GetOrCompute returns the settled value for (scope, subject), joins an
// in-flight computation for it, or runs compute. A caller whose ctx ends
// stops waiting; the computation keeps running for the remaining waiters.
func (c *LookupCache[V]) GetOrCompute(
	ctx context.Context,
	scope, subject string,
	compute func(ctx context.Context) (V, error),
) (V, error) {
	key := CacheKey(scope, subject)
	if v, ok := c.lookup(key); ok {
		c.config.Metrics.RecordLookup(ctx, c.config.Name, LookupHit)
		return v, nil
	}

	// Callers arriving after a Clear start a new flight instead of joining
	// one whose result will not be stored.
	c.mu.RLock()
	generation := c.generation
	c.mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key+"#"+strconv.FormatUint(generation, 10), func() (interface{}, error) {
		return c.fill(detached, key, generation, compute)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func (c *LookupCache[V]) fill(
	ctx context.Context,
	key string,
	generation uint64,
	compute func(ctx context.Context) (V, error),
) (V, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	if v, ok := c.fromShared(ctx, key); ok {
		c.config.Metrics.RecordLookup(ctx, c.config.Name, LookupShared)
		c.store(key, v, generation)
		return v, nil
	}

	v, err := compute(ctx)
	if err != nil {
		c.config.Metrics.RecordLookup(ctx, c.config.Name, LookupError)
		return v, err
	}
	c.config.Metrics.RecordLookup(ctx, c.config.Name, LookupComputed)
	if c.store(key, v, generation) {
		c.toShared(ctx, key, v)
	}
	return v, nil
}

func (c *LookupCache[V]) lookup(key string) (V, bool) {
	c.mu.RLock()
	entry, ok := c.settled[key]
	c.mu.RUnlock()
	if !ok || c.expired(entry) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// store records a settled value unless the cache was cleared after the
// computation started.
func (c *LookupCache[V]) store(key string, v V, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return false
	}
	c.settled[key] = settledEntry[V]{value: v, storedAt: c.config.Clock.Now()}
	return true
}

func (c *LookupCache[V]) expired(entry settledEntry[V]) bool {
	return c.config.TTL > 0 && c.config.Clock.Now().Sub(entry.storedAt) >= c.config.TTL
}

func (c *LookupCache[V]) fromShared(ctx context.Context, key string) (V, bool) {
	var v V
	if c.config.Shared == nil {
		return v, false
	}
	data, found, err := c.config.Shared.Get(ctx, key)
	if err != nil {
		slogger.Warn(ctx, "Shared cache read failed", slogger.Fields2("cache", c.config.Name, "error", err.Error()))
		return v, false
	}
	if !found {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		slogger.Warn(ctx, "Shared cache entry is unreadable", slogger.Fields2("cache", c.config.Name, "error", err.Error()))
		return v, false
	}
	return v, true
}

func (c *LookupCache[V]) toShared(ctx context.Context, key string, v V) {
	if c.config.Shared == nil {
		return
	}
	data, err := json.Marshal(v)
	if err == nil {
		err = c.config.Shared.Set(ctx, key, data, c.config.TTL)
	}
	if err != nil {
		slogger.Warn(ctx, "Shared cache write failed", slogger.Fields2("cache", c.config.Name, "error", err.Error()))
	}
}

// Clear drops every settled entry, here and in the shared tier. Computations
// already in flight complete for their waiters but are not stored.
func (c *LookupCache[V]) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.settled = make(map[string]settledEntry[V])
	c.generation++
	c.mu.Unlock()

	if c.config.Shared != nil {
		return c.config.Shared.Clear(ctx)
	}
	return nil
}

// Len returns the number of live settled entries.
func (c *LookupCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, entry := range c.settled {
		if !c.expired(entry) {
			n++
		}
	}
	return n
}
