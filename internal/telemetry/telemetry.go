// Package telemetry provides the query engine's latency histogram and
// result cache. Nothing here is persisted: both structures are
// in-process only, matching the non-goal of server-side query-history
// persistence.
package telemetry

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket classifies a query's latency into one of the teacher's
// histogram buckets.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// Histogram counts query latencies into the fixed bucket scheme above.
// Safe for concurrent use.
type Histogram struct {
	mu     sync.Mutex
	counts map[LatencyBucket]int64
	total  int64
}

// NewHistogram creates an empty latency histogram.
func NewHistogram() *Histogram {
	return &Histogram{counts: make(map[LatencyBucket]int64, 5)}
}

// Observe records one query's latency.
func (h *Histogram) Observe(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[LatencyToBucket(d)]++
	h.total++
}

// Snapshot returns a point-in-time copy of bucket counts and the total
// number of observations.
func (h *Histogram) Snapshot() (counts map[LatencyBucket]int64, total int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[LatencyBucket]int64, len(h.counts))
	for k, v := range h.counts {
		out[k] = v
	}
	return out, h.total
}

// CacheKey identifies a cacheable query by its fully-resolved parameters:
// the analyzed query string (not the raw one, so "Grüßen" and "grussen"
// share a cache entry) plus every parameter that affects results.
type CacheKey struct {
	Mode          string
	Language      string
	MaxDistance   int
	Limit         int
	AnalyzedQuery string
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s|%s|%d|%d|%s", k.Mode, k.Language, k.MaxDistance, k.Limit, k.AnalyzedQuery)
}

// ResultCache caches query results keyed on CacheKey, so repeat queries —
// common while a user is typing — skip the index entirely.
type ResultCache[V any] struct {
	cache *lru.Cache[string, V]
}

// NewResultCache creates a result cache with the given entry capacity.
func NewResultCache[V any](capacity int) (*ResultCache[V], error) {
	if capacity <= 0 {
		capacity = 1000
	}
	c, err := lru.New[string, V](capacity)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &ResultCache[V]{cache: c}, nil
}

// Get returns the cached value for key, if present.
func (c *ResultCache[V]) Get(key CacheKey) (V, bool) {
	return c.cache.Get(key.String())
}

// Put stores value under key.
func (c *ResultCache[V]) Put(key CacheKey, value V) {
	c.cache.Add(key.String(), value)
}

// Len returns the number of entries currently cached.
func (c *ResultCache[V]) Len() int {
	return c.cache.Len()
}

// Purge empties the cache, used after a reader swap since cached results
// reference the previous index generation.
func (c *ResultCache[V]) Purge() {
	c.cache.Purge()
}
