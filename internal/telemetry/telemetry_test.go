package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	assert.Equal(t, BucketP10, LatencyToBucket(5*time.Millisecond))
	assert.Equal(t, BucketP50, LatencyToBucket(25*time.Millisecond))
	assert.Equal(t, BucketP100, LatencyToBucket(75*time.Millisecond))
	assert.Equal(t, BucketP500, LatencyToBucket(200*time.Millisecond))
	assert.Equal(t, BucketP1000, LatencyToBucket(900*time.Millisecond))
}

func TestHistogram_ObserveAndSnapshot(t *testing.T) {
	h := NewHistogram()
	h.Observe(3 * time.Millisecond)
	h.Observe(40 * time.Millisecond)
	h.Observe(3 * time.Millisecond)

	counts, total := h.Snapshot()
	assert.Equal(t, int64(3), total)
	assert.Equal(t, int64(2), counts[BucketP10])
	assert.Equal(t, int64(1), counts[BucketP50])
}

func TestResultCache_PutAndGet(t *testing.T) {
	cache, err := NewResultCache[[]string](10)
	require.NoError(t, err)

	key := CacheKey{Mode: "exact", Language: "de-en", MaxDistance: 0, Limit: 20, AnalyzedQuery: "haus"}

	_, ok := cache.Get(key)
	assert.False(t, ok)

	cache.Put(key, []string{"house", "building"})
	got, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, []string{"house", "building"}, got)
}

func TestResultCache_DistinctKeysDoNotCollide(t *testing.T) {
	cache, err := NewResultCache[int](10)
	require.NoError(t, err)

	k1 := CacheKey{Mode: "fuzzy", Language: "de-en", MaxDistance: 2, Limit: 20, AnalyzedQuery: "haus"}
	k2 := CacheKey{Mode: "exact", Language: "de-en", MaxDistance: 2, Limit: 20, AnalyzedQuery: "haus"}

	cache.Put(k1, 1)
	cache.Put(k2, 2)

	v1, _ := cache.Get(k1)
	v2, _ := cache.Get(k2)
	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)
}

func TestResultCache_Purge(t *testing.T) {
	cache, err := NewResultCache[int](10)
	require.NoError(t, err)

	key := CacheKey{Mode: "exact", Language: "de-en", AnalyzedQuery: "haus"}
	cache.Put(key, 1)
	assert.Equal(t, 1, cache.Len())

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
	_, ok := cache.Get(key)
	assert.False(t, ok)
}
