package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "dictv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_CreatesSchema(t *testing.T) {
	s := openTestStore(t)

	builds, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, builds)
}

func TestRecord_AssignsRunIDWhenEmpty(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Record(context.Background(), Build{
		StartedAt:      time.Now(),
		DurationMs:     42,
		SourceFeeds:    "de-en",
		EntriesIndexed: 3,
		Success:        true,
	}))

	builds, err := s.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.NotEmpty(t, builds[0].RunID)
}

func TestRecord_PreservesCallerSuppliedRunID(t *testing.T) {
	s := openTestStore(t)

	runID := NewRunID()
	require.NoError(t, s.Record(context.Background(), Build{
		RunID:      runID,
		StartedAt:  time.Now(),
		DurationMs: 10,
		Success:    true,
	}))

	builds, err := s.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, runID, builds[0].RunID)
}

func TestRecent_OrdersNewestFirstAndRespectsLimit(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(context.Background(), Build{
			StartedAt:      base.Add(time.Duration(i) * time.Minute),
			DurationMs:     int64(i),
			EntriesIndexed: i,
			Success:        i%2 == 0,
			ErrorMessage: func() string {
				if i%2 == 0 {
					return ""
				}
				return "boom"
			}(),
		}))
	}

	builds, err := s.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, builds, 2)
	assert.Equal(t, 4, builds[0].EntriesIndexed)
	assert.Equal(t, 3, builds[1].EntriesIndexed)
	assert.True(t, builds[0].Success)
	assert.False(t, builds[1].Success)
	assert.Equal(t, "boom", builds[1].ErrorMessage)
}

func TestNewRunID_ProducesDistinctValues(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
