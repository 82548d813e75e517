package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordRecommendation(t *testing.T) {
	s := openStore(t)
	first := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	require.NoError(t, s.RecordRecommendation("u-1", 2, first))
	require.NoError(t, s.RecordRecommendation("u-1", 3, second))

	u, err := s.GetUsage("u-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, 2, u.Requests)
	assert.Equal(t, 5, u.GenresServed)
	assert.True(t, u.FirstSeenAt.Equal(first))
	assert.True(t, u.LastRequestAt.Equal(second))
}

func TestGetUsageUnknownUser(t *testing.T) {
	u, err := openStore(t).GetUsage("nobody")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestRecordRecommendationRequiresUser(t *testing.T) {
	assert.Error(t, openStore(t).RecordRecommendation("", 1, time.Now()))
}

func TestUsageSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	s, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordRecommendation("u-1", 1, time.Now()))
	require.NoError(t, s.Close())

	s, err = NewBoltStore(path)
	require.NoError(t, err)
	defer s.Close()

	u, err := s.GetUsage("u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.Requests)
}

func TestRecordRecommendationConcurrent(t *testing.T) {
	s := openStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.RecordRecommendation("u-1", 1, time.Now()))
		}()
	}
	wg.Wait()

	u, err := s.GetUsage("u-1")
	require.NoError(t, err)
	assert.Equal(t, 20, u.Requests)
}
