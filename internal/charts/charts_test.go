package charts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	log := logrus.NewEntry(logrus.New())
	svc := New(nil, nil, log)
	svc.SetNowFunc(func() time.Time {
		return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	})
	return svc
}

func TestDailyKey(t *testing.T) {
	t.Run("should derive key from the current UTC date", func(t *testing.T) {
		svc := newTestService()
		assert.Equal(t, "charts:plays:2024-03-15", svc.dailyKey())
	})
}

func TestClampLimit(t *testing.T) {
	t.Run("should default zero and oversized limits", func(t *testing.T) {
		assert.Equal(t, 20, clampLimit(0))
		assert.Equal(t, 20, clampLimit(-3))
		assert.Equal(t, 20, clampLimit(500))
	})

	t.Run("should pass through limits in range", func(t *testing.T) {
		assert.Equal(t, 1, clampLimit(1))
		assert.Equal(t, 100, clampLimit(100))
	})
}

func TestRecordPlayWithoutRedis(t *testing.T) {
	t.Run("should be a no-op when counters are disabled", func(t *testing.T) {
		svc := newTestService()
		assert.NotPanics(t, func() {
			svc.RecordPlay(context.Background(), uuid.New(), 3)
		})
	})
}

func TestMergeRanked(t *testing.T) {
	a, b, c := uuid.NewString(), uuid.NewString(), uuid.NewString()
	byID := map[string]*Entry{
		a: {Title: "Midnight Drive"},
		c: {Title: "River Stones"},
	}

	t.Run("should preserve the ranking order and drop ineligible rows", func(t *testing.T) {
		entries := mergeRanked([]string{a, b, c}, byID, nil)
		require.Len(t, entries, 2)
		assert.Equal(t, "Midnight Drive", entries[0].Title)
		assert.Equal(t, "River Stones", entries[1].Title)
	})

	t.Run("should attach daily plays by rank position", func(t *testing.T) {
		entries := mergeRanked([]string{a, b, c}, byID, []float64{12, 99, 3})
		require.Len(t, entries, 2)
		assert.Equal(t, int64(12), entries[0].DailyPlays)
		assert.Equal(t, int64(3), entries[1].DailyPlays)
	})
}
