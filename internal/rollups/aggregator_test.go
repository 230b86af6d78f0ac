package rollups_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leanstats/internal/hits"
	"leanstats/internal/rollups"
	"leanstats/internal/testsupport"
)

func hitAt(ts time.Time, path string) hits.Hit {
	return hits.Hit{
		PagePath:        path,
		ReferrerDomain:  "example.com",
		DeviceClass:     hits.DeviceMobile,
		TimestampBucket: ts.Unix(),
	}
}

func TestAggregatorRecord(t *testing.T) {
	ctx := context.Background()
	db := testsupport.SetupTestDB(t)
	aggregator := rollups.NewAggregator(db, testsupport.GetLogger(), time.UTC)

	ts := time.Date(2024, 3, 15, 14, 35, 0, 0, time.UTC)

	t.Run("creates daily and hourly rows", func(t *testing.T) {
		require.NoError(t, aggregator.Record(ctx, hitAt(ts, "/blog")))

		var daily rollups.DailyRollup
		require.NoError(t, db.First(&daily).Error)
		assert.Equal(t, "2024-03-15", daily.DateBucket)
		assert.Equal(t, "/blog", daily.PagePath)
		assert.Equal(t, "example.com", daily.ReferrerDomain)
		assert.Equal(t, "mobile", daily.DeviceClass)
		assert.Equal(t, int64(1), daily.Hits)

		var hourly rollups.HourlyRollup
		require.NoError(t, db.First(&hourly).Error)
		assert.Equal(t, "2024-03-15 14:00:00", hourly.DateBucket)
		assert.Equal(t, int64(1), hourly.Hits)
	})

	t.Run("increments existing rows", func(t *testing.T) {
		require.NoError(t, aggregator.Record(ctx, hitAt(ts.Add(10*time.Minute), "/blog")))

		var daily rollups.DailyRollup
		require.NoError(t, db.First(&daily).Error)
		assert.Equal(t, int64(2), daily.Hits)

		var hourlyCount int64
		require.NoError(t, db.Model(&rollups.HourlyRollup{}).Count(&hourlyCount).Error)
		assert.Equal(t, int64(1), hourlyCount)
	})

	t.Run("different dimensions get their own rows", func(t *testing.T) {
		direct := hitAt(ts, "/blog")
		direct.ReferrerDomain = ""
		require.NoError(t, aggregator.Record(ctx, direct))
		require.NoError(t, aggregator.Record(ctx, hitAt(ts.Add(time.Hour), "/blog")))

		var dailyCount, hourlyCount int64
		require.NoError(t, db.Model(&rollups.DailyRollup{}).Count(&dailyCount).Error)
		require.NoError(t, db.Model(&rollups.HourlyRollup{}).Count(&hourlyCount).Error)
		assert.Equal(t, int64(2), dailyCount)
		assert.Equal(t, int64(3), hourlyCount)
	})
}

func TestAggregatorTimezone(t *testing.T) {
	ctx := context.Background()
	db := testsupport.SetupTestDB(t)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	aggregator := rollups.NewAggregator(db, testsupport.GetLogger(), tokyo)

	require.NoError(t, aggregator.Record(ctx, hitAt(time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC), "/")))

	var daily rollups.DailyRollup
	require.NoError(t, db.First(&daily).Error)
	assert.Equal(t, "2024-03-16", daily.DateBucket)

	var hourly rollups.HourlyRollup
	require.NoError(t, db.First(&hourly).Error)
	assert.Equal(t, "2024-03-16 05:00:00", hourly.DateBucket)
}

func TestAggregatorConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	db := testsupport.SetupTestDB(t)
	aggregator := rollups.NewAggregator(db, testsupport.GetLogger(), time.UTC)

	const n = 50
	hit := hitAt(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), "/pricing")

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- aggregator.Record(ctx, hit)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	var daily rollups.DailyRollup
	require.NoError(t, db.First(&daily).Error)
	assert.Equal(t, int64(n), daily.Hits)

	var hourly rollups.HourlyRollup
	require.NoError(t, db.First(&hourly).Error)
	assert.Equal(t, int64(n), hourly.Hits)
}
