package rawlogs_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leanstats/internal/hits"
	"leanstats/internal/rawlogs"
	"leanstats/internal/testsupport"
)

func hit(path string) hits.Hit {
	return hits.Hit{
		PagePath:        path,
		DeviceClass:     hits.DeviceDesktop,
		TimestampBucket: 1700000100,
	}
}

func TestRecordEnforcesCap(t *testing.T) {
	ctx := context.Background()
	db := testsupport.SetupTestDB(t)
	store := rawlogs.NewStore(db, testsupport.GetLogger(), 3)

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Record(ctx, hit(fmt.Sprintf("/p%d", i))))
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "/p5", entries[0].PagePath)
	assert.Equal(t, "/p3", entries[2].PagePath)
}

func TestRecordStoresHitFields(t *testing.T) {
	ctx := context.Background()
	db := testsupport.SetupTestDB(t)
	store := rawlogs.NewStore(db, testsupport.GetLogger(), 10)

	withPost := hit("/post")
	withPost.PostID = 42
	withPost.ReferrerDomain = "example.com"
	require.NoError(t, store.Record(ctx, withPost))
	require.NoError(t, store.Record(ctx, hit("/page")))

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Nil(t, entries[0].PostID)
	require.NotNil(t, entries[1].PostID)
	assert.Equal(t, uint64(42), *entries[1].PostID)
	assert.Equal(t, "example.com", entries[1].ReferrerDomain)
	assert.Len(t, entries[1].UUID, 36)
	assert.NotEqual(t, entries[0].UUID, entries[1].UUID)
}

func TestPruneOlderThan(t *testing.T) {
	ctx := context.Background()
	db := testsupport.SetupTestDB(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := rawlogs.NewStore(db, testsupport.GetLogger(), 100).WithClock(clock)

	require.NoError(t, store.Record(ctx, hit("/old")))
	now = now.Add(20 * 24 * time.Hour)
	require.NoError(t, store.Record(ctx, hit("/recent")))
	now = now.Add(15 * 24 * time.Hour)

	deleted, err := store.PruneOlderThan(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/recent", entries[0].PagePath)
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	db := testsupport.SetupTestDB(t)
	store := rawlogs.NewStore(db, testsupport.GetLogger(), 10)

	require.NoError(t, store.Record(ctx, hit("/a")))
	require.NoError(t, store.Record(ctx, hit("/b")))

	deleted, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
