package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leanstats/internal/config"
)

func TestGetConfigDefaultsAndEnv(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	t.Setenv("LEANSTATS_ENV", config.Test)
	t.Setenv("LEANSTATS_STORAGE_PATH", t.TempDir())
	t.Setenv("LEANSTATS_RATE_LIMIT_MAX", "50")

	cfg := config.GetConfig()
	require.NotNil(t, cfg)

	assert.True(t, cfg.IsTest())
	assert.Equal(t, 50, cfg.RateLimitMax())
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, 20*time.Second, cfg.DedupWindow())
	assert.Equal(t, 10*time.Second, cfg.RateLimitWindow())
	assert.Equal(t, config.MemoryBackend, cfg.CacheBackend)
	assert.False(t, cfg.RawLogsEnabled)
	assert.Equal(t, 1000, cfg.RawLogsCap())
	assert.Equal(t, 1, cfg.GetMaxOpenConns())
	assert.Contains(t, cfg.GetDatabasePath(), "leanstats-test.db")
}

func TestPipelineTunablesAreClamped(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.Config
		dedup     time.Duration
		window    time.Duration
		max       int
		rawCap    int
		cacheTime time.Duration
	}{
		{
			name:      "below bounds",
			cfg:       config.Config{DedupWindowSeconds: 1, RateLimitWindowSeconds: 1, RateLimitMaxHits: 0},
			dedup:     10 * time.Second,
			window:    5 * time.Second,
			max:       1,
			rawCap:    1000,
			cacheTime: time.Second,
		},
		{
			name:      "above bounds",
			cfg:       config.Config{DedupWindowSeconds: 300, RateLimitWindowSeconds: 600, RateLimitMaxHits: 500, RawLogsMaxEntries: 50, SettingsCacheTTL: 30},
			dedup:     30 * time.Second,
			window:    60 * time.Second,
			max:       500,
			rawCap:    50,
			cacheTime: 30 * time.Second,
		},
		{
			name:      "within bounds",
			cfg:       config.Config{DedupWindowSeconds: 15, RateLimitWindowSeconds: 20, RateLimitMaxHits: 30},
			dedup:     15 * time.Second,
			window:    20 * time.Second,
			max:       30,
			rawCap:    1000,
			cacheTime: time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.dedup, tt.cfg.DedupWindow())
			assert.Equal(t, tt.window, tt.cfg.RateLimitWindow())
			assert.Equal(t, tt.max, tt.cfg.RateLimitMax())
			assert.Equal(t, tt.rawCap, tt.cfg.RawLogsCap())
			assert.Equal(t, tt.cacheTime, tt.cfg.SettingsCacheDuration())
		})
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := config.Config{Timezone: "Not/AZone"}
	assert.Equal(t, time.UTC, cfg.Location())
}
