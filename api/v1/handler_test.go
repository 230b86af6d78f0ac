// Package v1_test contains tests for the public ingestion endpoint
package v1_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	v1 "leanstats/api/v1"
	"leanstats/internal/auth"
	"leanstats/internal/dedup"
	"leanstats/internal/hits"
	"leanstats/internal/ratelimit"
	"leanstats/internal/rawlogs"
	"leanstats/internal/rollups"
	"leanstats/internal/settings"
	"leanstats/internal/testsupport"
)

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	settings *settings.Store
	rawLogs  *rawlogs.Store
}

func setupHitsApp(t *testing.T) *testEnv {
	t.Helper()
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	cfg := testsupport.TestConfig()

	settingsStore := settings.NewStore(db, logger, time.Millisecond)
	rawLogs := rawlogs.NewStore(db, logger, cfg.RawLogsCap())

	collector := hits.NewCollector(
		settingsStore,
		dedup.NewFilter(cfg.DedupWindow(), dedup.NewGormMarkStore(db, logger), logger),
		ratelimit.New(ratelimit.NewMemoryStore(), cfg.PrivateKey, cfg.RateLimitMax(), cfg.RateLimitWindow(), logger),
		rollups.NewAggregator(db, logger, time.UTC),
		logger,
		hits.WithRawLog(rawLogs),
	)

	anonymous := auth.ResolverFunc(func(c *fiber.Ctx) auth.Caller { return auth.Anonymous })
	handler := v1.NewHitsHandler(collector, anonymous, logger)

	app := fiber.New()
	app.Post("/hits", handler.Create)

	return &testEnv{app: app, db: db, settings: settingsStore, rawLogs: rawLogs}
}

func validPayload(path string) map[string]any {
	return map[string]any{
		"page_path":        path,
		"post_id":          42,
		"referrer_domain":  "https://www.Google.com/search?q=x",
		"device_class":     "desktop",
		"timestamp_bucket": 1700000123,
	}
}

func postJSON(t *testing.T, app *fiber.App, payload any, headers map[string]string) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/hits", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, 30000)
	require.NoError(t, err)
	return resp
}

func totalHits(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var total int64
	require.NoError(t, db.Model(&rollups.DailyRollup{}).Select("COALESCE(SUM(hits), 0)").Scan(&total).Error)
	return total
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded), "body: %s", string(body))
	return decoded
}

func TestCreateHit(t *testing.T) {
	t.Run("tracks a valid hit", func(t *testing.T) {
		env := setupHitsApp(t)

		resp := postJSON(t, env.app, validPayload("/blog/post/"), nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, true, decodeBody(t, resp)["tracked"])

		var row rollups.DailyRollup
		require.NoError(t, env.db.First(&row).Error)
		assert.Equal(t, "/blog/post", row.PagePath)
		assert.Equal(t, "www.google.com", row.ReferrerDomain)
		assert.Equal(t, "desktop", row.DeviceClass)
		assert.Equal(t, "2023-11-14", row.DateBucket)
		assert.Equal(t, int64(1), row.Hits)

		count, err := env.rawLogs.Count(t.Context())
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("duplicate submission is counted once", func(t *testing.T) {
		env := setupHitsApp(t)
		testsupport.CleanTables(env.db, rollups.DailyTable, rollups.HourlyTable, "dedup_marks")

		first := postJSON(t, env.app, validPayload("/pricing"), nil)
		second := postJSON(t, env.app, validPayload("/pricing"), nil)

		assert.Equal(t, http.StatusCreated, first.StatusCode)
		assert.Equal(t, http.StatusNoContent, second.StatusCode)
		assert.Equal(t, int64(1), totalHits(t, env.db))
	})

	t.Run("privacy signals skip the hit", func(t *testing.T) {
		env := setupHitsApp(t)
		testsupport.CleanTables(env.db, rollups.DailyTable, rollups.HourlyTable, "dedup_marks")

		resp := postJSON(t, env.app, validPayload("/private"), map[string]string{"DNT": "1"})
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = postJSON(t, env.app, validPayload("/private"), map[string]string{"Sec-GPC": "1"})
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		assert.Equal(t, int64(0), totalHits(t, env.db))
	})

	t.Run("bot user agents are recorded as bots", func(t *testing.T) {
		env := setupHitsApp(t)
		testsupport.CleanTables(env.db, rollups.DailyTable, rollups.HourlyTable, "dedup_marks")

		resp := postJSON(t, env.app, validPayload("/crawled"), map[string]string{
			"User-Agent": "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var row rollups.DailyRollup
		require.NoError(t, env.db.Where("page_path = ?", "/crawled").First(&row).Error)
		assert.Equal(t, "bot", row.DeviceClass)
	})

	t.Run("accepts form bodies", func(t *testing.T) {
		env := setupHitsApp(t)

		form := url.Values{}
		form.Set("page_path", "/form")
		form.Set("device_class", "mobile")
		form.Set("timestamp_bucket", "1700000123")

		req := httptest.NewRequest("POST", "/hits", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := env.app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})
}

func TestCreateHitValidation(t *testing.T) {
	env := setupHitsApp(t)

	tests := []struct {
		name     string
		payload  any
		raw      string
		wantCode string
	}{
		{
			name:     "missing page path",
			payload:  map[string]any{"device_class": "desktop", "timestamp_bucket": 1700000123},
			wantCode: hits.CodeInvalidPagePath,
		},
		{
			name:     "unknown device class",
			payload:  map[string]any{"page_path": "/", "device_class": "phablet", "timestamp_bucket": 1700000123},
			wantCode: hits.CodeInvalidDeviceClass,
		},
		{
			name:     "zero timestamp",
			payload:  map[string]any{"page_path": "/", "device_class": "desktop", "timestamp_bucket": 0},
			wantCode: hits.CodeInvalidTimestampBucket,
		},
		{
			name:     "malformed json",
			raw:      `{"page_path":`,
			wantCode: hits.CodeInvalidRequest,
		},
		{
			name:     "empty body",
			raw:      "",
			wantCode: hits.CodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body []byte
			if tt.payload != nil {
				var err error
				body, err = json.Marshal(tt.payload)
				require.NoError(t, err)
			} else {
				body = []byte(tt.raw)
			}

			req := httptest.NewRequest("POST", "/hits", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := env.app.Test(req, 30000)
			require.NoError(t, err)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			decoded := decodeBody(t, resp)
			assert.Equal(t, tt.wantCode, decoded["code"])
			assert.NotEmpty(t, decoded["message"])
		})
	}
}

func TestCreateHitRateLimit(t *testing.T) {
	env := setupHitsApp(t)
	headers := map[string]string{"X-Forwarded-For": "203.0.113.50"}

	for i := 0; i < 30; i++ {
		resp := postJSON(t, env.app, validPayload(fmt.Sprintf("/page-%d", i)), headers)
		require.Equal(t, http.StatusCreated, resp.StatusCode, "hit %d", i+1)
	}

	resp := postJSON(t, env.app, validPayload("/page-30"), headers)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	other := postJSON(t, env.app, validPayload("/page-31"), map[string]string{"X-Forwarded-For": "198.51.100.4"})
	assert.Equal(t, http.StatusCreated, other.StatusCode)

	assert.Equal(t, int64(31), totalHits(t, env.db))
}
