package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leanstats/internal/hits"
	"leanstats/internal/metrics"
)

func TestRecorderObserve(t *testing.T) {
	recorder := metrics.NewRecorder()

	recorder.Observe(hits.OutcomeTracked, 2*time.Millisecond)
	recorder.Observe(hits.OutcomeTracked, 3*time.Millisecond)
	recorder.Observe(hits.OutcomeDuplicate, time.Millisecond)

	counter := recorder.HitsCounter()
	assert.Equal(t, float64(2), testutil.ToFloat64(counter.WithLabelValues(string(hits.OutcomeTracked))))
	assert.Equal(t, float64(1), testutil.ToFloat64(counter.WithLabelValues(string(hits.OutcomeDuplicate))))
	assert.Equal(t, float64(0), testutil.ToFloat64(counter.WithLabelValues(string(hits.OutcomeRateLimited))))
	assert.Equal(t, len(hits.Outcomes()), testutil.CollectAndCount(counter))
}

func TestRecorderHandler(t *testing.T) {
	recorder := metrics.NewRecorder()
	recorder.Observe(hits.OutcomeSkipped, time.Millisecond)

	server := httptest.NewServer(recorder.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `leanstats_hits_total{outcome="skipped"} 1`)
	assert.Contains(t, string(body), "leanstats_hit_duration_seconds_count 1")
}
