package hits_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leanstats/internal/auth"
	"leanstats/internal/hits"
	"leanstats/internal/privacy"
	"leanstats/internal/settings"
	"leanstats/internal/testsupport"
)

type staticSettings struct {
	s settings.Settings
}

func (s staticSettings) Current() settings.Settings { return s.s }

type memoryDedup struct {
	mu   sync.Mutex
	seen map[hits.Hit]bool
	err  error
}

func (d *memoryDedup) IsDuplicate(_ context.Context, hit hits.Hit) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[hits.Hit]bool{}
	}
	dup := d.seen[hit]
	d.seen[hit] = true
	return dup, d.err
}

type countingLimiter struct {
	mu    sync.Mutex
	max   int
	calls map[string]int
}

func (l *countingLimiter) IsRateLimited(_ context.Context, ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls == nil {
		l.calls = map[string]int{}
	}
	if l.calls[ip] >= l.max {
		return true
	}
	l.calls[ip]++
	return false
}

type memoryRecorder struct {
	mu   sync.Mutex
	hits []hits.Hit
	err  error
}

func (r *memoryRecorder) Record(_ context.Context, hit hits.Hit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.hits = append(r.hits, hit)
	return nil
}

type outcomeLog struct {
	mu       sync.Mutex
	outcomes []hits.Outcome
}

func (o *outcomeLog) Observe(outcome hits.Outcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

type pipeline struct {
	collector  *hits.Collector
	aggregator *memoryRecorder
	rawLog     *memoryRecorder
	dedup      *memoryDedup
	observer   *outcomeLog
}

func newPipeline(s settings.Settings, maxHits int) *pipeline {
	p := &pipeline{
		aggregator: &memoryRecorder{},
		rawLog:     &memoryRecorder{},
		dedup:      &memoryDedup{},
		observer:   &outcomeLog{},
	}
	p.collector = hits.NewCollector(
		staticSettings{s},
		p.dedup,
		&countingLimiter{max: maxHits},
		p.aggregator,
		testsupport.GetLogger(),
		hits.WithRawLog(p.rawLog),
		hits.WithObserver(p.observer),
	)
	return p
}

func submission(path string) hits.Submission {
	return hits.Submission{
		Payload:  validPayload(path),
		ClientIP: "203.0.113.7",
	}
}

func TestCollector(t *testing.T) {
	ctx := context.Background()

	t.Run("tracks a valid hit", func(t *testing.T) {
		p := newPipeline(settings.Defaults(), 30)

		outcome, err := p.collector.Collect(ctx, submission("/blog/"))
		require.NoError(t, err)
		assert.Equal(t, hits.OutcomeTracked, outcome)
		assert.True(t, outcome.Tracked())

		require.Len(t, p.aggregator.hits, 1)
		assert.Equal(t, "/blog", p.aggregator.hits[0].PagePath)
		assert.Len(t, p.rawLog.hits, 1)
		assert.Equal(t, []hits.Outcome{hits.OutcomeTracked}, p.observer.outcomes)
	})

	t.Run("privacy skip happens before validation", func(t *testing.T) {
		p := newPipeline(settings.Defaults(), 30)

		sub := submission("")
		sub.Privacy = privacy.Request{DNT: "1"}
		outcome, err := p.collector.Collect(ctx, sub)
		require.NoError(t, err)
		assert.Equal(t, hits.OutcomeSkipped, outcome)
		assert.Empty(t, p.aggregator.hits)
	})

	t.Run("excluded roles are skipped", func(t *testing.T) {
		s := settings.Defaults()
		s.ExcludedRoles = []string{"editor"}
		p := newPipeline(s, 30)

		sub := submission("/")
		sub.Privacy = privacy.Request{Caller: auth.Caller{UserID: 1, Roles: []string{"editor"}, Authenticated: true}}
		outcome, err := p.collector.Collect(ctx, sub)
		require.NoError(t, err)
		assert.Equal(t, hits.OutcomeSkipped, outcome)
	})

	t.Run("validation errors are returned", func(t *testing.T) {
		p := newPipeline(settings.Defaults(), 30)

		sub := submission("/")
		sub.Payload.DeviceClass = "fridge"
		outcome, err := p.collector.Collect(ctx, sub)
		assert.Equal(t, hits.OutcomeInvalid, outcome)
		verr, ok := hits.AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, hits.CodeInvalidDeviceClass, verr.Code)
	})

	t.Run("identical hits within the window count once", func(t *testing.T) {
		p := newPipeline(settings.Defaults(), 30)

		first, err := p.collector.Collect(ctx, submission("/pricing"))
		require.NoError(t, err)
		second, err := p.collector.Collect(ctx, submission("/pricing/"))
		require.NoError(t, err)

		assert.Equal(t, hits.OutcomeTracked, first)
		assert.Equal(t, hits.OutcomeDuplicate, second)
		assert.Len(t, p.aggregator.hits, 1)
	})

	t.Run("rate limited after the budget is spent", func(t *testing.T) {
		p := newPipeline(settings.Defaults(), 2)

		paths := []string{"/a", "/b", "/c"}
		var outcomes []hits.Outcome
		for _, path := range paths {
			outcome, err := p.collector.Collect(ctx, submission(path))
			require.NoError(t, err)
			outcomes = append(outcomes, outcome)
		}

		assert.Equal(t, []hits.Outcome{hits.OutcomeTracked, hits.OutcomeTracked, hits.OutcomeRateLimited}, outcomes)
	})

	t.Run("missing client ip skips rate limiting", func(t *testing.T) {
		p := newPipeline(settings.Defaults(), 1)

		for _, path := range []string{"/a", "/b", "/c"} {
			sub := submission(path)
			sub.ClientIP = ""
			outcome, err := p.collector.Collect(ctx, sub)
			require.NoError(t, err)
			assert.Equal(t, hits.OutcomeTracked, outcome)
		}
	})

	t.Run("bot user agents are reclassified", func(t *testing.T) {
		p := newPipeline(settings.Defaults(), 30)

		sub := submission("/")
		sub.UserAgent = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
		outcome, err := p.collector.Collect(ctx, sub)
		require.NoError(t, err)
		assert.Equal(t, hits.OutcomeTracked, outcome)
		assert.Equal(t, hits.DeviceBot, p.aggregator.hits[0].DeviceClass)
	})

	t.Run("storage failure is swallowed", func(t *testing.T) {
		p := newPipeline(settings.Defaults(), 30)
		p.aggregator.err = errors.New("disk full")

		outcome, err := p.collector.Collect(ctx, submission("/"))
		require.NoError(t, err)
		assert.Equal(t, hits.OutcomeStorageFailure, outcome)
		assert.Empty(t, p.rawLog.hits)
	})

	t.Run("raw log failure does not affect the outcome", func(t *testing.T) {
		p := newPipeline(settings.Defaults(), 30)
		p.rawLog.err = errors.New("locked")

		outcome, err := p.collector.Collect(ctx, submission("/"))
		require.NoError(t, err)
		assert.Equal(t, hits.OutcomeTracked, outcome)
		assert.Len(t, p.aggregator.hits, 1)
	})

	t.Run("degraded dedup still answers", func(t *testing.T) {
		p := newPipeline(settings.Defaults(), 30)
		p.dedup.err = errors.New("redis down")

		outcome, err := p.collector.Collect(ctx, submission("/"))
		require.NoError(t, err)
		assert.Equal(t, hits.OutcomeTracked, outcome)
	})
}
