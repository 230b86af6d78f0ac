package hits

import (
	"context"
	"log/slog"
	"time"

	"leanstats/internal/pkg/user_agent"
	"leanstats/internal/privacy"
	"leanstats/internal/settings"
)

// Outcome is how the pipeline disposed of a hit.
type Outcome string

const (
	OutcomeTracked        Outcome = "tracked"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeInvalid        Outcome = "invalid"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeRateLimited    Outcome = "rate_limited"
	OutcomeStorageFailure Outcome = "storage_failure"
)

// Outcomes lists every outcome, in pipeline order.
func Outcomes() []Outcome {
	return []Outcome{
		OutcomeTracked,
		OutcomeSkipped,
		OutcomeInvalid,
		OutcomeDuplicate,
		OutcomeRateLimited,
		OutcomeStorageFailure,
	}
}

// Tracked reports whether the hit was counted.
func (o Outcome) Tracked() bool {
	return o == OutcomeTracked
}

// SettingsSource hands out the current settings snapshot.
type SettingsSource interface {
	Current() settings.Settings
}

// DuplicateChecker reports whether a hit was already seen within the dedup window,
// marking it seen otherwise.
type DuplicateChecker interface {
	IsDuplicate(ctx context.Context, hit Hit) (bool, error)
}

// RateLimiter reports whether the client behind ip exceeded its budget.
type RateLimiter interface {
	IsRateLimited(ctx context.Context, ip string) bool
}

// Recorder stores an accepted hit.
type Recorder interface {
	Record(ctx context.Context, hit Hit) error
}

// Observer receives the outcome and latency of every submission.
type Observer interface {
	Observe(outcome Outcome, elapsed time.Duration)
}

// Submission is everything the pipeline needs from one inbound request.
type Submission struct {
	Payload   Payload
	Privacy   privacy.Request
	ClientIP  string
	UserAgent string
}

// Collector runs the privacy gate, sanitizer, dedup filter, rate limiter and
// recorders in that order.
type Collector struct {
	settings   SettingsSource
	dedup      DuplicateChecker
	limiter    RateLimiter
	aggregator Recorder
	rawLog     Recorder
	observer   Observer
	logger     *slog.Logger
}

// CollectorOption configures optional collaborators.
type CollectorOption func(*Collector)

// WithRawLog stores every tracked hit in the raw log as well.
func WithRawLog(r Recorder) CollectorOption {
	return func(c *Collector) {
		c.rawLog = r
	}
}

// WithObserver reports outcomes to o.
func WithObserver(o Observer) CollectorOption {
	return func(c *Collector) {
		c.observer = o
	}
}

func NewCollector(
	settingsSource SettingsSource,
	dedup DuplicateChecker,
	limiter RateLimiter,
	aggregator Recorder,
	logger *slog.Logger,
	opts ...CollectorOption,
) *Collector {
	c := &Collector{
		settings:   settingsSource,
		dedup:      dedup,
		limiter:    limiter,
		aggregator: aggregator,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect processes one submission. The only error it returns is a
// *ValidationError; every other rejection is an Outcome.
func (c *Collector) Collect(ctx context.Context, sub Submission) (outcome Outcome, err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.Observe(outcome, time.Since(start))
		}
	}()

	snapshot := c.settings.Current()

	if privacy.ShouldSkip(sub.Privacy, snapshot) {
		return OutcomeSkipped, nil
	}

	hit, err := Sanitize(sub.Payload, snapshot)
	if err != nil {
		return OutcomeInvalid, err
	}

	if hit.DeviceClass != DeviceBot {
		if bot, ok := user_agent.DetectBot(sub.UserAgent); ok {
			c.logger.Debug("Reclassified hit as bot",
				slog.String("bot", bot.Name),
				slog.String("category", bot.Category))
			hit.DeviceClass = DeviceBot
		}
	}

	duplicate, derr := c.dedup.IsDuplicate(ctx, hit)
	if derr != nil {
		c.logger.Warn("Dedup check degraded", slog.Any("error", derr))
	}
	if duplicate {
		return OutcomeDuplicate, nil
	}

	if sub.ClientIP != "" && c.limiter.IsRateLimited(ctx, sub.ClientIP) {
		return OutcomeRateLimited, nil
	}

	if rerr := c.aggregator.Record(ctx, hit); rerr != nil {
		c.logger.Error("Failed to record hit",
			slog.String("page_path", hit.PagePath),
			slog.String("device_class", string(hit.DeviceClass)),
			slog.Any("error", rerr))
		return OutcomeStorageFailure, nil
	}

	if c.rawLog != nil {
		if rerr := c.rawLog.Record(ctx, hit); rerr != nil {
			c.logger.Warn("Failed to append raw log entry", slog.Any("error", rerr))
		}
	}

	return OutcomeTracked, nil
}
