package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leanstats/internal/dedup"
	"leanstats/internal/rawlogs"
	"leanstats/internal/ratelimit"
	"leanstats/internal/settings"
)

// Job names.
const (
	RawLogPruneName    = "raw_log_prune"
	DedupMarkPurgeName = "dedup_mark_purge"
	RateLimitSweepName = "rate_limit_sweep"
)

// SettingsSource supplies the current tracking settings.
type SettingsSource interface {
	Current() settings.Settings
}

// RawLogPruneJob removes raw log entries older than the configured retention.
// Rollups are never touched.
type RawLogPruneJob struct {
	store    *rawlogs.Store
	settings SettingsSource
	logger   *slog.Logger
}

func NewRawLogPruneJob(store *rawlogs.Store, settings SettingsSource, logger *slog.Logger) *RawLogPruneJob {
	return &RawLogPruneJob{store: store, settings: settings, logger: logger}
}

func (j *RawLogPruneJob) Name() string { return RawLogPruneName }

func (j *RawLogPruneJob) Run(ctx context.Context) error {
	retentionDays := j.settings.Current().RawLogsRetentionDays
	retention := time.Duration(retentionDays) * 24 * time.Hour

	deleted, err := j.store.PruneOlderThan(ctx, retention)
	if err != nil {
		return fmt.Errorf("failed to prune raw logs: %w", err)
	}

	if deleted > 0 {
		j.logger.Info("Pruned raw logs",
			slog.Int("retention_days", retentionDays),
			slog.Int64("deleted", deleted))
	}
	return nil
}

// DedupMarkPurgeJob deletes expired durable dedup marks.
type DedupMarkPurgeJob struct {
	store  *dedup.GormMarkStore
	logger *slog.Logger
}

func NewDedupMarkPurgeJob(store *dedup.GormMarkStore, logger *slog.Logger) *DedupMarkPurgeJob {
	return &DedupMarkPurgeJob{store: store, logger: logger}
}

func (j *DedupMarkPurgeJob) Name() string { return DedupMarkPurgeName }

func (j *DedupMarkPurgeJob) Run(ctx context.Context) error {
	deleted, err := j.store.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge dedup marks: %w", err)
	}
	j.logger.Debug("Purged expired dedup marks", slog.Int64("deleted", deleted))
	return nil
}

// RateLimitSweepJob drops expired in-memory rate limit counters.
type RateLimitSweepJob struct {
	store  *ratelimit.MemoryStore
	logger *slog.Logger
}

func NewRateLimitSweepJob(store *ratelimit.MemoryStore, logger *slog.Logger) *RateLimitSweepJob {
	return &RateLimitSweepJob{store: store, logger: logger}
}

func (j *RateLimitSweepJob) Name() string { return RateLimitSweepName }

func (j *RateLimitSweepJob) Run(ctx context.Context) error {
	removed := j.store.Sweep()
	j.logger.Debug("Swept rate limit counters", slog.Int("removed", removed), slog.Int("remaining", j.store.Len()))
	return nil
}
