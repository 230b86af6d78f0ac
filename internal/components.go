package internal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"leanstats/internal/analytics"
	"leanstats/internal/auth"
	"leanstats/internal/config"
	"leanstats/internal/dedup"
	"leanstats/internal/hits"
	"leanstats/internal/jobs"
	"leanstats/internal/metrics"
	"leanstats/internal/ratelimit"
	"leanstats/internal/rawlogs"
	"leanstats/internal/rollups"
	"leanstats/internal/settings"
	"leanstats/internal/timeframe"
)

const redisPingTimeout = 5 * time.Second

// Components holds the long-lived services shared by the HTTP handlers,
// the background jobs and the CLI.
type Components struct {
	Config    *config.Config
	Logger    *slog.Logger
	DB        *gorm.DB
	Settings  *settings.Store
	Collector *hits.Collector
	Analytics *analytics.Service
	Ranges    *timeframe.Resolver
	RawLogs   *rawlogs.Store
	Nonces    *auth.NonceIssuer
	Metrics   *metrics.Recorder
	Scheduler *jobs.Scheduler
	Redis     *redis.Client
}

// NewComponents wires the hit pipeline and query services over db. When the
// cache backend is redis the dedup marks and rate limit counters live there.
func NewComponents(cfg *config.Config, db *gorm.DB, logger *slog.Logger) (*Components, error) {
	c := &Components{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Settings:  settings.NewStore(db, logger, cfg.SettingsCacheDuration()),
		Analytics: analytics.NewService(db),
		Ranges:    timeframe.NewResolver(cfg.Location()),
		RawLogs:   rawlogs.NewStore(db, logger, cfg.RawLogsCap()),
		Nonces:    auth.NewNonceIssuer(cfg.GetSessionSecret()),
		Metrics:   metrics.NewRecorder(),
		Scheduler: jobs.NewScheduler(logger),
	}

	var (
		marks    dedup.MarkStore
		counters ratelimit.Store
	)

	switch cfg.CacheBackend {
	case config.RedisBackend:
		client, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		c.Redis = client
		marks = dedup.NewRedisMarkStore(client)
		counters = ratelimit.NewRedisStore(client)
		logger.Info("Using redis for dedup marks and rate limit counters")
	default:
		gormMarks := dedup.NewGormMarkStore(db, logger)
		memoryCounters := ratelimit.NewMemoryStore()
		marks = gormMarks
		counters = memoryCounters

		if err := c.Scheduler.Register(cfg.DedupMarksPruneCron, jobs.NewDedupMarkPurgeJob(gormMarks, logger)); err != nil {
			return nil, err
		}
		if err := c.Scheduler.Register("@every 1m", jobs.NewRateLimitSweepJob(memoryCounters, logger)); err != nil {
			return nil, err
		}
	}

	if err := c.Scheduler.Register(cfg.RawLogsPruneCron, jobs.NewRawLogPruneJob(c.RawLogs, c.Settings, logger)); err != nil {
		return nil, err
	}

	opts := []hits.CollectorOption{hits.WithObserver(c.Metrics)}
	if cfg.RawLogsEnabled {
		opts = append(opts, hits.WithRawLog(c.RawLogs))
	}

	c.Collector = hits.NewCollector(
		c.Settings,
		dedup.NewFilter(cfg.DedupWindow(), marks, logger),
		ratelimit.New(counters, cfg.PrivateKey, cfg.RateLimitMax(), cfg.RateLimitWindow(), logger),
		rollups.NewAggregator(db, logger, cfg.Location()),
		logger,
		opts...,
	)

	return c, nil
}

// BackgroundWorkers returns the workers the application runs alongside the server.
func (c *Components) BackgroundWorkers() []cartridge.BackgroundWorker {
	workers := []cartridge.BackgroundWorker{c.Scheduler}
	if c.Config.MetricsPort > 0 {
		workers = append(workers, metrics.NewServer(c.Config.MetricsPort, c.Metrics, c.Logger))
	}
	return workers
}

// Close releases external connections.
func (c *Components) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Failed to close redis client", slog.Any("error", err))
		}
	}
}

func newRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
