package rollups

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"leanstats/internal/hits"
	"leanstats/internal/timeframe"
)

// Aggregator increments the rollup rows of accepted hits.
type Aggregator struct {
	db     *gorm.DB
	logger *slog.Logger
	loc    *time.Location
}

// NewAggregator creates an aggregator bucketing hits in loc.
func NewAggregator(db *gorm.DB, logger *slog.Logger, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{db: db, logger: logger, loc: loc}
}

// Record adds one to the daily and the hourly row of hit in a single write
// transaction. Each increment is an atomic upsert, so concurrent hits on the
// same key never lose updates.
func (a *Aggregator) Record(ctx context.Context, hit hits.Hit) error {
	t := hit.Time()
	day := timeframe.DayBucket(t, a.loc)
	hour := timeframe.HourBucket(t, a.loc)

	return sqlite.PerformWrite(a.logger, a.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := increment(tx, DailyTable, day, hit); err != nil {
			return fmt.Errorf("failed to update daily rollup: %w", err)
		}
		if err := increment(tx, HourlyTable, hour, hit); err != nil {
			return fmt.Errorf("failed to update hourly rollup: %w", err)
		}
		return nil
	})
}

func increment(tx *gorm.DB, table, bucket string, hit hits.Hit) error {
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (date_bucket, page_path, referrer_domain, device_class, hits)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (date_bucket, page_path, referrer_domain, device_class) DO UPDATE SET
			hits = %[1]s.hits + 1
	`, table)
	return tx.Exec(query, bucket, hit.PagePath, hit.ReferrerDomain, string(hit.DeviceClass)).Error
}
