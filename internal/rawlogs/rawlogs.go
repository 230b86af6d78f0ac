// Package rawlogs keeps a capped, rotating buffer of individual hits for debugging and export.
package rawlogs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"leanstats/internal/hits"
)

// DefaultMaxEntries is the buffer size used when none is configured.
const DefaultMaxEntries = 1000

const pruneBatchSize = 1000

// Entry is one stored hit. ID gives the insertion order.
type Entry struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	UUID            string    `gorm:"uniqueIndex;size:36;not null" json:"id"`
	PagePath        string    `gorm:"size:2048;not null" json:"page_path"`
	PostID          *uint64   `json:"post_id"`
	ReferrerDomain  string    `gorm:"size:255;not null;default:''" json:"referrer_domain"`
	DeviceClass     string    `gorm:"size:16;not null" json:"device_class"`
	TimestampBucket int64     `gorm:"not null" json:"timestamp_bucket"`
	CreatedAt       time.Time `gorm:"not null;index" json:"created_at"`
}

func (Entry) TableName() string {
	return "raw_logs"
}

// Store appends hits and enforces the cap on every insert.
type Store struct {
	db         *gorm.DB
	logger     *slog.Logger
	maxEntries int
	now        func() time.Time
}

func NewStore(db *gorm.DB, logger *slog.Logger, maxEntries int) *Store {
	if maxEntries < 1 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{db: db, logger: logger, maxEntries: maxEntries, now: time.Now}
}

// WithClock returns a copy of the store stamping entries with now.
func (s *Store) WithClock(now func() time.Time) *Store {
	return &Store{db: s.db, logger: s.logger, maxEntries: s.maxEntries, now: now}
}

// Record appends hit and drops the oldest entries beyond the cap.
func (s *Store) Record(ctx context.Context, hit hits.Hit) error {
	entry := Entry{
		UUID:            uuid.NewString(),
		PagePath:        hit.PagePath,
		ReferrerDomain:  hit.ReferrerDomain,
		DeviceClass:     string(hit.DeviceClass),
		TimestampBucket: hit.TimestampBucket,
		CreatedAt:       s.now().UTC(),
	}
	if hit.PostID > 0 {
		postID := hit.PostID
		entry.PostID = &postID
	}

	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to insert raw log entry: %w", err)
		}
		cutoff := int64(entry.ID) - int64(s.maxEntries)
		if cutoff <= 0 {
			return nil
		}
		if err := tx.Where("id <= ?", cutoff).Delete(&Entry{}).Error; err != nil {
			return fmt.Errorf("failed to trim raw logs: %w", err)
		}
		return nil
	})
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	entries := []Entry{}
	err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list raw logs: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Entry{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count raw logs: %w", err)
	}
	return count, nil
}

// Purge deletes every entry.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	var deleted int64
	err := sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		result := tx.Where("1 = 1").Delete(&Entry{})
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge raw logs: %w", err)
	}
	return deleted, nil
}

// PruneOlderThan deletes entries created before the retention window in
// batches, pausing between batches so hit writes are not starved.
func (s *Store) PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-retention)
	totalDeleted := int64(0)

	for {
		var batch int64
		err := sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
			result := tx.Exec(`
				DELETE FROM raw_logs
				WHERE id IN (SELECT id FROM raw_logs WHERE created_at < ? ORDER BY id LIMIT ?)
			`, cutoff, pruneBatchSize)
			batch = result.RowsAffected
			return result.Error
		})
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to prune raw logs: %w", err)
		}

		totalDeleted += batch
		if batch < pruneBatchSize {
			break
		}

		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return totalDeleted, nil
}
