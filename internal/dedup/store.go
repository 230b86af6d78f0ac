package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Mark is a durable dedup entry.
type Mark struct {
	Signature string `gorm:"primaryKey;size:32"`
	ExpiresAt int64  `gorm:"not null;index"` // unix milliseconds
}

func (Mark) TableName() string {
	return "dedup_marks"
}

// GormMarkStore keeps marks in the application database.
type GormMarkStore struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewGormMarkStore(db *gorm.DB, logger *slog.Logger) *GormMarkStore {
	return &GormMarkStore{db: db, logger: logger, now: time.Now}
}

// WithClock returns a copy of the store reading time from now.
func (s *GormMarkStore) WithClock(now func() time.Time) *GormMarkStore {
	return &GormMarkStore{db: s.db, logger: s.logger, now: now}
}

// MarkFirstSeen inserts the mark or refreshes an expired one in a single
// statement. An unexpired mark is left untouched and reported as seen.
func (s *GormMarkStore) MarkFirstSeen(ctx context.Context, key string, window time.Duration) (bool, error) {
	now := s.now()
	var affected int64

	err := sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		result := tx.Exec(`
			INSERT INTO dedup_marks (signature, expires_at)
			VALUES (?, ?)
			ON CONFLICT(signature) DO UPDATE SET expires_at = excluded.expires_at
			WHERE dedup_marks.expires_at <= ?
		`, key, now.Add(window).UnixMilli(), now.UnixMilli())
		if result.Error != nil {
			return result.Error
		}
		affected = result.RowsAffected
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark signature: %w", err)
	}

	return affected > 0, nil
}

// PurgeExpired deletes marks whose window has passed.
func (s *GormMarkStore) PurgeExpired(ctx context.Context) (int64, error) {
	var deleted int64
	err := sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		result := tx.Where("expires_at <= ?", s.now().UnixMilli()).Delete(&Mark{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge dedup marks: %w", err)
	}
	return deleted, nil
}
