package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/cache"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Setting represents a configuration item in the database
type Setting struct {
	ID        uint      `gorm:"primaryKey"`
	Key       string    `gorm:"uniqueIndex;not null"`
	Value     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:milli"`
}

// TrackingSettingsKey is the row holding the JSON settings document.
const TrackingSettingsKey = "tracking_settings"

// SetupDefaultSettings inserts the default settings document unless one exists.
func SetupDefaultSettings(dbConn *gorm.DB, logger *slog.Logger) error {
	doc, err := json.Marshal(Defaults())
	if err != nil {
		return err
	}

	return sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		err := tx.Exec(`
			INSERT INTO settings (key, value, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO NOTHING
		`, TrackingSettingsKey, string(doc), time.Now().UTC(), time.Now().UTC()).Error
		if err != nil {
			logger.Error("Failed to insert default settings", slog.Any("error", err))
			return fmt.Errorf("failed to insert default settings: %w", err)
		}
		return nil
	})
}

// Store loads and persists the settings document. Reads are served from a
// short-lived cache so the hit path does not query the database per request.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	cache  *cache.Cache[string, Settings]
}

// NewStore creates a settings store whose snapshots live for ttl.
func NewStore(db *gorm.DB, logger *slog.Logger, ttl time.Duration) *Store {
	s := &Store{db: db, logger: logger}
	s.cache = cache.NewCache[string, Settings](logger, ttl, func(key string) (Settings, error) {
		return s.Load()
	})
	return s
}

// Load reads the settings document from the database.
// A missing document yields the defaults.
func (s *Store) Load() (Settings, error) {
	return s.loadFrom(s.db)
}

func (s *Store) loadFrom(db *gorm.DB) (Settings, error) {
	var setting Setting
	err := db.Where("key = ?", TrackingSettingsKey).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(setting.Value), &raw); err != nil {
		s.logger.Warn("Stored settings are not valid JSON, using defaults", slog.Any("error", err))
		return Defaults(), nil
	}
	return Sanitize(raw), nil
}

// Current returns the settings snapshot for one request.
// Storage errors fall back to the defaults so hits are never blocked on settings.
func (s *Store) Current() Settings {
	current, err := s.cache.Get(TrackingSettingsKey)
	if err != nil {
		s.logger.Error("Failed to read settings, using defaults", slog.Any("error", err))
		return Defaults()
	}
	return current
}

// Save replaces the stored document with next.
func (s *Store) Save(next Settings) error {
	err := sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		return writeDocument(tx, next)
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	s.cache.Clear()
	return nil
}

// Update merges a partial update over the stored settings, sanitizes and
// persists it. The read and the write share one write transaction.
func (s *Store) Update(update map[string]any) (Settings, error) {
	var next Settings
	err := sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		current, err := s.loadFrom(tx)
		if err != nil {
			return err
		}
		next = Merge(current, update)
		return writeDocument(tx, next)
	})
	if err != nil {
		return Settings{}, fmt.Errorf("failed to update settings: %w", err)
	}

	s.cache.Clear()

	s.logger.Info("Tracking settings updated",
		slog.Bool("strict_mode", next.StrictMode),
		slog.Bool("respect_dnt_gpc", next.RespectDNTGPC),
		slog.Bool("url_strip_query", next.URLStripQuery),
		slog.Int("raw_logs_retention_days", next.RawLogsRetentionDays))
	return next, nil
}

func writeDocument(tx *gorm.DB, next Settings) error {
	doc, err := json.Marshal(next)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return tx.Exec(`
		INSERT INTO settings (key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, TrackingSettingsKey, string(doc), now, now).Error
}
