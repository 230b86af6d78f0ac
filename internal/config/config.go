// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

// Cache backends used by the dedup marks and rate-limit counters
const (
	MemoryBackend = "memory"
	RedisBackend  = "redis"
)

// Bounds applied to the hit pipeline tunables
const (
	MinDedupWindowSeconds     = 10
	MaxDedupWindowSeconds     = 30
	MinRateLimitWindowSeconds = 5
	MaxRateLimitWindowSeconds = 60
)

const defaultPrivateKey = "88888888888888888888888888888888"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName                    string   `mapstructure:"appname"`
	AppPort                    string   `mapstructure:"appport"`
	Environment                string   `mapstructure:"environment"`
	LogLevel                   LogLevel `mapstructure:"loglevel"`
	PrivateKey                 string   `mapstructure:"privatekey"`
	LoginSessionTimeoutSeconds int      `mapstructure:"loginsessiontimeoutseconds"`
	Timezone                   string   `mapstructure:"timezone"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Hit pipeline settings
	DedupWindowSeconds     int    `mapstructure:"dedupwindowseconds"`
	RateLimitWindowSeconds int    `mapstructure:"ratelimitwindowseconds"`
	RateLimitMaxHits       int    `mapstructure:"ratelimitmax"`
	CacheBackend           string `mapstructure:"cachebackend"`
	RedisURL               string `mapstructure:"redisurl"`
	SettingsCacheTTL       int    `mapstructure:"settingscachettlseconds"`

	// Raw log settings
	RawLogsEnabled    bool `mapstructure:"rawlogsenabled"`
	RawLogsMaxEntries int  `mapstructure:"rawlogsmaxentries"`

	// Job scheduling settings
	RawLogsPruneCron    string `mapstructure:"rawlogsprunecron"`
	DedupMarksPruneCron string `mapstructure:"dedupmarksprunecron"`

	// Metrics
	MetricsPort int `mapstructure:"metricsport"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "leanstats")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", defaultPrivateKey)
		v.SetDefault("loginsessiontimeoutseconds", 604800) // 1 week
		v.SetDefault("timezone", "UTC")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("publicdir", "web/dist/assets")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("dedupwindowseconds", 20)
		v.SetDefault("ratelimitwindowseconds", 10)
		v.SetDefault("ratelimitmax", 30)
		v.SetDefault("cachebackend", MemoryBackend)
		v.SetDefault("redisurl", "")
		v.SetDefault("settingscachettlseconds", 5)
		v.SetDefault("rawlogsenabled", false)
		v.SetDefault("rawlogsmaxentries", 1000)
		v.SetDefault("rawlogsprunecron", "@every 1h")
		v.SetDefault("dedupmarksprunecron", "@every 1m")
		v.SetDefault("metricsport", 0)

		v.BindEnv("appname", "LEANSTATS_APP_NAME")
		v.BindEnv("appport", "LEANSTATS_APP_PORT")
		v.BindEnv("environment", "LEANSTATS_ENV")
		v.BindEnv("loglevel", "LEANSTATS_LOG_LEVEL")
		v.BindEnv("privatekey", "LEANSTATS_PRIVATE_KEY")
		v.BindEnv("loginsessiontimeoutseconds", "LEANSTATS_LOGIN_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("timezone", "LEANSTATS_TIMEZONE")
		v.BindEnv("storagepath", "LEANSTATS_STORAGE_PATH")
		v.BindEnv("publicdir", "LEANSTATS_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "LEANSTATS_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "LEANSTATS_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "LEANSTATS_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "LEANSTATS_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "LEANSTATS_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "LEANSTATS_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "LEANSTATS_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "LEANSTATS_DB_MAX_IDLE_CONNS")
		v.BindEnv("dedupwindowseconds", "LEANSTATS_DEDUP_WINDOW_SECONDS")
		v.BindEnv("ratelimitwindowseconds", "LEANSTATS_RATE_LIMIT_WINDOW_SECONDS")
		v.BindEnv("ratelimitmax", "LEANSTATS_RATE_LIMIT_MAX")
		v.BindEnv("cachebackend", "LEANSTATS_CACHE_BACKEND")
		v.BindEnv("redisurl", "LEANSTATS_REDIS_URL")
		v.BindEnv("settingscachettlseconds", "LEANSTATS_SETTINGS_CACHE_TTL_SECONDS")
		v.BindEnv("rawlogsenabled", "LEANSTATS_RAW_LOGS_ENABLED")
		v.BindEnv("rawlogsmaxentries", "LEANSTATS_RAW_LOGS_MAX_ENTRIES")
		v.BindEnv("rawlogsprunecron", "LEANSTATS_RAW_LOGS_PRUNE_CRON")
		v.BindEnv("dedupmarksprunecron", "LEANSTATS_DEDUP_MARKS_PRUNE_CRON")
		v.BindEnv("metricsport", "LEANSTATS_METRICS_PORT")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		// In production the private key salts client IPs and signs nonces, so it must be unique
		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultPrivateKey {
			log.Fatal("Production requires a unique LEANSTATS_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	switch c.CacheBackend {
	case MemoryBackend:
	case RedisBackend:
		if c.RedisURL == "" {
			return fmt.Errorf("cache backend %q requires a redis url", c.CacheBackend)
		}
	default:
		return fmt.Errorf("invalid cache backend: %s", c.CacheBackend)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"rawlogsprunecron":    c.RawLogsPruneCron,
		"dedupmarksprunecron": c.DedupMarksPruneCron,
	} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, spec, err)
		}
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetLoginSessionTimeout returns the login session timeout in seconds.
func (c *Config) GetLoginSessionTimeout() int {
	return c.LoginSessionTimeoutSeconds
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1
// - Development/Production: 10 (concurrent report queries)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Location returns the timezone used for rollup buckets and report ranges.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DedupWindow returns the dedup window clamped to [10s, 30s].
func (c *Config) DedupWindow() time.Duration {
	return time.Duration(clamp(c.DedupWindowSeconds, MinDedupWindowSeconds, MaxDedupWindowSeconds)) * time.Second
}

// RateLimitWindow returns the rate-limit window clamped to [5s, 60s].
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(clamp(c.RateLimitWindowSeconds, MinRateLimitWindowSeconds, MaxRateLimitWindowSeconds)) * time.Second
}

// RateLimitMax returns the maximum accepted hits per window, at least 1.
func (c *Config) RateLimitMax() int {
	if c.RateLimitMaxHits < 1 {
		return 1
	}
	return c.RateLimitMaxHits
}

// RawLogsCap returns the raw log capacity, falling back to 1000.
func (c *Config) RawLogsCap() int {
	if c.RawLogsMaxEntries < 1 {
		return 1000
	}
	return c.RawLogsMaxEntries
}

// SettingsCacheDuration returns how long a settings snapshot is served from cache.
func (c *Config) SettingsCacheDuration() time.Duration {
	if c.SettingsCacheTTL < 1 {
		return time.Second
	}
	return time.Duration(c.SettingsCacheTTL) * time.Second
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
