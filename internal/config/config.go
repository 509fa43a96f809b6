package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// Stats feed API
	StatsAPIKey     string        `envconfig:"STATS_API_KEY" required:"true"`
	StatsAPIBaseURL string        `envconfig:"STATS_API_BASE_URL" default:"https://api.sportsdata.io/v3/mlb"`
	StatsAPITimeout time.Duration `envconfig:"STATS_API_TIMEOUT" default:"30s"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"hrpool"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"hrpool_user"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" required:"true"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP surfaces
	APIPort     int `envconfig:"API_PORT" default:"8080"`
	MetricsPort int `envconfig:"METRICS_PORT" default:"9090"`

	// Season. 0 means ask the feed for the current season at startup.
	CurrentSeason       int    `envconfig:"CURRENT_SEASON" default:"0"`
	SeasonLockDate      string `envconfig:"SEASON_LOCK_DATE" default:"2025-03-27"`
	AllStarSnapshotDate string `envconfig:"ALLSTAR_SNAPSHOT_DATE" default:"2025-07-14"`
	// Months that get their own leaderboard, as YYYY-MM keys.
	MonthlyPeriods []string `envconfig:"MONTHLY_PERIODS" default:"2025-04,2025-05,2025-06,2025-07,2025-08,2025-09"`

	// Scheduler cadence. The active window is when live games run; the
	// pipeline polls the feed more often inside it.
	EnableScheduler     bool          `envconfig:"ENABLE_SCHEDULER" default:"true"`
	InitialCycleEnabled bool          `envconfig:"INITIAL_CYCLE_ENABLED" default:"true"`
	ActiveWindowStart   string        `envconfig:"ACTIVE_WINDOW_START" default:"17:00"`
	ActiveWindowEnd     string        `envconfig:"ACTIVE_WINDOW_END" default:"23:30"`
	ActivePollInterval  time.Duration `envconfig:"ACTIVE_POLL_INTERVAL" default:"10m"`
	IdlePollInterval    time.Duration `envconfig:"IDLE_POLL_INTERVAL" default:"2h"`
	NightlyRefreshCron  string        `envconfig:"NIGHTLY_REFRESH_CRON" default:"0 3 * * *"`

	// Fetch retry policy
	FetchMaxAttempts  int           `envconfig:"FETCH_MAX_ATTEMPTS" default:"3"`
	BackoffBaseDelay  time.Duration `envconfig:"BACKOFF_BASE_DELAY" default:"2s"`
	BackoffMultiplier float64       `envconfig:"BACKOFF_MULTIPLIER" default:"2"`
	BackoffMaxDelay   time.Duration `envconfig:"BACKOFF_MAX_DELAY" default:"60s"`

	// Scoring
	ScoringConcurrency int `envconfig:"SCORING_CONCURRENCY" default:"8"`

	// Caching
	LeaderboardCacheTTL time.Duration `envconfig:"LEADERBOARD_CACHE_TTL" default:"60s"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.StatsAPIKey == "" {
		return fmt.Errorf("STATS_API_KEY is required")
	}

	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}

	if _, err := c.LockDate(); err != nil {
		return err
	}
	if _, err := c.AllStarDate(); err != nil {
		return err
	}
	if _, err := parseClock(c.ActiveWindowStart); err != nil {
		return fmt.Errorf("invalid ACTIVE_WINDOW_START: %w", err)
	}
	if _, err := parseClock(c.ActiveWindowEnd); err != nil {
		return fmt.Errorf("invalid ACTIVE_WINDOW_END: %w", err)
	}

	if c.FetchMaxAttempts < 1 {
		return fmt.Errorf("FETCH_MAX_ATTEMPTS must be at least 1")
	}

	return nil
}

// LockDate returns the roster lock date, the start of the overall scoring
// window.
func (c *Config) LockDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.SeasonLockDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid SEASON_LOCK_DATE: %w", err)
	}
	return t, nil
}

// AllStarDate returns the all-star snapshot date.
func (c *Config) AllStarDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.AllStarSnapshotDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ALLSTAR_SNAPSHOT_DATE: %w", err)
	}
	return t, nil
}

// ActiveWindow returns the active polling window as offsets from local
// midnight.
func (c *Config) ActiveWindow() (start, end time.Duration, err error) {
	start, err = parseClock(c.ActiveWindowStart)
	if err != nil {
		return 0, 0, err
	}
	end, err = parseClock(c.ActiveWindowEnd)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseClock(value string) (time.Duration, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q: %w", value, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
