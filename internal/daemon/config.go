// Package daemon manages the Glow daemon lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // rewards.timezone must resolve on hosts without zoneinfo

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	"github.com/glow-labs/glow/internal/app/engagement"
	"github.com/glow-labs/glow/internal/app/reward"
	"github.com/glow-labs/glow/internal/domain"
	"github.com/glow-labs/glow/internal/logging"
)

// EnvPrefix prefixes environment overrides, e.g. GLOW_API_PORT.
const EnvPrefix = "glow"

// Config holds all daemon configuration.
type Config struct {
	API           APIConfig           `toml:"api" split_words:"true"`
	Store         StoreConfig         `toml:"store" split_words:"true"`
	Rewards       RewardsConfig       `toml:"rewards" split_words:"true"`
	Jobs          JobsConfig          `toml:"jobs" split_words:"true"`
	Notifications NotificationsConfig `toml:"notifications" split_words:"true"`
	Health        HealthConfig        `toml:"health" split_words:"true"`
	Logging       logging.Config      `toml:"logging" split_words:"true"`
	Telemetry     TelemetryConfig     `toml:"telemetry" split_words:"true"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host           string  `toml:"host" split_words:"true"`
	Port           int     `toml:"port" split_words:"true"`
	RequestTimeout string  `toml:"request_timeout" split_words:"true"`
	JWTSecret      string  `toml:"jwt_secret" split_words:"true"` // empty = no auth
	JWTIssuer      string  `toml:"jwt_issuer" split_words:"true"`
	RatePerMinute  float64 `toml:"rate_per_minute" split_words:"true"` // 0 = unlimited
	RateBurst      int     `toml:"rate_burst" split_words:"true"`
}

// StoreConfig selects the progression store.
type StoreConfig struct {
	Driver   string `toml:"driver" split_words:"true"` // sqlite, postgres or memory
	Dir      string `toml:"dir" split_words:"true"`    // sqlite; empty = GLOW_HOME
	DSN      string `toml:"dsn" split_words:"true"`    // postgres
	MaxConns int32  `toml:"max_conns" split_words:"true"`
	MinConns int32  `toml:"min_conns" split_words:"true"`
}

// RewardsConfig tunes the reward engine.
type RewardsConfig struct {
	Timezone  string            `toml:"timezone" split_words:"true"` // IANA name; "Local" = system zone
	Durations []int             `toml:"durations" split_words:"true"`
	Loot      reward.LootConfig `toml:"loot" split_words:"true"`
}

// JobsConfig schedules background jobs. Specs use cron syntax in the
// rewards timezone.
type JobsConfig struct {
	StreakSaverSpec string `toml:"streak_saver_spec" split_words:"true"` // empty = disabled
}

// NotificationsConfig is the notification policy.
type NotificationsConfig struct {
	MaxPerDay  int    `toml:"max_per_day" split_words:"true"`
	QuietStart string `toml:"quiet_start" split_words:"true"`
	QuietEnd   string `toml:"quiet_end" split_words:"true"`
}

// HealthConfig controls the background health checker.
type HealthConfig struct {
	Interval string `toml:"interval" split_words:"true"`
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus" split_words:"true"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	policy := domain.DefaultNotificationPolicy()
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8420,
			RequestTimeout: "30s",
			JWTIssuer:      "glow",
			RateBurst:      20,
		},
		Store: StoreConfig{
			Driver:   "sqlite",
			MaxConns: 10,
			MinConns: 2,
		},
		Rewards: RewardsConfig{
			Timezone:  "Local",
			Durations: append([]int(nil), reward.DefaultDurations...),
			Loot:      reward.DefaultLootConfig(),
		},
		Jobs: JobsConfig{
			StreakSaverSpec: "5 0 * * *", // 00:05 daily
		},
		Notifications: NotificationsConfig{
			MaxPerDay:  policy.MaxPerDay,
			QuietStart: policy.QuietStart,
			QuietEnd:   policy.QuietEnd,
		},
		Health: HealthConfig{
			Interval: "60s",
		},
		Logging: logging.DefaultConfig(),
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads $GLOW_HOME/config.toml, falling back to defaults, then
// applies GLOW_* environment overrides and validates the result.
func LoadConfig() (Config, error) {
	return LoadConfigFile(filepath.Join(glowHome(), "config.toml"))
}

// LoadConfigFile is LoadConfig for an explicit path. A missing file is not
// an error.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes the config to $GLOW_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(glowHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if _, err := parseDurationStrict(c.API.RequestTimeout); err != nil {
		errs = append(errs, fmt.Errorf("api.request_timeout: %w", err))
	}
	if c.API.RatePerMinute < 0 {
		errs = append(errs, errors.New("api.rate_per_minute must be >= 0"))
	}

	switch c.Store.Driver {
	case "sqlite", "memory":
	case "postgres":
		if strings.TrimSpace(c.Store.DSN) == "" {
			errs = append(errs, errors.New("store.dsn is required for postgres"))
		}
		if c.Store.MaxConns <= 0 || c.Store.MinConns < 0 || c.Store.MinConns > c.Store.MaxConns {
			errs = append(errs, errors.New("store.min_conns/max_conns are inconsistent"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q: want sqlite, postgres or memory", c.Store.Driver))
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	for _, d := range c.Rewards.Durations {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("rewards.durations: %d is not a positive minute count", d))
		}
	}
	loot := c.Rewards.Loot
	if loot.StreakSaverCap < 1 || loot.OverflowTokens < 1 || loot.MaxPicks < 1 {
		errs = append(errs, errors.New("rewards.loot: streak_saver_cap, overflow_tokens and max_picks must be positive"))
	}

	if err := engagement.ValidatePolicy(c.Policy()); err != nil {
		errs = append(errs, fmt.Errorf("notifications: %w", err))
	}
	if _, err := parseDurationStrict(c.Health.Interval); err != nil {
		errs = append(errs, fmt.Errorf("health.interval: %w", err))
	}
	return errors.Join(errs...)
}

// Location loads the rewards timezone.
func (c Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Rewards.Timezone)
	if tz == "" || tz == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("rewards.timezone %q: %w", tz, err)
	}
	return loc, nil
}

// Policy returns the notification policy.
func (c Config) Policy() domain.NotificationPolicy {
	return domain.NotificationPolicy{
		MaxPerDay:  c.Notifications.MaxPerDay,
		QuietStart: c.Notifications.QuietStart,
		QuietEnd:   c.Notifications.QuietEnd,
	}
}

// Addr is the API listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// glowHome returns the Glow data directory.
func glowHome() string {
	if env := os.Getenv("GLOW_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".glow")
}

// GlowHome is exported for use by other packages.
func GlowHome() string {
	return glowHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := parseDurationStrict(s)
	if err != nil || d == 0 {
		return fallback
	}
	return d
}

func parseDurationStrict(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
