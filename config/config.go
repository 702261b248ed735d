// Package config loads the bot configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds the environment driven configuration of the bot.
type Config struct {
	TelegramToken string `env:"TELEGRAM_BOT_TOKEN"`
	DBPath        string `env:"DB_PATH" envDefault:"data/freightbot.db"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Operators allowed to use /admin.
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	MaxWeight      int    `env:"MAX_WEIGHT" envDefault:"1000"`
	LocationsPath  string `env:"LOCATIONS_PATH"`
	SearchPageSize int    `env:"SEARCH_PAGE_SIZE" envDefault:"5"`

	// Messages per second during an admin broadcast.
	BroadcastRate float64 `env:"BROADCAST_RATE" envDefault:"25"`

	// Cron expression of the operator statistics report, "off" disables it.
	StatsCron string `env:"STATS_CRON" envDefault:"0 9 * * *"`

	// Listen address of the Prometheus endpoint, empty disables it.
	MetricsAddr string `env:"METRICS_ADDR"`
}

// Load reads the given .env files (missing ones are skipped, real
// environment variables win) and parses the environment into Config.
func Load(envFiles ...string) (*Config, error) {
	for _, path := range envFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.StatsCron = strings.TrimSpace(cfg.StatsCron)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []string
	if c.MaxWeight < 1 {
		errs = append(errs, "MAX_WEIGHT must be positive")
	}
	if c.SearchPageSize < 1 {
		errs = append(errs, "SEARCH_PAGE_SIZE must be positive")
	}
	if c.BroadcastRate <= 0 {
		errs = append(errs, "BROADCAST_RATE must be positive")
	}
	if c.DBPath == "" {
		errs = append(errs, "DB_PATH must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsAdmin reports whether the Telegram user id is on the operator allow-list.
func (c *Config) IsAdmin(id int64) bool {
	return slices.Contains(c.AdminIDs, id)
}

// StatsEnabled reports whether the periodic statistics report is scheduled.
func (c *Config) StatsEnabled() bool {
	return c.StatsCron != "" && !strings.EqualFold(c.StatsCron, "off")
}
