// Package config loads service settings from defaults, an optional YAML
// file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Stats   StatsConfig   `mapstructure:"stats"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Discord DiscordConfig `mapstructure:"discord"`

	StateDBPath      string `mapstructure:"state_db_path"`
	AchievementsPath string `mapstructure:"achievements_path"`
}

// StatsConfig points at the listening-stats service.
type StatsConfig struct {
	BaseURL              string `mapstructure:"base_url"`
	CompletedEndpoint    string `mapstructure:"completed_endpoint"`
	FetchTimeoutSeconds  int    `mapstructure:"fetch_timeout_seconds"`
	FetchRetries         int    `mapstructure:"fetch_retries"`
	SeriesRefreshSeconds int    `mapstructure:"series_refresh_seconds"`
}

type EngineConfig struct {
	PollSeconds int    `mapstructure:"poll_seconds"`
	Workers     int    `mapstructure:"workers"`
	Timezone    string `mapstructure:"timezone"` // IANA name, e.g. America/New_York
}

type DiscordConfig struct {
	ProxyURL    string `mapstructure:"proxy_url"` // empty disables Discord
	UserAliases string `mapstructure:"user_aliases"`
}

// env maps config keys to the environment variables deployments already use.
var env = map[string]string{
	"stats.base_url":               "ABSSTATS_BASE_URL",
	"stats.completed_endpoint":     "COMPLETED_ENDPOINT",
	"stats.fetch_timeout_seconds":  "FETCH_TIMEOUT_SECONDS",
	"stats.fetch_retries":          "FETCH_RETRIES",
	"stats.series_refresh_seconds": "SERIES_REFRESH_SECONDS",
	"engine.poll_seconds":          "POLL_SECONDS",
	"engine.workers":               "WORKERS",
	"engine.timezone":              "TIMEZONE",
	"discord.proxy_url":            "DISCORD_PROXY_URL",
	"discord.user_aliases":         "USER_ALIASES",
	"state_db_path":                "STATE_DB_PATH",
	"achievements_path":            "ACHIEVEMENTS_PATH",
}

// Load reads configuration. When path is empty, trophycase.yaml is looked
// up in the working directory and /etc/trophycase, and a missing file is
// not an error. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("trophycase")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/trophycase")
	}

	v.SetDefault("stats.base_url", "http://localhost:3010")
	v.SetDefault("stats.completed_endpoint", "/api/completed")
	v.SetDefault("stats.fetch_timeout_seconds", 15)
	v.SetDefault("stats.fetch_retries", 3)
	v.SetDefault("stats.series_refresh_seconds", 24*3600)

	v.SetDefault("engine.poll_seconds", 300)
	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.timezone", "America/New_York")

	v.SetDefault("discord.proxy_url", "")
	v.SetDefault("discord.user_aliases", "")

	v.SetDefault("state_db_path", "/data/state.db")
	v.SetDefault("achievements_path", "./data/achievements.points.json")

	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Stats.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Stats.BaseURL), "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Stats.BaseURL == "":
		return errors.New("config: stats base URL is required")
	case c.Engine.PollSeconds <= 0:
		return fmt.Errorf("config: poll interval must be positive, got %d", c.Engine.PollSeconds)
	case c.StateDBPath == "":
		return errors.New("config: state database path is required")
	case c.AchievementsPath == "":
		return errors.New("config: achievements path is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollSeconds) * time.Second
}

func (c *Config) SeriesRefresh() time.Duration {
	return time.Duration(c.Stats.SeriesRefreshSeconds) * time.Second
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Stats.FetchTimeoutSeconds) * time.Second
}

// Location resolves the reference timezone. Empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Engine.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Engine.Timezone, err)
	}
	return loc, nil
}
