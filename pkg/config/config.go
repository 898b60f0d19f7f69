package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WatcherConfig holds the poll loop timings.
type WatcherConfig struct {
	CheckIntervalSeconds int `yaml:"check_interval_seconds"`
	MaxRetries           int `yaml:"max_retries"`
	RetryDelaySeconds    int `yaml:"retry_delay_seconds"`
}

// BreakerConfig holds the circuit breaker constants.
type BreakerConfig struct {
	FailureThreshold   int `yaml:"failure_threshold"`
	OpenTimeoutSeconds int `yaml:"open_timeout_seconds"`
}

// NotificationsConfig holds the de-duplication settings.
type NotificationsConfig struct {
	CooldownHours float64 `yaml:"cooldown_hours"`
	HistoryLimit  int     `yaml:"history_limit"`
}

// ChatWorkConfig holds the outbound ChatWork credentials.
type ChatWorkConfig struct {
	Token   string `yaml:"token"`
	RoomID  string `yaml:"room_id"`
	APIBase string `yaml:"api_base"`
}

// TreasureConfig holds settings specific to the Treasure Factory listing.
type TreasureConfig struct {
	BaseURL                 string `yaml:"base_url"`
	SiteBaseURL             string `yaml:"site_base_url"`
	PageLoadTimeoutSeconds  int    `yaml:"page_load_timeout_seconds"`
	SelectorTimeoutSeconds  int    `yaml:"selector_timeout_seconds"`
	StabilityChecks         int    `yaml:"stability_checks"`
	StabilityIntervalMillis int    `yaml:"stability_interval_ms"`
	ItemLimit               int    `yaml:"item_limit"`
	Headless                bool   `yaml:"headless"`
}

// StorageConfig holds the persistence locations.
type StorageConfig struct {
	DataDir   string `yaml:"data_dir"`
	ArchiveDB string `yaml:"archive_db"`
}

// ServerConfig holds the optional read-only status API settings.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

// Config is the complete structure for the config.yml file.
type Config struct {
	Watcher       WatcherConfig       `yaml:"watcher"`
	Breaker       BreakerConfig       `yaml:"breaker"`
	Notifications NotificationsConfig `yaml:"notifications"`
	ChatWork      ChatWorkConfig      `yaml:"chatwork"`
	Treasure      TreasureConfig      `yaml:"treasure"`
	Storage       StorageConfig       `yaml:"storage"`
	Server        ServerConfig        `yaml:"server"`
}

// Default returns the built-in configuration. Every value can be overridden
// from the YAML file.
func Default() *Config {
	return &Config{
		Watcher: WatcherConfig{
			CheckIntervalSeconds: 30,
			MaxRetries:           3,
			RetryDelaySeconds:    10,
		},
		Breaker: BreakerConfig{
			FailureThreshold:   5,
			OpenTimeoutSeconds: 300,
		},
		Notifications: NotificationsConfig{
			CooldownHours: 6,
			HistoryLimit:  100,
		},
		ChatWork: ChatWorkConfig{
			APIBase: "https://api.chatwork.com/v2",
		},
		Treasure: TreasureConfig{
			BaseURL:                 "https://ec.treasure-f.com/search?category=1029&category2=1031&size=grid&order=newarrival&number=30&step=1",
			SiteBaseURL:             "https://ec.treasure-f.com",
			PageLoadTimeoutSeconds:  90,
			SelectorTimeoutSeconds:  30,
			StabilityChecks:         3,
			StabilityIntervalMillis: 500,
			ItemLimit:               30,
			Headless:                true,
		},
		Storage: StorageConfig{
			DataDir:   "data",
			ArchiveDB: "treasure_archive.db",
		},
		Server: ServerConfig{
			Enabled: false,
			Port:    "8080",
		},
	}
}

// Load reads the YAML file at filepath over the defaults. A missing file is
// fine, the watcher then runs on defaults alone.
func Load(filepath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config YAML: %w", err)
	}
	return cfg, nil
}

func (c WatcherConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

func (c WatcherConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

func (c BreakerConfig) OpenTimeout() time.Duration {
	return time.Duration(c.OpenTimeoutSeconds) * time.Second
}

func (c NotificationsConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownHours * float64(time.Hour))
}

func (c TreasureConfig) PageLoadTimeout() time.Duration {
	return time.Duration(c.PageLoadTimeoutSeconds) * time.Second
}

func (c TreasureConfig) SelectorTimeout() time.Duration {
	return time.Duration(c.SelectorTimeoutSeconds) * time.Second
}

func (c TreasureConfig) StabilityInterval() time.Duration {
	return time.Duration(c.StabilityIntervalMillis) * time.Millisecond
}
