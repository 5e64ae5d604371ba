// Package common provides shared utilities for snaptrail
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/snaptrail/internal/calendar"
	"github.com/bobmcallan/snaptrail/internal/models"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for snaptrail
type Config struct {
	Environment string          `toml:"environment"`
	Accounts    []string        `toml:"accounts"`
	Timezone    string          `toml:"timezone"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Broker      BrokerConfig    `toml:"broker"`
	Signals     SignalsConfig   `toml:"signals"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds configuration for the three storage areas.
type StorageConfig struct {
	Raw      RawConfig  `toml:"raw"`      // Append-only JSONL snapshots (file or S3)
	Columnar AreaConfig `toml:"columnar"` // Materialized partitions (SQLite)
	Internal AreaConfig `toml:"internal"` // Run reports (BadgerHold)
}

// AreaConfig holds path configuration for a storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// Raw log backends.
const (
	BackendFile = "file"
	BackendS3   = "s3"
)

// RawConfig selects where raw snapshot entries are written.
type RawConfig struct {
	Backend string   `toml:"backend"` // "file" (default) or "s3"
	Path    string   `toml:"path"`    // base directory for the file backend
	S3      S3Config `toml:"s3"`
}

// S3Config holds S3 configuration for the raw log
type S3Config struct {
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`   // Optional key prefix within bucket
	Region    string `toml:"region"`   // AWS region (e.g., "ap-south-1")
	Endpoint  string `toml:"endpoint"` // Custom endpoint for S3-compatible stores (MinIO, R2)
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
}

// BrokerConfig holds configuration for fetching broker exports.
type BrokerConfig struct {
	Inbox   string `toml:"inbox"`   // directory of <account>/holdings.json, <account>/funds.json
	Pacing  string `toml:"pacing"`  // minimum interval between account fetches
	Timeout string `toml:"timeout"` // per-fetch timeout
}

// GetPacing parses the pacing interval. Zero disables pacing.
func (c *BrokerConfig) GetPacing() time.Duration {
	d, err := time.ParseDuration(c.Pacing)
	if err != nil || d < 0 {
		return 2 * time.Second
	}
	return d
}

// GetTimeout parses the per-fetch timeout. Zero or negative disables it.
func (c *BrokerConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	if d < 0 {
		return 0
	}
	return d
}

// SignalsConfig holds the trailing stop-loss policy.
type SignalsConfig struct {
	ExcludedSymbols []string            `toml:"excluded_symbols"`
	Policy          []models.PolicyRule `toml:"policy"`
	Momentum        MomentumConfig      `toml:"momentum"`
	MaxRows         int                 `toml:"max_rows"` // rows per table in console reports
}

// MomentumConfig controls BUY-WATCH detection. Window 0 disables it.
type MomentumConfig struct {
	Window  int     `toml:"window"`
	MinGain float64 `toml:"min_gain"`
}

// IsExcluded reports whether a symbol is treated as cash rather than a position.
func (c *SignalsConfig) IsExcluded(symbol string) bool {
	for _, s := range c.ExcludedSymbols {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}
	return false
}

// SchedulerConfig holds the daily run schedule.
type SchedulerConfig struct {
	Schedule string `toml:"schedule"` // cron expression with seconds field
	Serve    bool   `toml:"serve"`    // also serve the read-only API while scheduled
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// DefaultPolicy is the drawdown-only exit table.
func DefaultPolicy() []models.PolicyRule {
	return []models.PolicyRule{
		{Metric: models.MetricDrawdown, Threshold: 0.25, Action: models.SignalStop, ExitFraction: 1.0},
		{Metric: models.MetricDrawdown, Threshold: 0.15, Action: models.SignalTrim, ExitFraction: 0.5},
	}
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Timezone:    calendar.DefaultTimezone,
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8484,
		},
		Storage: StorageConfig{
			Raw:      RawConfig{Backend: BackendFile, Path: "data/raw"},
			Columnar: AreaConfig{Path: "data/snapshots.db"},
			Internal: AreaConfig{Path: "data/internal"},
		},
		Broker: BrokerConfig{
			Inbox:   "data/inbox",
			Pacing:  "2s",
			Timeout: "30s",
		},
		Signals: SignalsConfig{
			ExcludedSymbols: []string{"LIQUIDCASE"},
			Policy:          DefaultPolicy(),
			Momentum:        MomentumConfig{Window: 5, MinGain: 0},
			MaxRows:         20,
		},
		Scheduler: SchedulerConfig{
			Schedule: "0 30 16 * * MON-FRI",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "console",
			Outputs:  []string{"console"},
			FilePath: "./logs/snaptrail.log",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// .env values never replace variables already set in the environment
	_ = godotenv.Load()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	config.Accounts = dedupe(config.Accounts)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SNAPTRAIL_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("SNAPTRAIL_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("SNAPTRAIL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("SNAPTRAIL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if tz := os.Getenv("SNAPTRAIL_TIMEZONE"); tz != "" {
		config.Timezone = tz
	}

	if path := os.Getenv("SNAPTRAIL_DATA_PATH"); path != "" {
		config.Storage.Raw.Path = filepath.Join(path, "raw")
		config.Storage.Columnar.Path = filepath.Join(path, "snapshots.db")
		config.Storage.Internal.Path = filepath.Join(path, "internal")
		config.Broker.Inbox = filepath.Join(path, "inbox")
	}

	if accounts := os.Getenv("SNAPTRAIL_ACCOUNTS"); accounts != "" {
		var list []string
		for _, a := range strings.Split(accounts, ",") {
			if a = strings.TrimSpace(a); a != "" {
				list = append(list, a)
			}
		}
		config.Accounts = list
	}

	// S3 credentials stay out of config files
	if v := os.Getenv("SNAPTRAIL_S3_ACCESS_KEY"); v != "" {
		config.Storage.Raw.S3.AccessKey = v
	}
	if v := os.Getenv("SNAPTRAIL_S3_SECRET_KEY"); v != "" {
		config.Storage.Raw.S3.SecretKey = v
	}
}

// Validate checks the policy table, momentum settings and storage backend.
func (c *Config) Validate() error {
	for i, rule := range c.Signals.Policy {
		switch rule.Metric {
		case models.MetricDrawdown, models.MetricLoss:
		default:
			return fmt.Errorf("signals.policy[%d]: unknown metric %q", i, rule.Metric)
		}
		switch rule.Action {
		case models.SignalTrim, models.SignalStop:
		default:
			return fmt.Errorf("signals.policy[%d]: unsupported action %q", i, rule.Action)
		}
		if rule.Threshold <= 0 || rule.Threshold > 1 {
			return fmt.Errorf("signals.policy[%d]: threshold %.4f outside (0, 1]", i, rule.Threshold)
		}
		if rule.ExitFraction < 0 || rule.ExitFraction > 1 {
			return fmt.Errorf("signals.policy[%d]: exit_fraction %.4f outside [0, 1]", i, rule.ExitFraction)
		}
	}

	if w := c.Signals.Momentum.Window; w == 1 || w < 0 {
		return fmt.Errorf("signals.momentum.window must be 0 or at least 2, got %d", w)
	}

	switch c.Storage.Raw.Backend {
	case "", BackendFile:
	case BackendS3:
		if c.Storage.Raw.S3.Bucket == "" {
			return fmt.Errorf("storage.raw.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage.raw.backend %q", c.Storage.Raw.Backend)
	}

	return nil
}

// Location returns the configured timezone, falling back to a fixed +05:30 offset.
func (c *Config) Location() *time.Location {
	loc, _ := c.LocationStatus()
	return loc
}

// LocationStatus is Location plus whether the timezone database resolved it.
func (c *Config) LocationStatus() (*time.Location, bool) {
	return calendar.LoadLocation(c.Timezone)
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func dedupe(accounts []string) []string {
	seen := make(map[string]bool, len(accounts))
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
