package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bobmcallan/snaptrail/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Server.Port != 8484 {
		t.Errorf("Server.Port default = %d, want %d", cfg.Server.Port, 8484)
	}
	if cfg.Timezone != "Asia/Kolkata" {
		t.Errorf("Timezone default = %q", cfg.Timezone)
	}
	assert.Equal(t, []string{"LIQUIDCASE"}, cfg.Signals.ExcludedSymbols)
	require.Len(t, cfg.Signals.Policy, 2)
	assert.Equal(t, models.SignalStop, cfg.Signals.Policy[0].Action)
	assert.Equal(t, 0.15, cfg.Signals.Policy[1].Threshold)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("SNAPTRAIL_PORT", "9090")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d after env override, want %d", cfg.Server.Port, 9090)
	}
}

func TestConfig_DataPathEnvOverride(t *testing.T) {
	t.Setenv("SNAPTRAIL_DATA_PATH", "/srv/snaptrail")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, filepath.Join("/srv/snaptrail", "raw"), cfg.Storage.Raw.Path)
	assert.Equal(t, filepath.Join("/srv/snaptrail", "snapshots.db"), cfg.Storage.Columnar.Path)
	assert.Equal(t, filepath.Join("/srv/snaptrail", "internal"), cfg.Storage.Internal.Path)
	assert.Equal(t, filepath.Join("/srv/snaptrail", "inbox"), cfg.Broker.Inbox)
}

func TestConfig_AccountsEnvOverride(t *testing.T) {
	t.Setenv("SNAPTRAIL_ACCOUNTS", " AB1234, CD5678 ,,")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, []string{"AB1234", "CD5678"}, cfg.Accounts)
}

func TestLoadConfig_LaterFilesOverride(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	local := filepath.Join(dir, "local.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
accounts = ["A", "B", "A"]
timezone = "UTC"

[signals]
excluded_symbols = ["LIQUIDCASE", "LIQUIDBEES"]

[[signals.policy]]
metric = "loss"
threshold = 0.2
action = "STOP"
exit_fraction = 1.0
`), 0o644))
	require.NoError(t, os.WriteFile(local, []byte(`
[server]
port = 9999
`), 0o644))

	cfg, err := LoadConfig(base, filepath.Join(dir, "missing.toml"), local)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, cfg.Accounts)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.True(t, cfg.Signals.IsExcluded("liquidbees"))
	require.Len(t, cfg.Signals.Policy, 1)
	assert.Equal(t, models.MetricLoss, cfg.Signals.Policy[0].Metric)
}

func TestLoadConfig_InvalidPolicyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[signals.policy]]
metric = "volatility"
threshold = 0.2
action = "STOP"
exit_fraction = 1.0
`), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown metric")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"threshold above one", func(c *Config) { c.Signals.Policy[0].Threshold = 1.5 }, "threshold"},
		{"negative exit", func(c *Config) { c.Signals.Policy[1].ExitFraction = -0.1 }, "exit_fraction"},
		{"buy-watch not an exit", func(c *Config) { c.Signals.Policy[0].Action = models.SignalBuyWatch }, "unsupported action"},
		{"window of one", func(c *Config) { c.Signals.Momentum.Window = 1 }, "momentum.window"},
		{"s3 without bucket", func(c *Config) { c.Storage.Raw.Backend = BackendS3 }, "bucket"},
		{"unknown backend", func(c *Config) { c.Storage.Raw.Backend = "gcs" }, "backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	cfg := NewDefaultConfig()
	cfg.Signals.Momentum.Window = 0
	assert.NoError(t, cfg.Validate())
}

func TestBrokerConfig_Durations(t *testing.T) {
	tests := []struct {
		value   string
		timeout time.Duration
		pacing  time.Duration
	}{
		{"", 30 * time.Second, 2 * time.Second},
		{"0s", 0, 0},
		{"-1s", 0, 2 * time.Second},
		{"45s", 45 * time.Second, 45 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			c := BrokerConfig{Timeout: tt.value, Pacing: tt.value}
			assert.Equal(t, tt.timeout, c.GetTimeout())
			assert.Equal(t, tt.pacing, c.GetPacing())
		})
	}
}

func TestConfig_LocationFallback(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Timezone = "Nowhere/Atlantis"
	loc := cfg.Location()
	require.NotNil(t, loc)
}

func TestLoadVersionFile(t *testing.T) {
	oldV, oldB, oldC := Version, Build, GitCommit
	t.Cleanup(func() { Version, Build, GitCommit = oldV, oldB, oldC })
	Version, Build, GitCommit = "dev", "unknown", "unknown"

	path := filepath.Join(t.TempDir(), ".version")
	require.NoError(t, os.WriteFile(path, []byte("# build info\nversion: 1.2.3\nbuild: 2025-01-03\ncommit: abc123\n"), 0o644))
	loadVersionFile(path)

	assert.Equal(t, VersionInfo{Version: "1.2.3", Build: "2025-01-03", Commit: "abc123"}, GetVersionInfo())
}

func TestNewLoggerFromConfig_Disabled(t *testing.T) {
	logger := NewLoggerFromConfig(LoggingConfig{Level: "disabled"})
	require.NotNil(t, logger)
	logger.Info().Msg("discarded")
}

func TestNewLoggerFromConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "snaptrail.log")
	logger := NewLoggerFromConfig(LoggingConfig{Level: "info", Format: "json", Outputs: []string{"file"}, FilePath: path})
	logger.Info().Str("account", "A").Msg("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"account":"A"`)
}
