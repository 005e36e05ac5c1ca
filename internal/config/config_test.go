package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
environment:
  mode: paper
  log_level: info
broker:
  provider: sim
engine:
  symbol: XAUUSD
  poll_interval: 5s
  max_closes_per_cycle: 3
thresholds:
  min_efficiency_per_lot: 60.0
risk:
  max_drawdown_pct: 0.2
dashboard:
  enabled: true
  port: 9099
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "XAUUSD", cfg.Engine.Symbol)
	assert.True(t, cfg.IsPaperTrading())
	assert.Equal(t, 5*time.Second, cfg.PollInterval())
	assert.Equal(t, 3, cfg.MaxClosesPerCycle())

	// Explicit threshold kept, unset ones defaulted.
	assert.Equal(t, 60.0, cfg.Thresholds.MinEfficiencyPerLot)
	assert.Equal(t, defaultVolumeBalanceTolerance, cfg.Thresholds.VolumeBalanceTolerance)
	assert.Equal(t, defaultMarginPressureLevel, cfg.Thresholds.MarginPressureLevel)
	assert.Equal(t, defaultMinMainPositions, cfg.Thresholds.MinMainPositions)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_BRIDGE_TOKEN", "sekrit")
	yaml := `
environment:
  mode: live
  log_level: info
broker:
  provider: mt5bridge
  endpoint: http://localhost:8787
  api_token: ${TEST_BRIDGE_TOKEN}
engine:
  symbol: XAUUSD
`
	cfg, err := Load(writeConfig(t, yaml))
	require.NoError(t, err)
	assert.Equal(t, "sekrit", cfg.Broker.APIToken)
	assert.False(t, cfg.IsPaperTrading())
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	yaml := validYAML + "\nstrategy:\n  legs: 2\n"
	_, err := Load(writeConfig(t, yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateErrors(t *testing.T) {
	base := func() *Config {
		return &Config{
			Environment: EnvironmentConfig{Mode: "paper"},
			Broker:      BrokerConfig{Provider: "sim"},
			Engine:      EngineConfig{Symbol: "XAUUSD"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad mode",
			mutate:  func(c *Config) { c.Environment.Mode = "test" },
			wantErr: "environment.mode",
		},
		{
			name:    "bridge without endpoint",
			mutate:  func(c *Config) { c.Broker.Provider = "mt5bridge" },
			wantErr: "broker.endpoint",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Broker.Provider = "ib" },
			wantErr: "broker.provider",
		},
		{
			name:    "missing symbol",
			mutate:  func(c *Config) { c.Engine.Symbol = "" },
			wantErr: "engine.symbol",
		},
		{
			name:    "bad poll interval",
			mutate:  func(c *Config) { c.Engine.PollInterval = "fast" },
			wantErr: "poll_interval",
		},
		{
			name:    "negative close cap",
			mutate:  func(c *Config) { c.Engine.MaxClosesPerCycle = -1 },
			wantErr: "max_closes_per_cycle",
		},
		{
			name:    "tolerance out of range",
			mutate:  func(c *Config) { c.Thresholds.VolumeBalanceTolerance = 1.5 },
			wantErr: "volume_balance_tolerance",
		},
		{
			name:    "hedge ratio out of range",
			mutate:  func(c *Config) { c.Thresholds.HedgeRatioThreshold = 1.2 },
			wantErr: "hedge_ratio_threshold",
		},
		{
			name:    "drawdown out of range",
			mutate:  func(c *Config) { c.Risk.MaxDrawdownPct = 1.0 },
			wantErr: "max_drawdown_pct",
		},
		{
			name:    "dashboard bad port",
			mutate:  func(c *Config) { c.Dashboard.Enabled = true; c.Dashboard.Port = 0 },
			wantErr: "dashboard.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDurationAccessorDefaults(t *testing.T) {
	cfg := &Config{
		Environment: EnvironmentConfig{Mode: "paper"},
		Broker:      BrokerConfig{Provider: "sim"},
		Engine:      EngineConfig{Symbol: "XAUUSD"},
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3*time.Second, cfg.PollInterval())
	assert.Equal(t, 3*time.Second, cfg.SnapshotTTL())
	assert.Equal(t, 250*time.Millisecond, cfg.CloseCallDelay())
	assert.Equal(t, 10*time.Second, cfg.CloseTimeout())
	assert.Equal(t, 2, cfg.MaxClosesPerCycle())
}
