// Package config provides configuration management for the close engine.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Threshold defaults applied when the corresponding field is unset.
const (
	// defaultMinEfficiencyPerLot is the per-lot profit level treated as high efficiency ($/lot).
	defaultMinEfficiencyPerLot = 50.0
	// defaultVolumeBalanceTolerance is the directional imbalance ratio tolerated before rebalancing.
	defaultVolumeBalanceTolerance = 0.30
	// defaultMaxSacrificeLoss bounds the loss a SACRIFICE close may realize ($).
	defaultMaxSacrificeLoss = 80.0
	// defaultMinNetProfitToClose is the minimum combined gain for paired closes ($).
	defaultMinNetProfitToClose = 2.0
	// defaultMaxLosingAgeHours is the age past which a losing position counts as old.
	defaultMaxLosingAgeHours = 24.0
	// defaultProfitTargetBasePerLot is the harvest target per lot ($).
	defaultProfitTargetBasePerLot = 100.0
	// defaultHedgeRatioThreshold is the minimum volume match for hedge partners.
	defaultHedgeRatioThreshold = 0.70
	// defaultMinMainPositions is the MAIN role count the rebalancer maintains.
	defaultMinMainPositions = 2
	// defaultMarginPressureLevel is the margin level (%) below which margin
	// optimization engages; the common terminal margin-call neighborhood.
	defaultMarginPressureLevel = 300.0
	// defaultMarginFloor is the minimum estimated margin for a margin-optimization candidate ($).
	defaultMarginFloor = 50.0
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Broker      BrokerConfig      `yaml:"broker"`
	Engine      EngineConfig      `yaml:"engine"`
	Thresholds  ThresholdConfig   `yaml:"thresholds"`
	Risk        RiskConfig        `yaml:"risk"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
}

// EnvironmentConfig defines the runtime environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // paper | live
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// BrokerConfig defines terminal bridge settings.
type BrokerConfig struct {
	Provider string `yaml:"provider"` // mt5bridge | sim
	Endpoint string `yaml:"endpoint"`
	APIToken string `yaml:"api_token"`
}

// EngineConfig defines the polling cadence and execution limits.
type EngineConfig struct {
	Symbol            string `yaml:"symbol"`
	PollInterval      string `yaml:"poll_interval"`
	SnapshotTTL       string `yaml:"snapshot_ttl"`
	MaxClosesPerCycle int    `yaml:"max_closes_per_cycle"`
	CloseCallDelay    string `yaml:"close_call_delay"`
	CloseTimeout      string `yaml:"close_timeout"`
}

// ThresholdConfig carries the numeric heuristics the detectors and role
// engine score against. None of these are hard-coded in detector logic.
type ThresholdConfig struct {
	MinEfficiencyPerLot    float64 `yaml:"min_efficiency_per_lot"`
	VolumeBalanceTolerance float64 `yaml:"volume_balance_tolerance"`
	MaxSacrificeLoss       float64 `yaml:"max_sacrifice_loss"`
	MinNetProfitToClose    float64 `yaml:"min_net_profit_to_close"`
	MaxLosingAgeHours      float64 `yaml:"max_losing_age_hours"`
	ProfitTargetBasePerLot float64 `yaml:"profit_target_base_per_lot"`
	HedgeRatioThreshold    float64 `yaml:"hedge_ratio_threshold"`
	MinMainPositions       int     `yaml:"min_main_positions"`
	MarginPressureLevel    float64 `yaml:"margin_pressure_level"`
	MarginFloor            float64 `yaml:"margin_floor"`
}

// RiskConfig defines the emergency-stop conditions checked each cycle.
type RiskConfig struct {
	// MaxDrawdownPct trips the emergency stop when equity falls this far below balance.
	MaxDrawdownPct float64 `yaml:"max_drawdown_pct"`
	// MinMarginLevel trips the emergency stop below this margin level (%).
	MinMarginLevel float64 `yaml:"min_margin_level"`
}

// DashboardConfig defines the status API settings.
type DashboardConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
// Unset thresholds are normalized to defaults first.
func (c *Config) Validate() error {
	if c.Environment.Mode != "paper" && c.Environment.Mode != "live" {
		return fmt.Errorf("environment.mode must be 'paper' or 'live'")
	}

	switch c.Broker.Provider {
	case "", "sim":
		// simulated broker needs no endpoint
	case "mt5bridge":
		if c.Broker.Endpoint == "" {
			return fmt.Errorf("broker.endpoint is required for provider mt5bridge")
		}
	default:
		return fmt.Errorf("broker.provider must be 'mt5bridge' or 'sim'")
	}

	if c.Engine.Symbol == "" {
		return fmt.Errorf("engine.symbol is required")
	}
	if _, err := time.ParseDuration(orDefault(c.Engine.PollInterval, "3s")); err != nil {
		return fmt.Errorf("engine.poll_interval invalid: %w", err)
	}
	if _, err := time.ParseDuration(orDefault(c.Engine.SnapshotTTL, "3s")); err != nil {
		return fmt.Errorf("engine.snapshot_ttl invalid: %w", err)
	}
	if _, err := time.ParseDuration(orDefault(c.Engine.CloseCallDelay, "250ms")); err != nil {
		return fmt.Errorf("engine.close_call_delay invalid: %w", err)
	}
	if _, err := time.ParseDuration(orDefault(c.Engine.CloseTimeout, "10s")); err != nil {
		return fmt.Errorf("engine.close_timeout invalid: %w", err)
	}
	if c.Engine.MaxClosesPerCycle < 0 {
		return fmt.Errorf("engine.max_closes_per_cycle must be >= 0")
	}

	c.normalizeThresholds()

	t := &c.Thresholds
	if t.MinEfficiencyPerLot <= 0 {
		return fmt.Errorf("thresholds.min_efficiency_per_lot must be > 0")
	}
	if t.VolumeBalanceTolerance <= 0 || t.VolumeBalanceTolerance >= 1 {
		return fmt.Errorf("thresholds.volume_balance_tolerance must be in (0,1)")
	}
	if t.MaxSacrificeLoss <= 0 {
		return fmt.Errorf("thresholds.max_sacrifice_loss must be > 0")
	}
	if t.MaxLosingAgeHours <= 0 {
		return fmt.Errorf("thresholds.max_losing_age_hours must be > 0")
	}
	if t.ProfitTargetBasePerLot <= 0 {
		return fmt.Errorf("thresholds.profit_target_base_per_lot must be > 0")
	}
	if t.HedgeRatioThreshold <= 0 || t.HedgeRatioThreshold > 1 {
		return fmt.Errorf("thresholds.hedge_ratio_threshold must be in (0,1]")
	}
	if t.MinMainPositions <= 0 {
		return fmt.Errorf("thresholds.min_main_positions must be > 0")
	}
	if t.MarginPressureLevel <= 0 {
		return fmt.Errorf("thresholds.margin_pressure_level must be > 0")
	}

	if c.Risk.MaxDrawdownPct < 0 || c.Risk.MaxDrawdownPct >= 1 {
		return fmt.Errorf("risk.max_drawdown_pct must be in [0,1)")
	}
	if c.Risk.MinMarginLevel < 0 {
		return fmt.Errorf("risk.min_margin_level must be >= 0")
	}

	if c.Dashboard.Enabled && (c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535) {
		return fmt.Errorf("dashboard.port must be a valid TCP port")
	}

	return nil
}

// IsPaperTrading returns true if the engine runs against the simulated broker.
func (c *Config) IsPaperTrading() bool {
	return c.Environment.Mode == "paper"
}

// PollInterval returns the configured cycle cadence.
func (c *Config) PollInterval() time.Duration {
	return parseDurationOr(c.Engine.PollInterval, 3*time.Second)
}

// SnapshotTTL returns the configured snapshot cache TTL.
func (c *Config) SnapshotTTL() time.Duration {
	return parseDurationOr(c.Engine.SnapshotTTL, 3*time.Second)
}

// CloseCallDelay returns the pause inserted between successive close calls.
func (c *Config) CloseCallDelay() time.Duration {
	return parseDurationOr(c.Engine.CloseCallDelay, 250*time.Millisecond)
}

// CloseTimeout returns the bound on a single close call.
func (c *Config) CloseTimeout() time.Duration {
	return parseDurationOr(c.Engine.CloseTimeout, 10*time.Second)
}

// MaxClosesPerCycle returns the execution cap per cycle. 0 means unset and
// falls back to the default of 2, matching the duration accessors.
func (c *Config) MaxClosesPerCycle() int {
	if c.Engine.MaxClosesPerCycle == 0 {
		return 2
	}
	return c.Engine.MaxClosesPerCycle
}

func (c *Config) normalizeThresholds() {
	t := &c.Thresholds
	if t.MinEfficiencyPerLot == 0 {
		t.MinEfficiencyPerLot = defaultMinEfficiencyPerLot
	}
	if t.VolumeBalanceTolerance == 0 {
		t.VolumeBalanceTolerance = defaultVolumeBalanceTolerance
	}
	if t.MaxSacrificeLoss == 0 {
		t.MaxSacrificeLoss = defaultMaxSacrificeLoss
	}
	if t.MinNetProfitToClose == 0 {
		t.MinNetProfitToClose = defaultMinNetProfitToClose
	}
	if t.MaxLosingAgeHours == 0 {
		t.MaxLosingAgeHours = defaultMaxLosingAgeHours
	}
	if t.ProfitTargetBasePerLot == 0 {
		t.ProfitTargetBasePerLot = defaultProfitTargetBasePerLot
	}
	if t.HedgeRatioThreshold == 0 {
		t.HedgeRatioThreshold = defaultHedgeRatioThreshold
	}
	if t.MinMainPositions == 0 {
		t.MinMainPositions = defaultMinMainPositions
	}
	if t.MarginPressureLevel == 0 {
		t.MarginPressureLevel = defaultMarginPressureLevel
	}
	if t.MarginFloor == 0 {
		t.MarginFloor = defaultMarginFloor
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
