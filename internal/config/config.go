// Package config defines all configuration for the decision core. Config is
// loaded from a YAML file (default: configs/config.yaml) with sensitive
// fields overridable via CASCADE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Mode        string             `mapstructure:"mode"`
	Symbols     []SymbolConfig     `mapstructure:"symbols"`
	Venues      map[string]VenueConfig `mapstructure:"venues"`
	Risk        RiskConfig         `mapstructure:"risk"`
	Governance  GovernanceConfig   `mapstructure:"governance"`
	Recorder    RecorderConfig     `mapstructure:"recorder"`
	PositionStore PositionStoreConfig `mapstructure:"position_store"`
	Logging     LoggingConfig      `mapstructure:"logging"`
	Telemetry   TelemetryConfig    `mapstructure:"telemetry"`
	Rebalance   time.Duration      `mapstructure:"rebalance_interval"`

	// ReplayInputPath is the causal-log base path (no extension) replayed
	// against the live decision path when mode is "replay". Required in
	// that mode; ignored otherwise.
	ReplayInputPath string `mapstructure:"replay_input_path"`
}

// SymbolConfig assigns one traded symbol to a venue and a correlation group
// for the portfolio governor gate.
type SymbolConfig struct {
	Symbol          string `mapstructure:"symbol"`
	Venue           string `mapstructure:"venue"`
	CorrelationGroup string `mapstructure:"correlation_group"`
	Hostile         bool   `mapstructure:"hostile"`

	// Leads lists the symbols this symbol's cascade arbiter suppresses
	// (blocks) for FollowerBlockNs once it fires, per the cross-symbol
	// leader/follower signal bridge.
	Leads []string `mapstructure:"leads"`
}

// VenueConfig selects and parameterizes one venue adapter. Kind is either
// "mock" (in-memory, for dry runs and tests) or "ref" (the reference
// REST+WebSocket adapter).
type VenueConfig struct {
	Kind        string `mapstructure:"kind"`
	RESTBaseURL string `mapstructure:"rest_base_url"`
	WSURL       string `mapstructure:"ws_url"`
	APIKey      string `mapstructure:"api_key"`
}

// RiskConfig tunes the nine-gate risk authority chain.
//
//   - ExpectancyFastAlpha/SlowAlpha: EWMA smoothing for the dual-horizon
//     expectancy gate's fast and slow trackers of per-trade PnL in bps.
//   - ExpectancyBootstrapTrades/FastMinSamples/SlowMinSamples: minimum trade
//     counts before each horizon is trusted.
//   - ExpectancyDisableThreshold/PauseThreshold: bps levels below which the
//     slow tracker disables, and the fast tracker pauses, a symbol (both
//     block it with a 0x multiplier).
//   - SlopeAlpha/PauseThresh/HalfThresh/DecayThresh: the expectancy-slope
//     gate's smoothing and its three response thresholds.
//   - SlippageAlpha: the slippage governor's EWMA smoothing.
//   - SpreadCaptureMakerOffThresh/SizeDecayThresh: the spread-capture gate's
//     two response thresholds.
//   - PortfolioGlobalCapR/GroupCapR/MaxPositions: the portfolio governor's
//     aggregate exposure ceilings.
type RiskConfig struct {
	ExpectancyFastAlpha         float64 `mapstructure:"expectancy_fast_alpha"`
	ExpectancySlowAlpha         float64 `mapstructure:"expectancy_slow_alpha"`
	ExpectancyBootstrapTrades   int     `mapstructure:"expectancy_bootstrap_trades"`
	ExpectancyFastMinSamples    int     `mapstructure:"expectancy_fast_min_samples"`
	ExpectancySlowMinSamples    int     `mapstructure:"expectancy_slow_min_samples"`
	ExpectancyDisableThreshold  float64 `mapstructure:"expectancy_disable_threshold"`
	ExpectancyPauseThreshold    float64 `mapstructure:"expectancy_pause_threshold"`
	SlopeAlpha                  float64 `mapstructure:"slope_alpha"`
	SlopePauseThresh            float64 `mapstructure:"slope_pause_thresh"`
	SlopeHalfThresh             float64 `mapstructure:"slope_half_thresh"`
	SlopeDecayThresh            float64 `mapstructure:"slope_decay_thresh"`
	SlippageAlpha               float64 `mapstructure:"slippage_alpha"`
	SpreadCaptureMakerOffThresh float64 `mapstructure:"spread_capture_maker_off_thresh"`
	SpreadCaptureSizeDecayThresh float64 `mapstructure:"spread_capture_size_decay_thresh"`
	PortfolioGlobalCapR         float64 `mapstructure:"portfolio_global_cap_r"`
	PortfolioGroupCapR          float64 `mapstructure:"portfolio_group_cap_r"`
	PortfolioMaxPositions       int     `mapstructure:"portfolio_max_positions"`

	// ExpectedSlippageBps is the per-fill slippage-vs-expectation baseline
	// the slippage governor gate divides realised slippage by.
	ExpectedSlippageBps float64 `mapstructure:"expected_slippage_bps"`

	// PerTradeRiskR converts one closed trade's realised PnL into R-multiples
	// for the governance controller's daily/weekly kill-switch accounting.
	PerTradeRiskR float64 `mapstructure:"per_trade_risk_r"`
}

// GovernanceConfig tunes the end-of-day capital-ramp and global-kill logic.
type GovernanceConfig struct {
	DaysForSmall    int     `mapstructure:"days_for_small"`
	DaysForNormal   int     `mapstructure:"days_for_normal"`
	DaysForScaled   int     `mapstructure:"days_for_scaled"`
	DemoteDrawdownR float64 `mapstructure:"demote_drawdown_r"`
	DailyKillR      float64 `mapstructure:"daily_kill_r"`
	WeeklyKillR     float64 `mapstructure:"weekly_kill_r"`
}

// RecorderConfig controls the causal event recorder. An empty BasePath
// disables recording.
type RecorderConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// PositionStoreConfig controls crash-safe JSON persistence of per-symbol
// positions across restarts. An empty Dir disables persistence.
type PositionStoreConfig struct {
	Dir string `mapstructure:"dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig controls the dashboard/metrics HTTP server.
type TelemetryConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: CASCADE_VENUE_<NAME>_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("CASCADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	for name, vc := range cfg.Venues {
		if key := os.Getenv(fmt.Sprintf("CASCADE_VENUE_%s_API_KEY", strings.ToUpper(name))); key != "" {
			vc.APIKey = key
			cfg.Venues[name] = vc
		}
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	switch c.Mode {
	case "live", "shadow", "replay":
	default:
		return fmt.Errorf("mode must be one of: live, shadow, replay")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	for _, sc := range c.Symbols {
		if sc.Symbol == "" {
			return fmt.Errorf("symbols[].symbol is required")
		}
		vc, ok := c.Venues[sc.Venue]
		if !ok {
			return fmt.Errorf("symbol %q references unknown venue %q", sc.Symbol, sc.Venue)
		}
		if vc.Kind != "mock" && vc.Kind != "ref" {
			return fmt.Errorf("venue %q: kind must be 'mock' or 'ref'", sc.Venue)
		}
	}
	if c.Risk.ExpectancyFastAlpha <= 0 || c.Risk.ExpectancySlowAlpha <= 0 {
		return fmt.Errorf("risk.expectancy_fast_alpha and risk.expectancy_slow_alpha must be > 0")
	}
	if c.Risk.PortfolioGlobalCapR <= 0 {
		return fmt.Errorf("risk.portfolio_global_cap_r must be > 0")
	}
	if c.Risk.PortfolioMaxPositions <= 0 {
		return fmt.Errorf("risk.portfolio_max_positions must be > 0")
	}
	if c.Governance.DaysForSmall <= 0 {
		return fmt.Errorf("governance.days_for_small must be > 0")
	}
	return nil
}
