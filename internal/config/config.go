// Package config loads and validates the YAML backtest configuration
// surface, following the teacher's load-then-validate-at-construction
// idiom with the schema of the system this module generalizes.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Data describes where and how to load historical bars and signals.
type Data struct {
	BarsPath    string `yaml:"bars_path"`
	SignalsPath string `yaml:"signals_path"`
	Symbol      string `yaml:"symbol"`
}

// Capital describes starting account state.
type Capital struct {
	Initial float64 `yaml:"initial"`
}

// Execution describes the ExecutionModel parameters. FillModel selects the
// intrabar price-determination rules: "first_touch" (default) or "close".
type Execution struct {
	SlippageBps   float64 `yaml:"slippage_bps"`
	CommissionBps float64 `yaml:"commission_bps"`
	TickSize      float64 `yaml:"tick_size"`
	FillModel     string  `yaml:"fill_model"`
}

// Risk describes the RiskSizer parameters. VolLookback is the window
// length, in bars, the engine uses to estimate annualized volatility for
// method == "volatility".
type Risk struct {
	Method           string  `yaml:"method"`
	RiskFraction     float64 `yaml:"risk_fraction"`
	FixedSize        float64 `yaml:"fixed_size"`
	VolatilityTarget float64 `yaml:"volatility_target"`
	VolLookback      int     `yaml:"vol_lookback"`
	MaxPositionPct   float64 `yaml:"max_position_pct"`
	MaxLeverage      float64 `yaml:"max_leverage"`
	MaxPositions     int     `yaml:"max_positions"`
	StopLossPct      float64 `yaml:"stop_loss_pct"`
	TakeProfitPct    float64 `yaml:"take_profit_pct"`
	ATRMultiplier    float64 `yaml:"atr_multiplier"`
	RiskRewardRatio  float64 `yaml:"risk_reward_ratio"`
}

// EOD describes end-of-day handling.
type EOD struct {
	CloseAllEOD bool `yaml:"close_all_eod"`
}

// SignalQueue describes SignalQueue dedup parameters.
type SignalQueue struct {
	DedupeWindowSeconds int `yaml:"dedupe_window_seconds"`
}

// Reporting describes the metrics report parameters.
type Reporting struct {
	RiskFreeRate float64 `yaml:"risk_free_rate"`
}

// Strategy selects which registered strategy to run and its parameters.
type Strategy struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
}

// Config is the full YAML configuration surface.
type Config struct {
	Data        Data        `yaml:"data"`
	Capital     Capital     `yaml:"capital"`
	Execution   Execution   `yaml:"execution"`
	Risk        Risk        `yaml:"risk"`
	EOD         EOD         `yaml:"eod"`
	SignalQueue SignalQueue `yaml:"signal_queue"`
	Reporting   Reporting   `yaml:"reporting"`
	Strategy    Strategy    `yaml:"strategy"`
}

// ValidationError aggregates every issue found during Validate, so a run
// fails fast with a full list rather than one problem at a time.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid configuration: %s", strings.Join(e.Issues, "; "))
}

// Validate checks the configuration is internally consistent. Called at
// construction time so malformed config fails before the event loop starts.
func (c Config) Validate() error {
	var issues []string

	if c.Data.Symbol == "" {
		issues = append(issues, "data.symbol is required")
	}
	if c.Data.BarsPath == "" {
		issues = append(issues, "data.bars_path is required")
	}
	if c.Capital.Initial <= 0 {
		issues = append(issues, "capital.initial must be positive")
	}
	if c.Execution.SlippageBps < 0 {
		issues = append(issues, "execution.slippage_bps must be non-negative")
	}
	if c.Execution.CommissionBps < 0 {
		issues = append(issues, "execution.commission_bps must be non-negative")
	}
	if c.Execution.TickSize < 0 {
		issues = append(issues, "execution.tick_size must be non-negative")
	}
	switch c.Execution.FillModel {
	case "first_touch", "close":
	default:
		issues = append(issues, fmt.Sprintf("execution.fill_model %q must be one of first_touch, close", c.Execution.FillModel))
	}
	switch c.Risk.Method {
	case "fraction", "volatility", "fixed":
	default:
		issues = append(issues, fmt.Sprintf("risk.method %q must be one of fraction, volatility, fixed", c.Risk.Method))
	}
	if c.Risk.MaxPositions < 0 {
		issues = append(issues, "risk.max_positions must be non-negative")
	}
	if c.Risk.VolLookback < 0 {
		issues = append(issues, "risk.vol_lookback must be non-negative")
	}
	if c.Strategy.Name == "" {
		issues = append(issues, "strategy.name is required")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// applyDefaults fills in the same defaults the reference configuration applies.
func (c *Config) applyDefaults() {
	if c.Reporting.RiskFreeRate == 0 {
		c.Reporting.RiskFreeRate = 0.02
	}
	if c.SignalQueue.DedupeWindowSeconds == 0 {
		c.SignalQueue.DedupeWindowSeconds = 60
	}
	if c.Execution.FillModel == "" {
		c.Execution.FillModel = "first_touch"
	}
	if c.Risk.VolLookback == 0 {
		c.Risk.VolLookback = 20
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return FromYAML(data)
}

// FromYAML parses and validates raw YAML bytes.
func FromYAML(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
