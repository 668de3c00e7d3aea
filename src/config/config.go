package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeLong  Mode = "long"
	ModeShort Mode = "short"
	ModeBoth  Mode = "both"
)

// SideConfig is the fully resolved parameter set for one trade direction.
type SideConfig struct {
	Enabled               bool
	Threshold             float64 // oversold for long, overbought for short
	TakeProfitPts         float64
	StopLossPts           float64
	UseTrailing           bool
	TrailingActivationPts float64
	TrailingDistancePts   float64
	ForceEODExit          bool
	MaxHoldDays           int
}

// Strategy is the single resolved configuration built once at startup.
// It is never re-resolved during a run.
type Strategy struct {
	Market           string
	Mode             Mode
	RSIPeriod        int
	TimeframeMinutes int
	SpreadPts        float64
	SizePerPoint     float64
	OvernightRatePct float64
	MarginRatePct    float64
	StartingCapital  float64

	TZ                  string
	SessionOpen         string
	SessionClose        string
	NoTradeFirstMinutes int

	Long  SideConfig
	Short SideConfig
}

// ValidationError reports an invalid or contradictory strategy configuration.
// It is fatal at startup of a run, never raised mid-replay.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// sideFile holds one nested long:/short: section. Pointer fields distinguish
// "absent" from zero so legacy flat keys can fill the gaps.
type sideFile struct {
	Enabled               *bool    `yaml:"enabled"`
	OversoldThreshold     *float64 `yaml:"oversold_threshold"`
	OverboughtThreshold   *float64 `yaml:"overbought_threshold"`
	TakeProfitPts         *float64 `yaml:"tp_pts"`
	StopLossPts           *float64 `yaml:"sl_pts"`
	UseTrailing           *bool    `yaml:"use_trailing_stop"`
	TrailingActivationPts *float64 `yaml:"trailing_activation_pts"`
	TrailingDistancePts   *float64 `yaml:"trailing_distance_pts"`
	ForceEODExit          *bool    `yaml:"force_eod_exit"`
	MaxHoldDays           *int     `yaml:"max_hold_days"`
}

type strategyFile struct {
	Market           string  `yaml:"market"`
	Mode             string  `yaml:"strategy_mode"`
	RSIPeriod        int     `yaml:"rsi_period"`
	TimeframeMinutes int     `yaml:"timeframe_minutes"`
	SpreadPts        float64 `yaml:"spread_pts"`
	SizePerPoint     float64 `yaml:"size_per_point"`
	OvernightRatePct float64 `yaml:"overnight_funding_rate_pct"`
	MarginRatePct    float64 `yaml:"margin_rate_pct"`
	StartingCapital  float64 `yaml:"starting_capital"`

	TZ                  string `yaml:"tz"`
	SessionOpen         string `yaml:"session_open"`
	SessionClose        string `yaml:"session_close"`
	NoTradeFirstMinutes int    `yaml:"no_trade_first_minutes"`

	// Legacy flat keys, shadowed by the nested sections below.
	Oversold              *float64 `yaml:"oversold"`
	TakeProfitPts         *float64 `yaml:"take_profit_pts"`
	StopLossPts           *float64 `yaml:"stop_loss_pts"`
	UseTrailing           *bool    `yaml:"use_trailing_stop"`
	TrailingActivationPts *float64 `yaml:"trailing_activation_pts"`
	TrailingDistancePts   *float64 `yaml:"trailing_distance_pts"`
	ForceEODExit          *bool    `yaml:"force_eod_exit"`
	MaxHoldDays           *int     `yaml:"max_hold_days"`

	Long  sideFile `yaml:"long"`
	Short sideFile `yaml:"short"`
}

// Load reads a strategy YAML file and resolves it into a validated Strategy.
func Load(path string) (*Strategy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy config: %w", err)
	}
	return Parse(raw)
}

// Parse resolves YAML bytes into a validated Strategy. Nested long:/short:
// sections take precedence over the legacy flat keys.
func Parse(raw []byte) (*Strategy, error) {
	var file strategyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse strategy config: %w", err)
	}

	cfg := &Strategy{
		Market:              file.Market,
		Mode:                Mode(strings.ToLower(file.Mode)),
		RSIPeriod:           file.RSIPeriod,
		TimeframeMinutes:    file.TimeframeMinutes,
		SpreadPts:           file.SpreadPts,
		SizePerPoint:        file.SizePerPoint,
		OvernightRatePct:    file.OvernightRatePct,
		MarginRatePct:       file.MarginRatePct,
		StartingCapital:     file.StartingCapital,
		TZ:                  file.TZ,
		SessionOpen:         file.SessionOpen,
		SessionClose:        file.SessionClose,
		NoTradeFirstMinutes: file.NoTradeFirstMinutes,
	}
	applyDefaults(cfg)

	cfg.Long = resolveSide(file.Long, file, true)
	cfg.Short = resolveSide(file.Short, file, false)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Strategy) {
	if cfg.Mode == "" {
		cfg.Mode = ModeLong
	}
	if cfg.RSIPeriod == 0 {
		cfg.RSIPeriod = 2
	}
	if cfg.TimeframeMinutes == 0 {
		cfg.TimeframeMinutes = 30
	}
	if cfg.SizePerPoint == 0 {
		cfg.SizePerPoint = 1.0
	}
	if cfg.MarginRatePct == 0 {
		cfg.MarginRatePct = 5.0
	}
	if cfg.StartingCapital == 0 {
		cfg.StartingCapital = 10000.0
	}
	if cfg.TZ == "" {
		cfg.TZ = "America/New_York"
	}
	if cfg.SessionOpen == "" {
		cfg.SessionOpen = "09:30"
	}
	if cfg.SessionClose == "" {
		cfg.SessionClose = "16:00"
	}
}

func resolveSide(nested sideFile, legacy strategyFile, long bool) SideConfig {
	// Enabled by default on both sides; strategy_mode decides which sides
	// actually participate. The flag only exists to switch one direction off
	// inside mode "both".
	side := SideConfig{
		Enabled:       true,
		Threshold:     5.0,
		TakeProfitPts: 40,
		StopLossPts:   100,
		ForceEODExit:  true,
	}
	if !long {
		side.Threshold = 96.0
		side.StopLossPts = 80
	}

	// Legacy flat keys first.
	if long && legacy.Oversold != nil {
		side.Threshold = *legacy.Oversold
	}
	if legacy.TakeProfitPts != nil {
		side.TakeProfitPts = *legacy.TakeProfitPts
	}
	if legacy.StopLossPts != nil {
		side.StopLossPts = *legacy.StopLossPts
	}
	if legacy.UseTrailing != nil {
		side.UseTrailing = *legacy.UseTrailing
	}
	if legacy.TrailingActivationPts != nil {
		side.TrailingActivationPts = *legacy.TrailingActivationPts
	}
	if legacy.TrailingDistancePts != nil {
		side.TrailingDistancePts = *legacy.TrailingDistancePts
	}
	if legacy.ForceEODExit != nil {
		side.ForceEODExit = *legacy.ForceEODExit
	}
	if legacy.MaxHoldDays != nil {
		side.MaxHoldDays = *legacy.MaxHoldDays
	}

	// Nested section overrides.
	if nested.Enabled != nil {
		side.Enabled = *nested.Enabled
	}
	if long && nested.OversoldThreshold != nil {
		side.Threshold = *nested.OversoldThreshold
	}
	if !long && nested.OverboughtThreshold != nil {
		side.Threshold = *nested.OverboughtThreshold
	}
	if nested.TakeProfitPts != nil {
		side.TakeProfitPts = *nested.TakeProfitPts
	}
	if nested.StopLossPts != nil {
		side.StopLossPts = *nested.StopLossPts
	}
	if nested.UseTrailing != nil {
		side.UseTrailing = *nested.UseTrailing
	}
	if nested.TrailingActivationPts != nil {
		side.TrailingActivationPts = *nested.TrailingActivationPts
	}
	if nested.TrailingDistancePts != nil {
		side.TrailingDistancePts = *nested.TrailingDistancePts
	}
	if nested.ForceEODExit != nil {
		side.ForceEODExit = *nested.ForceEODExit
	}
	if nested.MaxHoldDays != nil {
		side.MaxHoldDays = *nested.MaxHoldDays
	}

	return side
}

func (c *Strategy) validate() error {
	switch c.Mode {
	case ModeLong, ModeShort, ModeBoth:
	default:
		return &ValidationError{Field: "strategy_mode", Reason: fmt.Sprintf("must be long, short or both, got %q", c.Mode)}
	}
	if c.RSIPeriod < 1 {
		return &ValidationError{Field: "rsi_period", Reason: "must be >= 1"}
	}
	if c.SpreadPts < 0 {
		return &ValidationError{Field: "spread_pts", Reason: "must be >= 0"}
	}
	if c.SizePerPoint <= 0 {
		return &ValidationError{Field: "size_per_point", Reason: "must be > 0"}
	}
	if c.MarginRatePct <= 0 {
		return &ValidationError{Field: "margin_rate_pct", Reason: "must be > 0"}
	}
	if c.StartingCapital <= 0 {
		return &ValidationError{Field: "starting_capital", Reason: "must be > 0"}
	}
	if c.OvernightRatePct < 0 {
		return &ValidationError{Field: "overnight_funding_rate_pct", Reason: "must be >= 0"}
	}
	if err := c.Long.validate("long"); err != nil {
		return err
	}
	return c.Short.validate("short")
}

func (s SideConfig) validate(name string) error {
	if !s.Enabled {
		return nil
	}
	if s.StopLossPts <= 0 {
		return &ValidationError{Field: name + ".sl_pts", Reason: "must be > 0"}
	}
	if s.TakeProfitPts <= 0 {
		return &ValidationError{Field: name + ".tp_pts", Reason: "must be > 0"}
	}
	if s.MaxHoldDays < 0 {
		return &ValidationError{Field: name + ".max_hold_days", Reason: "must be >= 0"}
	}
	if s.UseTrailing {
		if s.TrailingActivationPts <= 0 {
			return &ValidationError{Field: name + ".trailing_activation_pts", Reason: "must be > 0 when trailing is enabled"}
		}
		if s.TrailingDistancePts <= 0 {
			return &ValidationError{Field: name + ".trailing_distance_pts", Reason: "must be > 0 when trailing is enabled"}
		}
	}
	return nil
}

// SideFor returns the side config for a direction, plus whether that
// direction participates under the configured mode.
func (c *Strategy) SideFor(long bool) (SideConfig, bool) {
	if long {
		return c.Long, c.Long.Enabled && (c.Mode == ModeLong || c.Mode == ModeBoth)
	}
	return c.Short, c.Short.Enabled && (c.Mode == ModeShort || c.Mode == ModeBoth)
}
