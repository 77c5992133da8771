package strategyconfig

import (
	"fmt"
)

// ValidationError aborts the run before any simulation starts.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning flags a recommended-constraint violation (non-fatal).
type Warning struct {
	Code    string
	Message string
}

var validWeightings = map[string]bool{
	"equal":       true,
	"momentum":    true,
	"inverse_vol": true,
}

var validShortfallModes = map[string]bool{
	"renormalize": true,
	"cash":        true,
}

var validCadences = map[string]bool{
	"monthly": true,
	"weekly":  true,
	"daily":   true,
	"auto":    true,
}

var validMissingPolicies = map[string]bool{
	"zero_return": true,
	"freeze":      true,
}

// Validate checks all required constraints.
// A returned error rejects the config before any run starts.
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Universe ===
	u := cfg.Universe
	if u.LookbackMonths < 1 {
		return ValidationError{"universe.lookback_months", "must be >= 1"}
	}
	if u.SkipRecentMonths < 0 {
		return ValidationError{"universe.skip_recent_months", "must be >= 0"}
	}
	if u.TopPercentile <= 0 || u.TopPercentile > 1 {
		return ValidationError{"universe.top_percentile", "must be in (0, 1]"}
	}
	if u.FinalPortfolioSize < 1 {
		return ValidationError{"universe.final_portfolio_size", "must be >= 1"}
	}
	if u.VolumeFloor < 0 {
		return ValidationError{"universe.volume_floor", "must be >= 0"}
	}

	// === Weights ===
	w := cfg.Weights
	if !validWeightings[w.BaseWeighting] {
		return ValidationError{"weights.base_weighting", "must be one of: equal, momentum, inverse_vol"}
	}
	if w.TiltFactor < 0 {
		return ValidationError{"weights.tilt_factor", "must be >= 0"}
	}
	if w.MaxPositionWeight <= 0 || w.MaxPositionWeight > 1 {
		return ValidationError{"weights.max_position_weight", "must be in (0, 1]"}
	}
	if err := validatePctRange(w.RiskThreshold, "weights.risk_threshold"); err != nil {
		return err
	}
	if err := validatePctRange(w.RiskReductionFactor, "weights.risk_reduction_factor"); err != nil {
		return err
	}
	if !validShortfallModes[w.ShortfallMode] {
		return ValidationError{"weights.shortfall_mode", "must be renormalize or cash"}
	}

	// Strict cap mode rejects up front when the cap cannot absorb a full
	// portfolio at the configured size. N may shrink at runtime; the
	// synthesizer re-checks the actual candidate count.
	if w.StrictCap && w.MaxPositionWeight*float64(u.FinalPortfolioSize) < 1 {
		return ValidationError{
			Field: "weights.max_position_weight",
			Message: fmt.Sprintf("cap %.4f infeasible for %d holdings under strict_cap",
				w.MaxPositionWeight, u.FinalPortfolioSize),
		}
	}

	// === Regime ===
	r := cfg.Regime
	if r.VIXThresholdHigh <= 0 {
		return ValidationError{"regime.vix_threshold_high", "must be > 0"}
	}
	if r.VIXThresholdPanic <= r.VIXThresholdHigh {
		return ValidationError{"regime.vix_threshold_panic", "must be > vix_threshold_high"}
	}
	if r.TargetVolatility <= 0 {
		return ValidationError{"regime.target_volatility", "must be > 0"}
	}
	if err := validatePctRange(r.MinExposure, "regime.min_exposure"); err != nil {
		return err
	}
	if err := validatePctRange(r.CrashPenaltyK, "regime.crash_penalty_k"); err != nil {
		return err
	}
	for field, mult := range map[string]float64{
		"regime.multipliers.bull":     r.Multipliers.Bull,
		"regime.multipliers.normal":   r.Multipliers.Normal,
		"regime.multipliers.volatile": r.Multipliers.Volatile,
		"regime.multipliers.bear":     r.Multipliers.Bear,
		"regime.multipliers.panic":    r.Multipliers.Panic,
	} {
		if err := validatePctRange(mult, field); err != nil {
			return err
		}
	}
	if !r.Multipliers.Ordered() {
		return ValidationError{"regime.multipliers", "must be monotone non-increasing in risk: panic <= bear <= volatile <= normal <= bull"}
	}

	// === Backtest ===
	b := cfg.Backtest
	if !validCadences[b.RebalanceCadence] {
		return ValidationError{"backtest.rebalance_cadence", "must be one of: monthly, weekly, daily, auto"}
	}
	if b.TransactionCostBps < 0 {
		return ValidationError{"backtest.transaction_cost_bps", "must be >= 0"}
	}
	if b.InitialValue <= 0 {
		return ValidationError{"backtest.initial_value", "must be > 0"}
	}
	if !validMissingPolicies[b.MissingPricePolicy] {
		return ValidationError{"backtest.missing_price_policy", "must be zero_return or freeze"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Weights.TiltFactor > 10 {
		warnings = append(warnings, Warning{
			Code:    "EXTREME_TILT",
			Message: fmt.Sprintf("tilt_factor %.1f > 10: sentiment dominates base weights", cfg.Weights.TiltFactor),
		})
	}

	if cfg.Backtest.TransactionCostBps == 0 {
		warnings = append(warnings, Warning{
			Code:    "FRICTIONLESS",
			Message: "transaction_cost_bps = 0: results ignore trading costs",
		})
	}

	if cfg.Universe.TopPercentile > 0.5 {
		warnings = append(warnings, Warning{
			Code:    "WEAK_FILTER",
			Message: fmt.Sprintf("top_percentile %.2f > 0.50: momentum filter keeps most of the cross-section", cfg.Universe.TopPercentile),
		})
	}

	if cfg.Regime.MinExposure > cfg.Regime.Multipliers.Panic {
		warnings = append(warnings, Warning{
			Code:    "EXPOSURE_FLOOR",
			Message: "min_exposure above the PANIC multiplier: the floor overrides panic de-risking",
		})
	}

	return warnings
}

// validatePctRange checks that a fraction lies in [0, 1].
func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}
