package strategyconfig

import "time"

// Config is the full strategy definition loaded from YAML.
type Config struct {
	Meta     Meta     `yaml:"meta" json:"meta"`
	Universe Universe `yaml:"universe" json:"universe"`
	Weights  Weights  `yaml:"weights" json:"weights"`
	Regime   Regime   `yaml:"regime" json:"regime"`
	Backtest Backtest `yaml:"backtest" json:"backtest"`
}

// Meta identifies the strategy for snapshots and persistence.
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
	Timezone   string `yaml:"timezone" json:"timezone"`
}

// Universe configures momentum ranking and candidate selection.
type Universe struct {
	LookbackMonths     int     `yaml:"lookback_months" json:"lookback_months"`
	SkipRecentMonths   int     `yaml:"skip_recent_months" json:"skip_recent_months"`
	TopPercentile      float64 `yaml:"top_percentile" json:"top_percentile"`
	FinalPortfolioSize int     `yaml:"final_portfolio_size" json:"final_portfolio_size"`
	VolumeFloor        float64 `yaml:"volume_floor" json:"volume_floor"`
}

// SessionsPerMonth is the trading-session approximation of one month.
const SessionsPerMonth = 21

// LookbackSessions converts the lookback window to trading sessions.
func (u Universe) LookbackSessions() int {
	return u.LookbackMonths * SessionsPerMonth
}

// SkipSessions converts the skip window to trading sessions.
func (u Universe) SkipSessions() int {
	return u.SkipRecentMonths * SessionsPerMonth
}

// MinHistorySessions is the bar count a symbol needs to be rankable.
func (u Universe) MinHistorySessions() int {
	return u.LookbackSessions() + u.SkipSessions() + 1
}

// Weights configures base weighting, tilt, capping and risk reduction.
type Weights struct {
	BaseWeighting       string  `yaml:"base_weighting" json:"base_weighting"` // equal | momentum | inverse_vol
	TiltFactor          float64 `yaml:"tilt_factor" json:"tilt_factor"`
	MaxPositionWeight   float64 `yaml:"max_position_weight" json:"max_position_weight"`
	StrictCap           bool    `yaml:"strict_cap" json:"strict_cap"`
	RiskThreshold       float64 `yaml:"risk_threshold" json:"risk_threshold"`
	RiskReductionFactor float64 `yaml:"risk_reduction_factor" json:"risk_reduction_factor"`
	ShortfallMode       string  `yaml:"shortfall_mode" json:"shortfall_mode"` // renormalize | cash
}

// Regime configures classification thresholds and exposure scaling.
type Regime struct {
	VIXThresholdHigh  float64     `yaml:"vix_threshold_high" json:"vix_threshold_high"`
	VIXThresholdPanic float64     `yaml:"vix_threshold_panic" json:"vix_threshold_panic"`
	TargetVolatility  float64     `yaml:"target_volatility" json:"target_volatility"`
	MinExposure       float64     `yaml:"min_exposure" json:"min_exposure"`
	CrashPenaltyK     float64     `yaml:"crash_penalty_k" json:"crash_penalty_k"`
	Multipliers       Multipliers `yaml:"multipliers" json:"multipliers"`
}

// Multipliers maps each regime to its exposure multiplier.
type Multipliers struct {
	Bull     float64 `yaml:"bull" json:"bull"`
	Normal   float64 `yaml:"normal" json:"normal"`
	Volatile float64 `yaml:"volatile" json:"volatile"`
	Bear     float64 `yaml:"bear" json:"bear"`
	Panic    float64 `yaml:"panic" json:"panic"`
}

// Ordered reports whether multipliers are monotone non-increasing in risk.
func (m Multipliers) Ordered() bool {
	return m.Panic <= m.Bear && m.Bear <= m.Volatile &&
		m.Volatile <= m.Normal && m.Normal <= m.Bull
}

// Backtest configures the simulation loop.
type Backtest struct {
	RebalanceCadence   string  `yaml:"rebalance_cadence" json:"rebalance_cadence"` // monthly | weekly | daily | auto
	TransactionCostBps float64 `yaml:"transaction_cost_bps" json:"transaction_cost_bps"`
	InitialValue       float64 `yaml:"initial_value" json:"initial_value"`
	MissingPricePolicy string  `yaml:"missing_price_policy" json:"missing_price_policy"` // zero_return | freeze
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyID: "momentum_sentiment_v1",
			Version:    "1.0.0",
			Timezone:   "America/New_York",
		},
		Universe: Universe{
			LookbackMonths:     12,
			SkipRecentMonths:   1,
			TopPercentile:      0.20,
			FinalPortfolioSize: 50,
			VolumeFloor:        0,
		},
		Weights: Weights{
			BaseWeighting:       "equal",
			TiltFactor:          5.0,
			MaxPositionWeight:   0.15,
			StrictCap:           false,
			RiskThreshold:       0.7,
			RiskReductionFactor: 0.5,
			ShortfallMode:       "renormalize",
		},
		Regime: Regime{
			VIXThresholdHigh:  30,
			VIXThresholdPanic: 40,
			TargetVolatility:  0.15,
			MinExposure:       0.25,
			CrashPenaltyK:     0.5,
			Multipliers: Multipliers{
				Bull:     1.00,
				Normal:   0.85,
				Volatile: 0.60,
				Bear:     0.50,
				Panic:    0.25,
			},
		},
		Backtest: Backtest{
			RebalanceCadence:   "monthly",
			TransactionCostBps: 2,
			InitialValue:       1_000_000,
			MissingPricePolicy: "zero_return",
		},
	}
}

// DecisionSnapshot records the exact configuration behind a run (reproducibility).
type DecisionSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	GitCommit  string    `json:"git_commit"`
	CreatedAt  time.Time `json:"created_at"`
}
