package contracts

import "time"

// Regime labels the market state used for exposure scaling.
type Regime string

const (
	RegimeBull     Regime = "BULL"
	RegimeNormal   Regime = "NORMAL"
	RegimeVolatile Regime = "VOLATILE"
	RegimeBear     Regime = "BEAR"
	RegimePanic    Regime = "PANIC"
)

// Cadence is how often the strategy rebalances under a regime.
type Cadence string

const (
	CadenceDaily   Cadence = "DAILY"
	CadenceWeekly  Cadence = "WEEKLY"
	CadenceMonthly Cadence = "MONTHLY"
)

// MarketObservation is the raw market-level input to regime classification.
type MarketObservation struct {
	Date          time.Time `json:"date"`
	VolProxy      float64   `json:"vol_proxy"`       // VIX-style level
	IndexClose    float64   `json:"index_close"`     // broad index level
	IndexMA200    float64   `json:"index_ma_200"`    // 200-session MA of the index
	IndexDrawdown float64   `json:"index_drawdown"`  // >= 0, fraction from peak
	RealizedVol   float64   `json:"realized_vol"`    // annualized, recent window
	BaselineVol   float64   `json:"baseline_vol"`    // annualized, long window
	StrategyDD    float64   `json:"strategy_dd"`     // >= 0, strategy drawdown
	VolOfVol      float64   `json:"vol_of_vol"`      // dispersion of the proxy
}

// RegimeState is the classification output applied to weight vectors.
// SSOT: regime → exposure handoff.
type RegimeState struct {
	Date      time.Time `json:"date"`
	Regime    Regime    `json:"regime"`
	CrashRisk float64   `json:"crash_risk"` // 0.0 ~ 1.0
	Exposure  float64   `json:"exposure"`   // final multiplier, 0.0 ~ 1.0
	Cadence   Cadence   `json:"cadence"`
	VolTarget float64   `json:"vol_target,omitempty"` // informational scalar
}

// IsDefensive reports whether the regime calls for reduced exposure.
func (rs *RegimeState) IsDefensive() bool {
	return rs.Regime == RegimeVolatile || rs.Regime == RegimeBear || rs.Regime == RegimePanic
}
