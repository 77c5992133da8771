package contracts

import "time"

// PerformanceReport is the audit summary computed from a backtest ledger.
// SSOT: performance audit output.
type PerformanceReport struct {
	Period    string    `json:"period"` // "2024-01-01~2024-12-31"
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Days      int       `json:"days"`

	// Returns
	TotalReturn  float64 `json:"total_return"`
	AnnualReturn float64 `json:"annual_return"`

	// Risk
	Volatility  float64 `json:"volatility"` // annualized
	Sharpe      float64 `json:"sharpe"`
	Sortino     float64 `json:"sortino"`
	MaxDrawdown float64 `json:"max_drawdown"` // <= 0
	Calmar      float64 `json:"calmar"`
	VaR95       float64 `json:"var_95"`
	CVaR95      float64 `json:"cvar_95"`

	// Trading
	AvgTurnover float64 `json:"avg_turnover"` // per rebalance
	Rebalances  int     `json:"rebalances"`
	TotalCosts  float64 `json:"total_costs"` // currency units

	// Daily stats
	WinRate  float64 `json:"win_rate"`
	BestDay  float64 `json:"best_day"`
	WorstDay float64 `json:"worst_day"`
}

// IsHealthy checks if the strategy has healthy risk metrics.
func (pr *PerformanceReport) IsHealthy() bool {
	return pr.Sharpe > 1.0 && pr.MaxDrawdown > -0.30
}
