package contracts

import "time"

// LedgerEntry is one simulated day of the backtest.
type LedgerEntry struct {
	Date        time.Time          `json:"date"`
	Value       float64            `json:"value"` // portfolio value after costs
	DailyReturn float64            `json:"daily_return"`
	Weights     map[string]float64 `json:"weights"` // post-drift holdings
	Cash        float64            `json:"cash"`
	Rebalanced  bool               `json:"rebalanced"`
	Turnover    float64            `json:"turnover"` // 0 on drift days
	Cost        float64            `json:"cost"`     // currency units
	Regime      Regime             `json:"regime,omitempty"`
	Exposure    float64            `json:"exposure,omitempty"`
	Warnings    []string           `json:"warnings,omitempty"`
}

// BacktestLedger is the full day-by-day record of one simulation.
// SSOT: backtest → audit handoff.
type BacktestLedger struct {
	Strategy     string        `json:"strategy"`
	InitialValue float64       `json:"initial_value"`
	Entries      []LedgerEntry `json:"entries"`
	Truncated    bool          `json:"truncated"` // cancelled or aborted early
}

// FinalValue returns the last recorded portfolio value,
// or the initial value when no days were simulated.
func (bl *BacktestLedger) FinalValue() float64 {
	if len(bl.Entries) == 0 {
		return bl.InitialValue
	}
	return bl.Entries[len(bl.Entries)-1].Value
}

// DailyReturns extracts the simulated daily return series.
func (bl *BacktestLedger) DailyReturns() []float64 {
	out := make([]float64, len(bl.Entries))
	for i, e := range bl.Entries {
		out[i] = e.DailyReturn
	}
	return out
}

// TotalCosts sums transaction costs across the run.
func (bl *BacktestLedger) TotalCosts() float64 {
	var sum float64
	for _, e := range bl.Entries {
		sum += e.Cost
	}
	return sum
}
