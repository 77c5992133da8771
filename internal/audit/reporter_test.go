package audit

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/helios/internal/contracts"
	"github.com/wonny/helios/pkg/config"
	"github.com/wonny/helios/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

// ledgerFromReturns compounds a return series into a ledger with a
// rebalance on the first day.
func ledgerFromReturns(initial float64, returns []float64) *contracts.BacktestLedger {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	ledger := &contracts.BacktestLedger{Strategy: "test", InitialValue: initial}
	value := initial
	for i, r := range returns {
		value *= 1 + r
		turnover := 0.0
		if i == 0 {
			turnover = 0.5
		}
		ledger.Entries = append(ledger.Entries, contracts.LedgerEntry{
			Date:        start.AddDate(0, 0, i),
			Value:       value,
			DailyReturn: r,
			Rebalanced:  i == 0,
			Turnover:    turnover,
		})
	}
	return ledger
}

func TestReporter_KnownLedger(t *testing.T) {
	rep := NewReporter(testLogger())
	returns := []float64{0.01, -0.02, 0.01, 0.03}
	ledger := ledgerFromReturns(100, returns)

	report, err := rep.Analyze(context.Background(), ledger)
	require.NoError(t, err)

	total := 1.01*0.98*1.01*1.03 - 1
	assert.InDelta(t, total, report.TotalReturn, 1e-12)
	assert.InDelta(t, math.Pow(1+total, 252.0/4.0)-1, report.AnnualReturn, 1e-9)

	// single losing day: drawdown is exactly that day's return
	assert.InDelta(t, -0.02, report.MaxDrawdown, 1e-12)
	assert.InDelta(t, report.AnnualReturn/0.02, report.Calmar, 1e-9)

	assert.InDelta(t, 0.75, report.WinRate, 1e-12)
	assert.InDelta(t, 0.03, report.BestDay, 1e-12)
	assert.InDelta(t, -0.02, report.WorstDay, 1e-12)

	// four observations: the tail is the single worst day
	assert.InDelta(t, 0.02, report.VaR95, 1e-12)
	assert.InDelta(t, 0.02, report.CVaR95, 1e-12)

	assert.Equal(t, 1, report.Rebalances)
	assert.InDelta(t, 0.5, report.AvgTurnover, 1e-12)
	assert.Equal(t, 4, report.Days)
	assert.Positive(t, report.Sharpe)
	assert.Positive(t, report.Sortino)
}

func TestReporter_FlatLedger(t *testing.T) {
	rep := NewReporter(testLogger())
	ledger := ledgerFromReturns(1_000_000, make([]float64, 10))

	report, err := rep.Analyze(context.Background(), ledger)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, report.TotalReturn, 1e-12)
	assert.InDelta(t, 0.0, report.Volatility, 1e-12)
	assert.InDelta(t, 0.0, report.Sharpe, 1e-12)
	assert.InDelta(t, 0.0, report.MaxDrawdown, 1e-12)
	assert.InDelta(t, 0.0, report.WinRate, 1e-12)
}

func TestReporter_Idempotent(t *testing.T) {
	rep := NewReporter(testLogger())
	ledger := ledgerFromReturns(100, []float64{0.02, -0.01, 0.005, -0.03, 0.01})

	first, err := rep.Analyze(context.Background(), ledger)
	require.NoError(t, err)
	second, err := rep.Analyze(context.Background(), ledger)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReporter_CostsAndTurnover(t *testing.T) {
	rep := NewReporter(testLogger())
	ledger := ledgerFromReturns(100, []float64{0, 0, 0})
	ledger.Entries[2].Rebalanced = true
	ledger.Entries[2].Turnover = 0.1
	ledger.Entries[0].Cost = 20
	ledger.Entries[2].Cost = 4

	report, err := rep.Analyze(context.Background(), ledger)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Rebalances)
	assert.InDelta(t, 0.3, report.AvgTurnover, 1e-12)
	assert.InDelta(t, 24, report.TotalCosts, 1e-12)
}

func TestReporter_EmptyLedger(t *testing.T) {
	rep := NewReporter(testLogger())
	_, err := rep.Analyze(context.Background(), &contracts.BacktestLedger{})
	assert.Error(t, err)
	_, err = rep.Analyze(context.Background(), nil)
	assert.Error(t, err)
}

func TestHistoricalVaR(t *testing.T) {
	returns := []float64{-0.10, -0.08}
	for i := 0; i < 18; i++ {
		returns = append(returns, 0.01)
	}

	// 20 observations: the 5% cutoff lands on the second-worst day
	v := HistoricalVaR(returns, 0.95)
	assert.InDelta(t, 0.08, v.VaR, 1e-12)
	assert.InDelta(t, 0.09, v.CVaR, 1e-12)

	empty := HistoricalVaR(nil, 0.95)
	assert.InDelta(t, 0.0, empty.VaR, 1e-12)

	// all-positive history carries no loss at all
	calm := HistoricalVaR([]float64{0.01, 0.02, 0.03}, 0.95)
	assert.InDelta(t, 0.0, calm.VaR, 1e-12)
	assert.InDelta(t, 0.0, calm.CVaR, 1e-12)
}

func TestParametricVaR(t *testing.T) {
	v := ParametricVaR(0, 0.01, 0.95)
	assert.InDelta(t, 0.01645, v.VaR, 1e-6)
	assert.Greater(t, v.CVaR, v.VaR)
}
