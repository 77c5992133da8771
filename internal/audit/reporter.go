package audit

import (
	"context"
	"fmt"
	"math"

	"github.com/wonny/helios/internal/contracts"
	"github.com/wonny/helios/pkg/logger"
)

// annualization convention shared with the rest of the pipeline
const tradingDaysPerYear = 252

// Reporter computes a performance report from a completed backtest ledger.
// Pure calculator: the same ledger always yields the same report.
// SSOT: performance analysis happens only here.
type Reporter struct {
	log *logger.Logger
}

// NewReporter creates a performance reporter.
func NewReporter(log *logger.Logger) *Reporter {
	return &Reporter{log: log}
}

// Analyze summarizes the ledger's return, risk, and trading profile.
func (r *Reporter) Analyze(ctx context.Context, ledger *contracts.BacktestLedger) (*contracts.PerformanceReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ledger == nil || len(ledger.Entries) == 0 {
		return nil, fmt.Errorf("audit: empty ledger")
	}

	first := ledger.Entries[0]
	last := ledger.Entries[len(ledger.Entries)-1]
	returns := ledger.DailyReturns()

	report := &contracts.PerformanceReport{
		Period:    fmt.Sprintf("%s~%s", first.Date.Format("2006-01-02"), last.Date.Format("2006-01-02")),
		StartDate: first.Date,
		EndDate:   last.Date,
		Days:      len(ledger.Entries),
	}

	report.TotalReturn = last.Value/ledger.InitialValue - 1
	report.AnnualReturn = annualize(report.TotalReturn, report.Days)

	report.Volatility = annualizedVol(returns)
	// Sharpe and Sortino divide the geometric annual return by annualized
	// vol (rf = 0), not the mean-daily-excess-return scaling some texts use.
	if report.Volatility > 0 {
		report.Sharpe = report.AnnualReturn / report.Volatility
	}
	if down := downsideVol(returns); down > 0 {
		report.Sortino = report.AnnualReturn / down
	}
	report.MaxDrawdown = maxDrawdown(returns)
	if report.MaxDrawdown < 0 {
		report.Calmar = report.AnnualReturn / -report.MaxDrawdown
	}

	v := HistoricalVaR(returns, 0.95)
	report.VaR95 = v.VaR
	report.CVaR95 = v.CVaR

	var turnoverSum float64
	for _, entry := range ledger.Entries {
		if entry.Rebalanced {
			report.Rebalances++
			turnoverSum += entry.Turnover
		}
	}
	if report.Rebalances > 0 {
		report.AvgTurnover = turnoverSum / float64(report.Rebalances)
	}
	report.TotalCosts = ledger.TotalCosts()

	report.WinRate, report.BestDay, report.WorstDay = dailyStats(returns)

	r.log.WithFields(map[string]interface{}{
		"period":       report.Period,
		"total_return": report.TotalReturn,
		"sharpe":       report.Sharpe,
		"max_drawdown": report.MaxDrawdown,
		"rebalances":   report.Rebalances,
	}).Info("Performance analysis completed")

	return report, nil
}

// annualize compounds a total return to a yearly rate.
func annualize(totalReturn float64, days int) float64 {
	if days == 0 || totalReturn <= -1 {
		return 0
	}
	return math.Pow(1+totalReturn, tradingDaysPerYear/float64(days)) - 1
}

func annualizedVol(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}

// downsideVol is the annualized root-mean-square of negative returns.
func downsideVol(returns []float64) float64 {
	var sumSq float64
	var count int
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sumSq/float64(count)) * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown returns the deepest peak-to-trough decline, <= 0.
func maxDrawdown(returns []float64) float64 {
	cum := 1.0
	peak := 1.0
	maxDD := 0.0
	for _, r := range returns {
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		if dd := (cum - peak) / peak; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func dailyStats(returns []float64) (winRate, best, worst float64) {
	if len(returns) == 0 {
		return 0, 0, 0
	}
	wins := 0
	best = returns[0]
	worst = returns[0]
	for _, r := range returns {
		if r > 0 {
			wins++
		}
		if r > best {
			best = r
		}
		if r < worst {
			worst = r
		}
	}
	return float64(wins) / float64(len(returns)), best, worst
}
