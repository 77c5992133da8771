package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wonny/helios/internal/contracts"
	"github.com/wonny/helios/internal/regime"
	"github.com/wonny/helios/internal/strategyconfig"
	"github.com/wonny/helios/internal/weights"
	"github.com/wonny/helios/pkg/logger"
)

// Rebalance thresholds in trading sessions since the last rebalance.
const (
	sessionsMonthly = 21
	sessionsWeekly  = 5
	sessionsDaily   = 1
)

// weight bookkeeping must close to within this tolerance each day
const integrityTolerance = 1e-6

// Engine drives the daily simulation loop over the pipeline stages.
// SSOT: backtest execution happens only here.
type Engine struct {
	cfg        *strategyconfig.Config
	selector   contracts.UniverseSelector
	synth      contracts.WeightSynthesizer
	classifier contracts.RegimeClassifier
	sentiment  contracts.SentimentScorer // optional
	risk       contracts.RiskScorer      // optional
	log        *logger.Logger
}

// RunParams describes one simulation.
type RunParams struct {
	Panel    contracts.PricePanel
	Index    *contracts.PriceSeries // trading calendar + regime input
	Proxy    *contracts.PriceSeries // optional VIX-style series
	Start    time.Time
	End      time.Time
	Strategy string // label recorded on the ledger
}

// NewEngine wires the pipeline stages into a backtest engine.
// sentiment and risk scorers may be nil; signals then stay neutral.
func NewEngine(
	cfg *strategyconfig.Config,
	selector contracts.UniverseSelector,
	synth contracts.WeightSynthesizer,
	classifier contracts.RegimeClassifier,
	sentiment contracts.SentimentScorer,
	risk contracts.RiskScorer,
	log *logger.Logger,
) *Engine {
	return &Engine{
		cfg:        cfg,
		selector:   selector,
		synth:      synth,
		classifier: classifier,
		sentiment:  sentiment,
		risk:       risk,
		log:        log,
	}
}

// Run simulates the strategy over the index calendar between Start and End.
// Cancellation is honored at day boundaries: the ledger built so far is
// returned with Truncated set, alongside the context error. A ledger
// integrity failure likewise aborts with the partial ledger preserved.
func (e *Engine) Run(ctx context.Context, p RunParams) (*contracts.BacktestLedger, error) {
	if p.Index == nil || p.Index.Len() == 0 {
		return nil, fmt.Errorf("backtest: index series is empty")
	}

	ledger := &contracts.BacktestLedger{
		Strategy:     p.Strategy,
		InitialValue: e.cfg.Backtest.InitialValue,
		Entries:      make([]contracts.LedgerEntry, 0),
	}

	e.log.WithFields(map[string]interface{}{
		"strategy": p.Strategy,
		"start":    p.Start.Format("2006-01-02"),
		"end":      p.End.Format("2006-01-02"),
		"cadence":  e.cfg.Backtest.RebalanceCadence,
	}).Info("Starting backtest")

	obsBuilder := regime.NewObservationBuilder(p.Index, p.Proxy)
	book := NewBook(ledger.InitialValue)

	prevValue := ledger.InitialValue
	peak := ledger.InitialValue
	var prevDate time.Time
	sessionsSince := 0
	rebalanced := false

	for _, bar := range p.Index.Bars {
		if bar.Date.Before(p.Start) {
			continue
		}
		if bar.Date.After(p.End) {
			break
		}

		if err := ctx.Err(); err != nil {
			ledger.Truncated = true
			return ledger, err
		}

		var warnings []string

		// 1. Drift held positions by their daily returns.
		book.Drift(e.dailyReturns(book, p.Panel, bar.Date, &warnings))

		// 2. Classify the regime from today's market observation.
		strategyDD := 0.0
		if peak > 0 {
			strategyDD = math.Max(0, (peak-book.Value())/peak)
		}
		obs, err := obsBuilder.Build(bar.Date, strategyDD)
		if err != nil {
			ledger.Truncated = true
			return ledger, err
		}
		state, err := e.classifier.Classify(ctx, obs)
		if err != nil {
			ledger.Truncated = true
			return ledger, err
		}

		// 3. Rebalance when the cadence is due.
		entry := contracts.LedgerEntry{
			Date:     bar.Date,
			Regime:   state.Regime,
			Exposure: state.Exposure,
		}
		if !rebalanced || sessionsSince >= e.rebalanceThreshold(state) {
			turnover, cost, err := e.rebalance(ctx, book, p.Panel, bar.Date, state, &warnings)
			if err != nil {
				ledger.Truncated = true
				return ledger, err
			}
			entry.Rebalanced = true
			entry.Turnover = turnover
			entry.Cost = cost
			rebalanced = true
			sessionsSince = 0
		}
		sessionsSince++

		// 4. Record the day and verify the books close.
		value := book.Value()
		entry.Value = value
		entry.DailyReturn = value/prevValue - 1
		entry.Weights = book.Weights()
		entry.Cash = book.CashWeight()
		entry.Warnings = warnings

		if err := checkIntegrity(&entry, prevDate); err != nil {
			ledger.Truncated = true
			return ledger, err
		}

		ledger.Entries = append(ledger.Entries, entry)
		prevValue = value
		prevDate = entry.Date
		if value > peak {
			peak = value
		}
	}

	e.log.WithFields(map[string]interface{}{
		"strategy":    p.Strategy,
		"days":        len(ledger.Entries),
		"final_value": ledger.FinalValue(),
		"total_costs": ledger.TotalCosts(),
	}).Info("Backtest completed")

	return ledger, nil
}

// dailyReturns looks up each held symbol's return for the session.
// A symbol with no bar on the date falls under the missing-price policy:
// both policies carry the position flat, zero_return additionally warns.
func (e *Engine) dailyReturns(book *Book, panel contracts.PricePanel, date time.Time, warnings *[]string) map[string]float64 {
	returns := make(map[string]float64)
	for _, sym := range book.Holdings() {
		series, ok := panel[sym]
		if !ok || series == nil {
			e.warnMissing(sym, date, warnings)
			continue
		}
		idx := series.IndexAtOrBefore(date)
		if idx <= 0 || !series.Bars[idx].Date.Equal(date) {
			e.warnMissing(sym, date, warnings)
			continue
		}
		r, err := series.DailyReturn(idx)
		if err != nil {
			e.warnMissing(sym, date, warnings)
			continue
		}
		returns[sym] = r
	}
	return returns
}

func (e *Engine) warnMissing(sym string, date time.Time, warnings *[]string) {
	if e.cfg.Backtest.MissingPricePolicy == "freeze" {
		return // price frozen silently
	}
	msg := fmt.Sprintf("missing price for %s, assuming zero return", sym)
	*warnings = append(*warnings, msg)
	e.log.WithFields(map[string]interface{}{
		"symbol": sym,
		"date":   date.Format("2006-01-02"),
	}).Warn("Missing price, assuming zero return")
}

// rebalance runs select → score → synthesize → exposure and trades the book.
func (e *Engine) rebalance(ctx context.Context, book *Book, panel contracts.PricePanel, date time.Time, state *contracts.RegimeState, warnings *[]string) (turnover, cost float64, err error) {
	universe, signals, err := e.selector.Select(ctx, panel, date)
	if err != nil {
		return 0, 0, err
	}

	e.applyScores(ctx, universe, signals, date, warnings)

	wv, err := e.synth.Synthesize(ctx, universe, signals)
	if err != nil {
		return 0, 0, err
	}
	weights.ApplyExposure(wv, state.Exposure)

	turnover, cost = book.Rebalance(wv.Map(), wv.Cash, e.cfg.Backtest.TransactionCostBps)

	e.log.WithFields(map[string]interface{}{
		"date":      date.Format("2006-01-02"),
		"positions": wv.Count(),
		"turnover":  turnover,
		"cost":      cost,
		"exposure":  state.Exposure,
	}).Info("Rebalanced")

	return turnover, cost, nil
}

// applyScores attaches sentiment and risk scores to the selected signals.
// Scorer failures degrade to neutral scores with a warning, never abort.
func (e *Engine) applyScores(ctx context.Context, universe *contracts.Universe, signals *contracts.SignalSet, date time.Time, warnings *[]string) {
	for _, sym := range universe.Symbols {
		sig, ok := signals.Get(sym)
		if !ok || sig == nil {
			continue
		}
		if e.sentiment != nil {
			score, err := e.sentiment.Score(ctx, sym, date)
			if err != nil {
				*warnings = append(*warnings, fmt.Sprintf("sentiment score failed for %s", sym))
			} else {
				sig.Sentiment = score
			}
		}
		if e.risk != nil {
			score, err := e.risk.Score(ctx, sym, date)
			if err != nil {
				*warnings = append(*warnings, fmt.Sprintf("risk score failed for %s", sym))
			} else {
				sig.RiskScore = score
			}
		}
	}
}

// rebalanceThreshold resolves the configured cadence, deferring to the
// regime's cadence when set to auto.
func (e *Engine) rebalanceThreshold(state *contracts.RegimeState) int {
	cadence := e.cfg.Backtest.RebalanceCadence
	if cadence == "auto" {
		switch state.Cadence {
		case contracts.CadenceDaily:
			return sessionsDaily
		case contracts.CadenceWeekly:
			return sessionsWeekly
		default:
			return sessionsMonthly
		}
	}
	switch cadence {
	case "daily":
		return sessionsDaily
	case "weekly":
		return sessionsWeekly
	default:
		return sessionsMonthly
	}
}

// checkIntegrity verifies the entry's books close: the date advances past
// the previous entry, the value is positive and finite, and weights plus
// cash sum to one.
func checkIntegrity(entry *contracts.LedgerEntry, prevDate time.Time) error {
	if !prevDate.IsZero() && !entry.Date.After(prevDate) {
		return &contracts.LedgerIntegrityError{
			Date:   entry.Date,
			Detail: fmt.Sprintf("date does not advance past %s", prevDate.Format("2006-01-02")),
		}
	}
	if math.IsNaN(entry.Value) || math.IsInf(entry.Value, 0) || entry.Value <= 0 {
		return &contracts.LedgerIntegrityError{
			Date:   entry.Date,
			Detail: fmt.Sprintf("non-positive or non-finite value %v", entry.Value),
		}
	}
	sum := entry.Cash
	for _, w := range entry.Weights {
		sum += w
	}
	if math.Abs(sum-1) > integrityTolerance {
		return &contracts.LedgerIntegrityError{
			Date:   entry.Date,
			Detail: fmt.Sprintf("weights and cash sum to %v", sum),
		}
	}
	return nil
}
