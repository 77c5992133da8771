package universe

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/helios/internal/contracts"
	"github.com/wonny/helios/internal/strategyconfig"
	"github.com/wonny/helios/pkg/logger"
)

// realized vol window for the inverse-vol weighting scheme
const volWindowSessions = 63

// Selector ranks the cross-section by trailing momentum and keeps the
// top slice as the candidate set.
type Selector struct {
	cfg strategyconfig.Universe
	log *logger.Logger
}

// NewSelector creates a momentum universe selector.
func NewSelector(cfg strategyconfig.Universe, log *logger.Logger) *Selector {
	return &Selector{cfg: cfg, log: log}
}

// ranked is one symbol that passed every exclusion check.
type ranked struct {
	symbol     string
	momentum   float64
	volatility float64
}

// Select builds the candidate universe for one evaluation date.
// SSOT: momentum ranking and data-quality exclusion happen only here.
// Excluded symbols carry a reason code; the run continues without them.
func (s *Selector) Select(ctx context.Context, panel contracts.PricePanel, asOf time.Time) (*contracts.Universe, *contracts.SignalSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	universe := &contracts.Universe{
		Date:     asOf,
		Symbols:  make([]string, 0),
		Excluded: make(map[string]string),
	}
	signals := &contracts.SignalSet{
		Date:    asOf,
		Signals: make(map[string]*contracts.StockSignal),
	}

	candidates := make([]ranked, 0, len(panel))
	for _, symbol := range panel.Symbols() {
		series := panel[symbol]

		mom, vol, err := s.evaluate(series, asOf)
		if err != nil {
			universe.Excluded[symbol] = err.Error()
			s.log.WithFields(map[string]interface{}{
				"symbol": symbol,
				"reason": err.Error(),
			}).Debug("symbol excluded")
			continue
		}

		candidates = append(candidates, ranked{symbol: symbol, momentum: mom, volatility: vol})
	}

	if len(candidates) == 0 {
		s.log.WithField("date", asOf.Format("2006-01-02")).Warn("no rankable symbols")
		return universe, signals, nil
	}

	// Rank by momentum descending; ties broken by symbol for determinism.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].momentum != candidates[j].momentum {
			return candidates[i].momentum > candidates[j].momentum
		}
		return candidates[i].symbol < candidates[j].symbol
	})

	keep := int(math.Ceil(s.cfg.TopPercentile * float64(len(candidates))))
	if keep < 1 {
		keep = 1
	}
	if keep > s.cfg.FinalPortfolioSize {
		keep = s.cfg.FinalPortfolioSize
	}
	if keep > len(candidates) {
		keep = len(candidates)
	}

	for i, c := range candidates {
		if i >= keep {
			universe.Excluded[c.symbol] = "below momentum cutoff"
			continue
		}
		universe.Symbols = append(universe.Symbols, c.symbol)
		signals.Signals[c.symbol] = &contracts.StockSignal{
			Symbol:     c.symbol,
			AsOf:       asOf,
			Momentum:   c.momentum,
			Volatility: c.volatility,
		}
	}
	universe.TotalCount = len(universe.Symbols)

	s.log.WithFields(map[string]interface{}{
		"date":     asOf.Format("2006-01-02"),
		"selected": universe.TotalCount,
		"excluded": len(universe.Excluded),
	}).Info("universe selected")

	return universe, signals, nil
}

// evaluate computes momentum and trailing vol for one symbol, or the
// exclusion reason as an error.
func (s *Selector) evaluate(series *contracts.PriceSeries, asOf time.Time) (float64, float64, error) {
	end := series.IndexAtOrBefore(asOf)
	need := s.cfg.MinHistorySessions()
	if end+1 < need {
		return 0, 0, &contracts.DataInsufficientError{
			Symbol: series.Symbol,
			Need:   need,
			Have:   end + 1,
		}
	}

	// momentum = price[t-skip] / price[t-skip-lookback] - 1
	recentIdx := end - s.cfg.SkipSessions()
	baseIdx := recentIdx - s.cfg.LookbackSessions()

	recent := series.CloseAt(recentIdx)
	base := series.CloseAt(baseIdx)
	if recent <= 0 || base <= 0 {
		return 0, 0, fmt.Errorf("%s: non-positive price", series.Symbol)
	}

	mom := recent/base - 1
	if math.IsNaN(mom) || math.IsInf(mom, 0) {
		return 0, 0, &contracts.NonFiniteValueError{Symbol: series.Symbol, Stage: "momentum"}
	}

	if s.cfg.VolumeFloor > 0 {
		if avg := series.AvgVolume(end, strategyconfig.SessionsPerMonth); avg < s.cfg.VolumeFloor {
			return 0, 0, fmt.Errorf("%s: average volume %.0f below floor %.0f", series.Symbol, avg, s.cfg.VolumeFloor)
		}
	}

	vol := series.RealizedVol(end, volWindowSessions)
	if math.IsNaN(vol) || math.IsInf(vol, 0) {
		return 0, 0, &contracts.NonFiniteValueError{Symbol: series.Symbol, Stage: "volatility"}
	}

	return mom, vol, nil
}
