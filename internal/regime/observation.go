package regime

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/helios/internal/contracts"
)

// Observation windows, in trading sessions.
const (
	maWindow          = 200
	drawdownWindow    = 60
	shortVolWindow    = 21
	baselineVolWindow = 252
	volOfVolWindow    = 21
)

// ObservationBuilder assembles a MarketObservation from the index series
// and an optional volatility-proxy series (e.g. VIX closes).
type ObservationBuilder struct {
	index *contracts.PriceSeries
	proxy *contracts.PriceSeries
}

// NewObservationBuilder creates a builder. proxy may be nil; the realized
// index volatility then stands in for the proxy.
func NewObservationBuilder(index, proxy *contracts.PriceSeries) *ObservationBuilder {
	return &ObservationBuilder{index: index, proxy: proxy}
}

// Build computes the observation for asOf. strategyDD is the strategy's own
// drawdown from its trailing peak, supplied by the caller (the classifier
// has no view of the portfolio ledger).
func (b *ObservationBuilder) Build(asOf time.Time, strategyDD float64) (contracts.MarketObservation, error) {
	var obs contracts.MarketObservation

	if b.index == nil || b.index.Len() == 0 {
		return obs, fmt.Errorf("observation: index series is empty")
	}

	idx := b.index.IndexAtOrBefore(asOf)
	if idx < 0 {
		return obs, fmt.Errorf("observation: no index bar at or before %s", asOf.Format("2006-01-02"))
	}

	close := b.index.Bars[idx].AdjClose
	if !(close > 0) {
		return obs, &contracts.NonFiniteValueError{Symbol: b.index.Symbol, Stage: "observation"}
	}

	obs.Date = b.index.Bars[idx].Date
	obs.IndexClose = close
	obs.IndexMA200 = b.index.MovingAverage(idx, min(maWindow, idx+1))
	obs.IndexDrawdown = drawdownFromPeak(b.index, idx, drawdownWindow)
	obs.RealizedVol = b.index.RealizedVol(idx, min(shortVolWindow, idx))
	obs.BaselineVol = b.index.RealizedVol(idx, min(baselineVolWindow, idx))
	obs.StrategyDD = math.Max(0, strategyDD)
	obs.VolProxy, obs.VolOfVol = b.proxyLevels(asOf, obs.RealizedVol)

	return obs, nil
}

// proxyLevels reads the proxy close and its short-window dispersion.
// Without a proxy series the annualized realized vol, in points, is the
// fallback level and dispersion is reported as zero.
func (b *ObservationBuilder) proxyLevels(asOf time.Time, realizedVol float64) (level, volOfVol float64) {
	if b.proxy == nil || b.proxy.Len() == 0 {
		return realizedVol * 100, 0
	}

	idx := b.proxy.IndexAtOrBefore(asOf)
	if idx < 0 {
		return realizedVol * 100, 0
	}

	level = b.proxy.Bars[idx].AdjClose

	// Dispersion of daily proxy changes over the short window.
	start := idx - volOfVolWindow
	if start < 0 {
		start = 0
	}
	diffs := make([]float64, 0, idx-start)
	for i := start + 1; i <= idx; i++ {
		diffs = append(diffs, b.proxy.Bars[i].AdjClose-b.proxy.Bars[i-1].AdjClose)
	}
	return level, stddev(diffs)
}

// drawdownFromPeak measures the decline from the trailing peak close,
// reported as a non-negative fraction.
func drawdownFromPeak(series *contracts.PriceSeries, end, window int) float64 {
	start := end - window + 1
	if start < 0 {
		start = 0
	}
	peak := 0.0
	for i := start; i <= end; i++ {
		if series.Bars[i].AdjClose > peak {
			peak = series.Bars[i].AdjClose
		}
	}
	if peak <= 0 {
		return 0
	}
	return math.Max(0, (peak-series.Bars[end].AdjClose)/peak)
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
