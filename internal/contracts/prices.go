package contracts

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Bar is a single daily observation of a price series.
type Bar struct {
	Date     time.Time `json:"date"`
	AdjClose float64   `json:"adj_close"`
	Volume   float64   `json:"volume"`
}

// PriceSeries holds the ordered daily bars for one symbol.
// Invariant: Bars are sorted by strictly increasing, unique dates.
// The series is produced externally and read-only to the pipeline.
type PriceSeries struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// NewPriceSeries builds a series from bars, sorting and de-duplicating by date.
func NewPriceSeries(symbol string, bars []Bar) *PriceSeries {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	out := sorted[:0]
	for i, b := range sorted {
		if i > 0 && sameDay(b.Date, out[len(out)-1].Date) {
			out[len(out)-1] = b // last write wins
			continue
		}
		out = append(out, b)
	}
	return &PriceSeries{Symbol: symbol, Bars: out}
}

// Len returns the number of bars.
func (ps *PriceSeries) Len() int { return len(ps.Bars) }

// IndexAtOrBefore returns the index of the last bar on or before date,
// or -1 when the series has no data that early.
func (ps *PriceSeries) IndexAtOrBefore(date time.Time) int {
	i := sort.Search(len(ps.Bars), func(i int) bool {
		return ps.Bars[i].Date.After(date)
	})
	return i - 1
}

// CloseAt returns the adjusted close at bar index i.
func (ps *PriceSeries) CloseAt(i int) float64 {
	return ps.Bars[i].AdjClose
}

// DailyReturn returns the close-to-close return ending at bar index i.
// The first bar has no return; an error is returned for i <= 0.
func (ps *PriceSeries) DailyReturn(i int) (float64, error) {
	if i <= 0 || i >= len(ps.Bars) {
		return 0, fmt.Errorf("%s: no return at bar %d", ps.Symbol, i)
	}
	prev := ps.Bars[i-1].AdjClose
	if prev <= 0 {
		return 0, fmt.Errorf("%s: non-positive price at bar %d", ps.Symbol, i-1)
	}
	return ps.Bars[i].AdjClose/prev - 1, nil
}

// AvgVolume returns the mean volume over the window ending at bar index end
// (inclusive), looking back at most n bars.
func (ps *PriceSeries) AvgVolume(end, n int) float64 {
	if end < 0 || end >= len(ps.Bars) || n <= 0 {
		return 0
	}
	start := end - n + 1
	if start < 0 {
		start = 0
	}
	var sum float64
	for i := start; i <= end; i++ {
		sum += ps.Bars[i].Volume
	}
	return sum / float64(end-start+1)
}

// RealizedVol returns the annualized standard deviation of daily returns over
// the window of n returns ending at bar index end. Returns 0 when the window
// cannot be filled.
func (ps *PriceSeries) RealizedVol(end, n int) float64 {
	if end-n < 0 || end >= len(ps.Bars) || n < 2 {
		return 0
	}
	rets := make([]float64, 0, n)
	for i := end - n + 1; i <= end; i++ {
		r, err := ps.DailyReturn(i)
		if err != nil {
			return 0
		}
		rets = append(rets, r)
	}
	return stddev(rets) * math.Sqrt(TradingDaysPerYear)
}

// MovingAverage returns the simple moving average of the adjusted close over
// the n bars ending at index end, or 0 when the window cannot be filled.
func (ps *PriceSeries) MovingAverage(end, n int) float64 {
	if end < 0 || end >= len(ps.Bars) || n <= 0 || end-n+1 < 0 {
		return 0
	}
	var sum float64
	for i := end - n + 1; i <= end; i++ {
		sum += ps.Bars[i].AdjClose
	}
	return sum / float64(n)
}

// PricePanel maps symbols to their price series.
type PricePanel map[string]*PriceSeries

// Symbols returns the panel's symbols in sorted order.
func (p PricePanel) Symbols() []string {
	out := make([]string, 0, len(p))
	for sym := range p {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// TradingDaysPerYear is the annualization convention used throughout.
const TradingDaysPerYear = 252

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs) - 1)
	return math.Sqrt(variance)
}
