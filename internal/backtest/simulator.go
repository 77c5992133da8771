package backtest

import (
	"math"
	"sort"
)

// Book tracks the simulated portfolio in currency-value space.
// SSOT: holdings state during a simulation lives only here.
type Book struct {
	values map[string]float64
	cash   float64
}

// NewBook starts a book fully in cash.
func NewBook(initial float64) *Book {
	return &Book{
		values: make(map[string]float64),
		cash:   initial,
	}
}

// Value returns total portfolio value, cash included.
func (b *Book) Value() float64 {
	total := b.cash
	for _, v := range b.values {
		total += v
	}
	return total
}

// Weights returns the current holdings as weight fractions of total value.
func (b *Book) Weights() map[string]float64 {
	total := b.Value()
	out := make(map[string]float64, len(b.values))
	if total <= 0 {
		return out
	}
	for sym, v := range b.values {
		out[sym] = v / total
	}
	return out
}

// CashWeight returns the cash fraction of total value.
func (b *Book) CashWeight() float64 {
	total := b.Value()
	if total <= 0 {
		return 0
	}
	return b.cash / total
}

// Holdings returns the held symbols in sorted order.
func (b *Book) Holdings() []string {
	out := make([]string, 0, len(b.values))
	for sym := range b.values {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Drift applies one day of returns to the held positions. Symbols absent
// from the map are carried unchanged (a zero return).
func (b *Book) Drift(returns map[string]float64) {
	for sym, v := range b.values {
		if r, ok := returns[sym]; ok {
			b.values[sym] = v * (1 + r)
		}
	}
}

// Rebalance trades the book to the target weights, charging costs on the
// traded notional. Turnover is one-sided: 0.5 * sum |target - drifted|.
// Costs reduce portfolio value before the target weights are applied.
func (b *Book) Rebalance(target map[string]float64, targetCash, costBps float64) (turnover, cost float64) {
	total := b.Value()
	if total <= 0 {
		return 0, 0
	}

	drifted := b.Weights()
	for sym, w := range target {
		turnover += math.Abs(w - drifted[sym])
		delete(drifted, sym)
	}
	for _, w := range drifted {
		turnover += w // fully sold
	}
	turnover *= 0.5

	cost = turnover * 2 * total * costBps / 1e4
	total -= cost

	b.values = make(map[string]float64, len(target))
	for sym, w := range target {
		if w > 0 {
			b.values[sym] = w * total
		}
	}
	b.cash = targetCash * total
	return turnover, cost
}
