package contracts

import (
	"math"
	"sort"
	"time"
)

// WeightVector is the target allocation produced by weight synthesis.
// SSOT: weight synthesis → backtest/execution handoff.
// Weights are fractions of invested capital; Cash holds whatever the
// risk-reduction shortfall left uninvested.
type WeightVector struct {
	Date      time.Time        `json:"date"`
	Positions []TargetPosition `json:"positions"`
	Cash      float64          `json:"cash"` // 0.0 ~ 1.0
}

// TargetPosition is one symbol's target weight with its synthesis trail.
type TargetPosition struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"` // 0.0 ~ 1.0

	// Attribution: the weight after each synthesis stage.
	BaseWeight   float64 `json:"base_weight"`
	TiltedWeight float64 `json:"tilted_weight"`
	CappedWeight float64 `json:"capped_weight"`
	Reduced      bool    `json:"reduced,omitempty"` // risk reduction applied
}

// TotalWeight returns the sum of position weights.
func (wv *WeightVector) TotalWeight() float64 {
	total := 0.0
	for _, pos := range wv.Positions {
		total += pos.Weight
	}
	return total
}

// Count returns the number of positions.
func (wv *WeightVector) Count() int {
	return len(wv.Positions)
}

// GetPosition finds a position by symbol.
func (wv *WeightVector) GetPosition(symbol string) (*TargetPosition, bool) {
	for i := range wv.Positions {
		if wv.Positions[i].Symbol == symbol {
			return &wv.Positions[i], true
		}
	}
	return nil, false
}

// Map returns symbol -> weight for the invested positions.
func (wv *WeightVector) Map() map[string]float64 {
	out := make(map[string]float64, len(wv.Positions))
	for _, pos := range wv.Positions {
		out[pos.Symbol] = pos.Weight
	}
	return out
}

// HHI returns the Herfindahl concentration of the invested weights.
// Equal weights over n names give 1/n; a single holding gives 1.
func (wv *WeightVector) HHI() float64 {
	var h float64
	for _, pos := range wv.Positions {
		h += pos.Weight * pos.Weight
	}
	return h
}

// MaxWeight returns the largest single position weight.
func (wv *WeightVector) MaxWeight() float64 {
	var m float64
	for _, pos := range wv.Positions {
		m = math.Max(m, pos.Weight)
	}
	return m
}

// SortBySymbol orders positions by symbol for deterministic output.
func (wv *WeightVector) SortBySymbol() {
	sort.Slice(wv.Positions, func(i, j int) bool {
		return wv.Positions[i].Symbol < wv.Positions[j].Symbol
	})
}
