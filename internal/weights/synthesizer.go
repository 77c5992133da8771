package weights

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/wonny/helios/internal/contracts"
	"github.com/wonny/helios/internal/strategyconfig"
	"github.com/wonny/helios/pkg/logger"
)

// momentum-proportional weighting shifts scores positive by this margin
const momentumShift = 0.01

// floor keeps inverse-vol weights finite for near-constant series
const volFloor = 1e-4

// capEpsilon tolerates float drift when checking the cap invariant
const capEpsilon = 1e-9

// Synthesizer turns a scored candidate set into a bounded weight vector.
// SSOT: base weighting, sentiment tilt, capping and risk reduction live only here.
type Synthesizer struct {
	cfg strategyconfig.Weights
	log *logger.Logger
}

// NewSynthesizer creates a weight synthesizer.
func NewSynthesizer(cfg strategyconfig.Weights, log *logger.Logger) *Synthesizer {
	return &Synthesizer{cfg: cfg, log: log}
}

// Synthesize builds the target weight vector for one evaluation date.
// The pipeline is base scheme → sentiment tilt → position cap → risk
// reduction; every stage is recorded in the position attribution.
func (s *Synthesizer) Synthesize(ctx context.Context, universe *contracts.Universe, signals *contracts.SignalSet) (*contracts.WeightVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wv := &contracts.WeightVector{
		Date:      universe.Date,
		Positions: make([]contracts.TargetPosition, 0, universe.Count()),
	}
	if universe.Count() == 0 {
		wv.Cash = 1.0
		return wv, nil
	}

	symbols := make([]string, len(universe.Symbols))
	copy(symbols, universe.Symbols)
	sort.Strings(symbols)

	// Drop names whose attached scores are unusable; an all-cash vector
	// is still a valid answer when nothing survives.
	symbols = s.screen(symbols, universe, signals)
	if len(symbols) == 0 {
		wv.Cash = 1.0
		return wv, nil
	}

	// 1. Base weights per the configured scheme, normalized to sum 1.
	base, err := s.baseWeights(symbols, signals)
	if err != nil {
		return nil, err
	}

	// 2. Sentiment tilt: w_i *= (sentiment_i + 1)^eta. Missing sentiment
	// means multiplier 1, and eta=0 reduces exactly to the base scheme.
	tilted, err := s.tilt(symbols, base, signals)
	if err != nil {
		return nil, err
	}

	// 3. Water-filling position cap.
	capped, err := s.applyCap(symbols, tilted)
	if err != nil {
		return nil, err
	}

	// 4. Risk reduction above the threshold.
	final, cash, reduced, err := s.reduceRisk(symbols, capped, signals)
	if err != nil {
		return nil, err
	}

	for _, sym := range symbols {
		wv.Positions = append(wv.Positions, contracts.TargetPosition{
			Symbol:       sym,
			Weight:       final[sym],
			BaseWeight:   base[sym],
			TiltedWeight: tilted[sym],
			CappedWeight: capped[sym],
			Reduced:      reduced[sym],
		})
	}
	wv.Cash = cash

	s.log.WithFields(map[string]interface{}{
		"date":       universe.Date.Format("2006-01-02"),
		"positions":  wv.Count(),
		"max_weight": wv.MaxWeight(),
		"cash":       wv.Cash,
		"hhi":        wv.HHI(),
	}).Info("weights synthesized")

	return wv, nil
}

// screen filters out symbols carrying a sentiment outside [-1, 1] or a
// risk score outside [0, 1] (NaN included). A bad score excludes only the
// offending symbol for the date; the vector is still built from the rest.
func (s *Synthesizer) screen(symbols []string, universe *contracts.Universe, signals *contracts.SignalSet) []string {
	kept := symbols[:0]
	for _, sym := range symbols {
		var bad *contracts.NonFiniteValueError
		if sig, ok := signals.Get(sym); ok && sig != nil {
			if sig.Sentiment != nil {
				v := *sig.Sentiment
				if math.IsNaN(v) || v < -1 || v > 1 {
					bad = &contracts.NonFiniteValueError{Symbol: sym, Stage: "sentiment tilt"}
				}
			}
			if bad == nil && sig.RiskScore != nil {
				v := *sig.RiskScore
				if math.IsNaN(v) || v < 0 || v > 1 {
					bad = &contracts.NonFiniteValueError{Symbol: sym, Stage: "risk reduction"}
				}
			}
			if bad != nil {
				sig.ExclReason = bad.Error()
			}
		}
		if bad == nil {
			kept = append(kept, sym)
			continue
		}
		if universe.Excluded != nil {
			universe.Excluded[sym] = bad.Error()
		}
		s.log.WithFields(map[string]interface{}{
			"symbol": sym,
			"reason": bad.Error(),
		}).Warn("Excluding symbol with unusable score")
	}
	return kept
}

// baseWeights computes the pre-tilt allocation.
func (s *Synthesizer) baseWeights(symbols []string, signals *contracts.SignalSet) (map[string]float64, error) {
	weights := make(map[string]float64, len(symbols))

	switch s.cfg.BaseWeighting {
	case "equal":
		w := 1.0 / float64(len(symbols))
		for _, sym := range symbols {
			weights[sym] = w
		}
		return weights, nil

	case "momentum":
		// Shift the cross-section positive so laggards keep a sliver.
		minMom := math.Inf(1)
		for _, sym := range symbols {
			sig, ok := signals.Get(sym)
			if !ok {
				return nil, fmt.Errorf("no signal for %s", sym)
			}
			minMom = math.Min(minMom, sig.Momentum)
		}
		for _, sym := range symbols {
			sig, _ := signals.Get(sym)
			weights[sym] = sig.Momentum - minMom + momentumShift
		}
		return normalize(weights)

	case "inverse_vol":
		for _, sym := range symbols {
			sig, ok := signals.Get(sym)
			if !ok {
				return nil, fmt.Errorf("no signal for %s", sym)
			}
			weights[sym] = 1.0 / math.Max(sig.Volatility, volFloor)
		}
		return normalize(weights)

	default:
		return nil, fmt.Errorf("unknown base weighting %q", s.cfg.BaseWeighting)
	}
}

// tilt applies the sentiment multiplier and renormalizes.
func (s *Synthesizer) tilt(symbols []string, base map[string]float64, signals *contracts.SignalSet) (map[string]float64, error) {
	tilted := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		mult := 1.0
		if sig, ok := signals.Get(sym); ok && sig.Sentiment != nil {
			mult = math.Pow(*sig.Sentiment+1, s.cfg.TiltFactor)
		}
		tilted[sym] = base[sym] * mult
	}
	return normalize(tilted)
}

// applyCap runs the water-filling redistribution until all weights sit at
// or below the cap. A single uncapped survivor absorbs the remaining mass
// even past the cap (single-holding exception).
func (s *Synthesizer) applyCap(symbols []string, weights map[string]float64) (map[string]float64, error) {
	limit := s.cfg.MaxPositionWeight
	n := len(symbols)

	if limit*float64(n) < 1 {
		if s.cfg.StrictCap {
			return nil, &contracts.InfeasibleCapError{Cap: limit, N: n}
		}
		relaxed := 1.0 / float64(n)
		s.log.WithFields(map[string]interface{}{
			"cap":     limit,
			"n":       n,
			"relaxed": relaxed,
		}).Warn("position cap infeasible, relaxing to 1/N")
		limit = relaxed
	}

	out := make(map[string]float64, n)
	for sym, w := range weights {
		out[sym] = w
	}

	capped := make(map[string]bool, n)
	for {
		// Clip everything over the cap; collect the surplus.
		surplus := 0.0
		for _, sym := range symbols {
			if !capped[sym] && out[sym] > limit+capEpsilon {
				surplus += out[sym] - limit
				out[sym] = limit
				capped[sym] = true
			}
		}
		if surplus == 0 {
			return out, nil
		}

		// Redistribute proportionally among the uncapped names.
		uncappedTotal := 0.0
		uncapped := make([]string, 0, n)
		for _, sym := range symbols {
			if !capped[sym] {
				uncapped = append(uncapped, sym)
				uncappedTotal += out[sym]
			}
		}

		switch {
		case len(uncapped) == 0:
			// Everyone is at the cap; with a feasible cap the only surplus
			// left is float dust. Spread it evenly and stop.
			for _, sym := range symbols {
				out[sym] += surplus / float64(n)
			}
			return out, nil
		case len(uncapped) == 1:
			// Single-holding exception: the survivor may exceed the cap.
			out[uncapped[0]] += surplus
			return out, nil
		}

		for _, sym := range uncapped {
			if uncappedTotal > 0 {
				out[sym] += surplus * out[sym] / uncappedTotal
			} else {
				out[sym] += surplus / float64(len(uncapped))
			}
		}
	}
}

// reduceRisk scales down names above the risk threshold and resolves the
// shortfall per the configured mode. Returns final weights, cash, and the
// set of reduced symbols.
func (s *Synthesizer) reduceRisk(symbols []string, weights map[string]float64, signals *contracts.SignalSet) (map[string]float64, float64, map[string]bool, error) {
	out := make(map[string]float64, len(symbols))
	reduced := make(map[string]bool, len(symbols))

	anyReduced := false
	for _, sym := range symbols {
		w := weights[sym]
		if sig, ok := signals.Get(sym); ok && sig.RiskScore != nil {
			if *sig.RiskScore > s.cfg.RiskThreshold {
				w *= 1 - s.cfg.RiskReductionFactor
				reduced[sym] = true
				anyReduced = true
			}
		}
		out[sym] = w
	}

	if !anyReduced {
		return out, 0, reduced, nil
	}

	switch s.cfg.ShortfallMode {
	case "cash":
		total := 0.0
		for _, sym := range symbols {
			total += out[sym]
		}
		return out, 1 - total, reduced, nil

	default: // renormalize
		normalized, err := normalize(out)
		if err != nil {
			return nil, 0, nil, err
		}
		// Renormalizing can push names back over the cap; re-run the
		// cap pass so the invariant holds on the emitted vector.
		capped, err := s.applyCap(symbols, normalized)
		if err != nil {
			return nil, 0, nil, err
		}
		return capped, 0, reduced, nil
	}
}

// ApplyExposure scales every position by the market-level exposure scalar,
// moving the remainder to cash. Exposure is expected in [0, 1].
func ApplyExposure(wv *contracts.WeightVector, exposure float64) {
	if exposure >= 1 {
		return
	}
	if exposure < 0 {
		exposure = 0
	}
	for i := range wv.Positions {
		wv.Positions[i].Weight *= exposure
	}
	wv.Cash = 1 - wv.TotalWeight()
}

// normalize scales weights to sum 1, rejecting non-finite totals.
// The total accumulates in sorted symbol order so repeated runs over the
// same inputs produce bit-identical vectors.
func normalize(weights map[string]float64) (map[string]float64, error) {
	symbols := make([]string, 0, len(weights))
	for sym := range weights {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	total := 0.0
	for _, sym := range symbols {
		total += weights[sym]
	}
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("cannot normalize: weight sum %v", total)
	}

	out := make(map[string]float64, len(weights))
	for _, sym := range symbols {
		out[sym] = weights[sym] / total
	}
	return out, nil
}
