package regime

import (
	"context"
	"math"

	"github.com/wonny/helios/internal/contracts"
	"github.com/wonny/helios/internal/strategyconfig"
	"github.com/wonny/helios/pkg/logger"
)

// Crash-signal saturation points. Each raw indicator maps linearly onto
// [0,1] and saturates at these levels.
const (
	ddSaturation    = 0.15 // 15% index drawdown scores a full signal
	spikeFloor      = 20.0 // proxy level where the spike signal starts
	spikeSaturation = 40.0 // proxy level where it saturates
	sddSaturation   = 0.10 // 10% strategy drawdown scores a full signal
	vovSaturation   = 5.0  // proxy-point dispersion that saturates vol-of-vol
)

// Fixed crash-signal weights, summing to 1.
const (
	wDrawdown   = 0.30
	wVolSpike   = 0.30
	wStrategyDD = 0.25
	wVolOfVol   = 0.15
)

// crash risk above this level triggers the multiplicative penalty
const crashPenaltyThreshold = 0.5

// Bounds for the informational volatility-targeting scalar.
const (
	volTargetMin = 0.25
	volTargetMax = 2.0
)

// Classifier maps market observations to a regime and an exposure scalar.
// Pure calculator: classification is a function of the current observation
// only, with no carried state between dates.
type Classifier struct {
	cfg strategyconfig.Regime
	log *logger.Logger
}

// NewClassifier creates a regime classifier.
func NewClassifier(cfg strategyconfig.Regime, log *logger.Logger) *Classifier {
	return &Classifier{cfg: cfg, log: log}
}

// Classify determines the regime and final exposure for one date.
// SSOT: regime thresholds and exposure scaling live only here.
func (c *Classifier) Classify(ctx context.Context, obs contracts.MarketObservation) (*contracts.RegimeState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	regime := c.classify(obs)
	crash := c.crashRisk(obs)

	crashAdj := 1.0
	if crash > crashPenaltyThreshold {
		crashAdj = 1 - crash*c.cfg.CrashPenaltyK
	}

	exposure := clip(c.multiplier(regime)*crashAdj, c.cfg.MinExposure, 1.0)

	state := &contracts.RegimeState{
		Date:      obs.Date,
		Regime:    regime,
		CrashRisk: crash,
		Exposure:  exposure,
		Cadence:   cadenceFor(regime),
		VolTarget: c.volTargetScalar(obs),
	}

	c.log.WithFields(map[string]interface{}{
		"date":       obs.Date.Format("2006-01-02"),
		"regime":     string(regime),
		"proxy":      obs.VolProxy,
		"crash_risk": crash,
		"exposure":   exposure,
	}).Info("regime classified")

	return state, nil
}

// classify applies the threshold ladder in fixed order.
func (c *Classifier) classify(obs contracts.MarketObservation) contracts.Regime {
	switch {
	case obs.VolProxy > c.cfg.VIXThresholdPanic:
		return contracts.RegimePanic
	case obs.VolProxy > c.cfg.VIXThresholdHigh:
		return contracts.RegimeVolatile
	case obs.IndexMA200 > 0 && obs.IndexClose < obs.IndexMA200:
		return contracts.RegimeBear
	case obs.VolProxy >= spikeFloor:
		return contracts.RegimeNormal
	default:
		return contracts.RegimeBull
	}
}

// multiplier returns the configured exposure multiplier for a regime.
func (c *Classifier) multiplier(regime contracts.Regime) float64 {
	m := c.cfg.Multipliers
	switch regime {
	case contracts.RegimePanic:
		return m.Panic
	case contracts.RegimeBear:
		return m.Bear
	case contracts.RegimeVolatile:
		return m.Volatile
	case contracts.RegimeNormal:
		return m.Normal
	default:
		return m.Bull
	}
}

// crashRisk combines four clipped signals with fixed weights.
func (c *Classifier) crashRisk(obs contracts.MarketObservation) float64 {
	dd := clip(obs.IndexDrawdown/ddSaturation, 0, 1)
	spike := clip((obs.VolProxy-spikeFloor)/(spikeSaturation-spikeFloor), 0, 1)
	sdd := clip(obs.StrategyDD/sddSaturation, 0, 1)
	vov := clip(obs.VolOfVol/vovSaturation, 0, 1)

	return wDrawdown*dd + wVolSpike*spike + wStrategyDD*sdd + wVolOfVol*vov
}

// volTargetScalar reports target/realized vol, bounded. Informational:
// it is not folded into the exposure.
func (c *Classifier) volTargetScalar(obs contracts.MarketObservation) float64 {
	if obs.RealizedVol <= 0 {
		return 1.0
	}
	return clip(c.cfg.TargetVolatility/obs.RealizedVol, volTargetMin, volTargetMax)
}

// cadenceFor is a pure lookup from regime to rebalance cadence.
func cadenceFor(regime contracts.Regime) contracts.Cadence {
	switch regime {
	case contracts.RegimePanic:
		return contracts.CadenceDaily
	case contracts.RegimeVolatile, contracts.RegimeBear:
		return contracts.CadenceWeekly
	default:
		return contracts.CadenceMonthly
	}
}

// StockExposure compounds the market-level exposure with a per-stock risk
// multiplier: names above the risk threshold get extra de-risking.
func StockExposure(exposure, riskScore, threshold, reductionFactor float64) float64 {
	if riskScore <= threshold {
		return exposure
	}
	return exposure * (1 - riskScore*reductionFactor)
}

func clip(x, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, x))
}
