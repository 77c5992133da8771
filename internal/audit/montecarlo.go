package audit

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/helios/internal/contracts"
	"github.com/wonny/helios/pkg/logger"
)

// MonteCarloConfig controls the forward projection of a ledger's returns.
type MonteCarloConfig struct {
	Simulations int    `json:"simulations"`
	HorizonDays int    `json:"horizon_days"`
	Method      string `json:"method"` // bootstrap | parametric
	Seed        int64  `json:"seed"`   // 0 = time-seeded
}

// DefaultMonteCarloConfig projects one month ahead with bootstrap resampling.
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		Simulations: 10_000,
		HorizonDays: 21,
		Method:      "bootstrap",
	}
}

// MonteCarloResult is the simulated horizon-return distribution.
type MonteCarloResult struct {
	RunID  string           `json:"run_id"`
	Config MonteCarloConfig `json:"config"`

	MeanReturn float64 `json:"mean_return"`
	StdDev     float64 `json:"std_dev"`
	ProbLoss   float64 `json:"prob_loss"` // P(horizon return < 0)

	VaR95  float64 `json:"var_95"` // loss-positive
	CVaR95 float64 `json:"cvar_95"`
	VaR99  float64 `json:"var_99"`
	CVaR99 float64 `json:"cvar_99"`

	Percentiles map[int]float64 `json:"percentiles"`
	CreatedAt   time.Time       `json:"created_at"`
}

// MonteCarlo projects a backtest ledger's daily returns forward by
// resampling, giving a distribution over the configured horizon.
type MonteCarlo struct {
	cfg MonteCarloConfig
	rng *rand.Rand
	log *logger.Logger
}

// NewMonteCarlo creates a simulator. A non-zero seed makes runs reproducible.
func NewMonteCarlo(cfg MonteCarloConfig, log *logger.Logger) *MonteCarlo {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MonteCarlo{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
		log: log,
	}
}

// Project simulates horizon returns from the ledger's daily return history.
func (mc *MonteCarlo) Project(ctx context.Context, ledger *contracts.BacktestLedger) (*MonteCarloResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ledger == nil || len(ledger.Entries) == 0 {
		return nil, fmt.Errorf("audit: empty ledger")
	}
	if mc.cfg.Simulations < 1 || mc.cfg.HorizonDays < 1 {
		return nil, fmt.Errorf("audit: simulations and horizon must be >= 1")
	}

	returns := ledger.DailyReturns()
	if len(returns) < 2 {
		return nil, fmt.Errorf("audit: need at least 2 daily returns, have %d", len(returns))
	}

	var simulated []float64
	if mc.cfg.Method == "parametric" {
		simulated = mc.parametric(returns)
	} else {
		simulated = mc.bootstrap(returns)
	}

	result := mc.summarize(simulated)

	mc.log.WithFields(map[string]interface{}{
		"run_id":      result.RunID,
		"method":      mc.cfg.Method,
		"simulations": mc.cfg.Simulations,
		"horizon":     mc.cfg.HorizonDays,
		"mean_return": result.MeanReturn,
		"var_95":      result.VaR95,
	}).Info("Monte Carlo projection completed")

	return result, nil
}

// bootstrap compounds randomly resampled daily returns over the horizon.
func (mc *MonteCarlo) bootstrap(returns []float64) []float64 {
	out := make([]float64, mc.cfg.Simulations)
	for i := range out {
		cum := 1.0
		for d := 0; d < mc.cfg.HorizonDays; d++ {
			cum *= 1 + returns[mc.rng.Intn(len(returns))]
		}
		out[i] = cum - 1
	}
	return out
}

// parametric draws horizon returns from a normal fit of the daily history.
func (mc *MonteCarlo) parametric(returns []float64) []float64 {
	mean := sampleMean(returns)
	std := sampleStd(returns, mean)

	horizonMean := mean * float64(mc.cfg.HorizonDays)
	horizonStd := std * math.Sqrt(float64(mc.cfg.HorizonDays))

	out := make([]float64, mc.cfg.Simulations)
	for i := range out {
		out[i] = horizonMean + horizonStd*mc.rng.NormFloat64()
	}
	return out
}

func (mc *MonteCarlo) summarize(simulated []float64) *MonteCarloResult {
	mean := sampleMean(simulated)
	std := sampleStd(simulated, mean)

	losses := 0
	for _, r := range simulated {
		if r < 0 {
			losses++
		}
	}

	v95 := HistoricalVaR(simulated, 0.95)
	v99 := HistoricalVaR(simulated, 0.99)

	return &MonteCarloResult{
		RunID:       uuid.New().String(),
		Config:      mc.cfg,
		MeanReturn:  mean,
		StdDev:      std,
		ProbLoss:    float64(losses) / float64(len(simulated)),
		VaR95:       v95.VaR,
		CVaR95:      v95.CVaR,
		VaR99:       v99.VaR,
		CVaR99:      v99.CVaR,
		Percentiles: percentiles(simulated, []int{1, 5, 10, 25, 50, 75, 90, 95, 99}),
		CreatedAt:   time.Now(),
	}
}

// percentiles returns the requested percentiles of the sample.
func percentiles(sample []float64, points []int) map[int]float64 {
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	out := make(map[int]float64, len(points))
	for _, p := range points {
		idx := int(float64(p) / 100 * float64(len(sorted)-1))
		out[p] = sorted[idx]
	}
	return out
}

func sampleMean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sampleStd(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(xs)-1))
}
