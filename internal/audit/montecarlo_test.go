package audit

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/helios/internal/contracts"
)

func TestMonteCarlo_ConstantReturns(t *testing.T) {
	// every resample compounds the same daily return, so the
	// distribution collapses to a point
	cfg := MonteCarloConfig{Simulations: 500, HorizonDays: 21, Method: "bootstrap", Seed: 7}
	mc := NewMonteCarlo(cfg, testLogger())
	ledger := ledgerFromReturns(100, []float64{0.01, 0.01, 0.01, 0.01})

	result, err := mc.Project(context.Background(), ledger)
	require.NoError(t, err)

	expected := math.Pow(1.01, 21) - 1
	assert.InDelta(t, expected, result.MeanReturn, 1e-12)
	assert.InDelta(t, 0.0, result.StdDev, 1e-12)
	assert.InDelta(t, 0.0, result.ProbLoss, 1e-12)
	assert.InDelta(t, 0.0, result.VaR95, 1e-12)
	assert.InDelta(t, expected, result.Percentiles[50], 1e-12)
	assert.NotEmpty(t, result.RunID)
}

func TestMonteCarlo_SeededReproducible(t *testing.T) {
	cfg := MonteCarloConfig{Simulations: 2000, HorizonDays: 5, Method: "bootstrap", Seed: 42}
	ledger := ledgerFromReturns(100, []float64{0.02, -0.01, 0.005, -0.03, 0.01, 0.015})

	first, err := NewMonteCarlo(cfg, testLogger()).Project(context.Background(), ledger)
	require.NoError(t, err)
	second, err := NewMonteCarlo(cfg, testLogger()).Project(context.Background(), ledger)
	require.NoError(t, err)

	assert.Equal(t, first.MeanReturn, second.MeanReturn)
	assert.Equal(t, first.VaR95, second.VaR95)
	assert.Equal(t, first.Percentiles, second.Percentiles)
}

func TestMonteCarlo_Parametric(t *testing.T) {
	cfg := MonteCarloConfig{Simulations: 5000, HorizonDays: 21, Method: "parametric", Seed: 11}
	mc := NewMonteCarlo(cfg, testLogger())
	ledger := ledgerFromReturns(100, []float64{0.02, -0.02, 0.01, -0.01, 0.015, -0.005})

	result, err := mc.Project(context.Background(), ledger)
	require.NoError(t, err)

	assert.Positive(t, result.StdDev)
	assert.Greater(t, result.ProbLoss, 0.0)
	assert.Less(t, result.ProbLoss, 1.0)
	assert.GreaterOrEqual(t, result.CVaR95, result.VaR95)
	assert.GreaterOrEqual(t, result.CVaR99, result.VaR99)
	// percentiles are monotone
	assert.LessOrEqual(t, result.Percentiles[5], result.Percentiles[50])
	assert.LessOrEqual(t, result.Percentiles[50], result.Percentiles[95])
}

func TestMonteCarlo_Errors(t *testing.T) {
	mc := NewMonteCarlo(DefaultMonteCarloConfig(), testLogger())

	_, err := mc.Project(context.Background(), nil)
	assert.Error(t, err)

	_, err = mc.Project(context.Background(), &contracts.BacktestLedger{})
	assert.Error(t, err)

	// a single return is not enough history to resample
	_, err = mc.Project(context.Background(), ledgerFromReturns(100, []float64{0.01}))
	assert.Error(t, err)

	bad := NewMonteCarlo(MonteCarloConfig{Simulations: 0, HorizonDays: 21}, testLogger())
	_, err = bad.Project(context.Background(), ledgerFromReturns(100, []float64{0.01, 0.02}))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = mc.Project(ctx, ledgerFromReturns(100, []float64{0.01, 0.02}))
	assert.ErrorIs(t, err, context.Canceled)
}
