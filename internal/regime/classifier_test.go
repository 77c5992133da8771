package regime

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/helios/internal/contracts"
	"github.com/wonny/helios/internal/strategyconfig"
	"github.com/wonny/helios/pkg/config"
	"github.com/wonny/helios/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

func calmObservation(proxy float64) contracts.MarketObservation {
	return contracts.MarketObservation{
		Date:       time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		VolProxy:   proxy,
		IndexClose: 5000,
		IndexMA200: 4800,
	}
}

func TestClassifier_ThresholdLadder(t *testing.T) {
	cls := NewClassifier(strategyconfig.Default().Regime, testLogger())
	ctx := context.Background()

	tests := []struct {
		name string
		obs  contracts.MarketObservation
		want contracts.Regime
	}{
		{"panic above 40", calmObservation(45), contracts.RegimePanic},
		{"volatile above 30", calmObservation(32), contracts.RegimeVolatile},
		{"exactly 40 is volatile not panic", calmObservation(40), contracts.RegimeVolatile},
		{"normal at 20", calmObservation(20), contracts.RegimeNormal},
		{"bull below 20", calmObservation(15), contracts.RegimeBull},
		{
			"bear when below ma despite calm proxy",
			contracts.MarketObservation{VolProxy: 15, IndexClose: 4500, IndexMA200: 4800},
			contracts.RegimeBear,
		},
		{
			"volatile proxy outranks trend",
			contracts.MarketObservation{VolProxy: 32, IndexClose: 4500, IndexMA200: 4800},
			contracts.RegimeVolatile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := cls.Classify(ctx, tt.obs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, state.Regime)
		})
	}
}

// Proxy levels 45 then 15 over a flat index must yield exposures 0.25 and 1.00.
func TestClassifier_PanicThenBullExposure(t *testing.T) {
	cls := NewClassifier(strategyconfig.Default().Regime, testLogger())
	ctx := context.Background()

	flat := contracts.MarketObservation{
		VolProxy:   45,
		IndexClose: 5000,
		IndexMA200: 5000,
	}
	state, err := cls.Classify(ctx, flat)
	require.NoError(t, err)
	assert.Equal(t, contracts.RegimePanic, state.Regime)
	assert.InDelta(t, 0.25, state.Exposure, 1e-12)
	// flat prices keep the crash score at the proxy component only
	assert.InDelta(t, 0.30, state.CrashRisk, 1e-12)

	flat.VolProxy = 15
	state, err = cls.Classify(ctx, flat)
	require.NoError(t, err)
	assert.Equal(t, contracts.RegimeBull, state.Regime)
	assert.InDelta(t, 1.00, state.Exposure, 1e-12)
}

func TestClassifier_CrashPenalty(t *testing.T) {
	cls := NewClassifier(strategyconfig.Default().Regime, testLogger())
	ctx := context.Background()

	// Saturated drawdowns plus an elevated proxy push crash risk over 0.5.
	obs := contracts.MarketObservation{
		VolProxy:      32,
		IndexClose:    4000,
		IndexMA200:    4800,
		IndexDrawdown: 0.20,
		StrategyDD:    0.12,
	}
	state, err := cls.Classify(ctx, obs)
	require.NoError(t, err)

	// dd saturates (0.30), spike (32-20)/20 = 0.6 (0.18), sdd saturates (0.25)
	wantCrash := 0.30 + 0.30*0.6 + 0.25
	require.InDelta(t, wantCrash, state.CrashRisk, 1e-12)
	require.Greater(t, state.CrashRisk, 0.5)

	// penalty applies on top of the volatile multiplier
	want := 0.60 * (1 - wantCrash*0.5)
	assert.InDelta(t, want, state.Exposure, 1e-12)
}

func TestClassifier_ExposureFloor(t *testing.T) {
	cfg := strategyconfig.Default().Regime
	cls := NewClassifier(cfg, testLogger())

	obs := contracts.MarketObservation{
		VolProxy:      60,
		IndexClose:    3500,
		IndexMA200:    4800,
		IndexDrawdown: 0.30,
		StrategyDD:    0.20,
		VolOfVol:      8,
	}
	state, err := cls.Classify(context.Background(), obs)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, state.CrashRisk, 1e-12)
	// 0.25 * (1 - 0.5) would be 0.125; the floor holds it at MinExposure
	assert.InDelta(t, cfg.MinExposure, state.Exposure, 1e-12)
}

func TestClassifier_Cadence(t *testing.T) {
	cls := NewClassifier(strategyconfig.Default().Regime, testLogger())
	ctx := context.Background()

	tests := []struct {
		proxy float64
		below bool
		want  contracts.Cadence
	}{
		{45, false, contracts.CadenceDaily},
		{35, false, contracts.CadenceWeekly},
		{15, true, contracts.CadenceWeekly}, // bear
		{25, false, contracts.CadenceMonthly},
		{15, false, contracts.CadenceMonthly},
	}

	for _, tt := range tests {
		obs := calmObservation(tt.proxy)
		if tt.below {
			obs.IndexClose = 4500
		}
		state, err := cls.Classify(ctx, obs)
		require.NoError(t, err)
		assert.Equal(t, tt.want, state.Cadence)
	}
}

func TestClassifier_VolTargetScalar(t *testing.T) {
	cls := NewClassifier(strategyconfig.Default().Regime, testLogger())
	ctx := context.Background()

	obs := calmObservation(15)
	obs.RealizedVol = 0.30 // target 0.15 → scalar 0.5
	state, err := cls.Classify(ctx, obs)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, state.VolTarget, 1e-12)

	obs.RealizedVol = 0.01 // would be 15, clipped to 2.0
	state, err = cls.Classify(ctx, obs)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, state.VolTarget, 1e-12)

	obs.RealizedVol = 0 // undefined → neutral
	state, err = cls.Classify(ctx, obs)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, state.VolTarget, 1e-12)

	// scalar never feeds the exposure
	assert.InDelta(t, 1.0, state.Exposure, 1e-12)
}

func TestClassifier_ContextCancelled(t *testing.T) {
	cls := NewClassifier(strategyconfig.Default().Regime, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cls.Classify(ctx, calmObservation(15))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStockExposure(t *testing.T) {
	assert.InDelta(t, 0.8, StockExposure(0.8, 0.5, 0.7, 0.5), 1e-12)
	assert.InDelta(t, 0.8*(1-0.8*0.5), StockExposure(0.8, 0.8, 0.7, 0.5), 1e-12)
	assert.InDelta(t, 0.8, StockExposure(0.8, 0.7, 0.7, 0.5), 1e-12) // threshold is exclusive
}

func TestObservationBuilder_Build(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 260
	bars := make([]contracts.Bar, n)
	proxyBars := make([]contracts.Bar, n)
	for i := range bars {
		d := start.AddDate(0, 0, i)
		bars[i] = contracts.Bar{Date: d, AdjClose: 100, Volume: 1_000_000}
		proxyBars[i] = contracts.Bar{Date: d, AdjClose: 18}
	}
	// a late sell-off: last 10 sessions drop 2% per day
	px := 100.0
	for i := n - 10; i < n; i++ {
		px *= 0.98
		bars[i].AdjClose = px
	}

	index := contracts.NewPriceSeries("SPY", bars)
	proxy := contracts.NewPriceSeries("VIX", proxyBars)
	b := NewObservationBuilder(index, proxy)

	asOf := start.AddDate(0, 0, n-1)
	obs, err := b.Build(asOf, 0.03)
	require.NoError(t, err)

	assert.Equal(t, bars[n-1].Date, obs.Date)
	assert.InDelta(t, px, obs.IndexClose, 1e-9)
	assert.Greater(t, obs.IndexMA200, obs.IndexClose)
	assert.InDelta(t, 1-math.Pow(0.98, 10), obs.IndexDrawdown, 1e-9)
	assert.Greater(t, obs.RealizedVol, 0.0)
	assert.InDelta(t, 18.0, obs.VolProxy, 1e-12)
	assert.InDelta(t, 0.0, obs.VolOfVol, 1e-12) // constant proxy
	assert.InDelta(t, 0.03, obs.StrategyDD, 1e-12)
}

func TestObservationBuilder_ProxyFallback(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.Bar, 60)
	px := 100.0
	for i := range bars {
		bars[i] = contracts.Bar{Date: start.AddDate(0, 0, i), AdjClose: px, Volume: 1}
		px *= 1.01
	}
	index := contracts.NewPriceSeries("SPY", bars)
	b := NewObservationBuilder(index, nil)

	obs, err := b.Build(start.AddDate(0, 0, 59), 0)
	require.NoError(t, err)
	assert.InDelta(t, obs.RealizedVol*100, obs.VolProxy, 1e-12)
	assert.InDelta(t, 0.0, obs.VolOfVol, 1e-12)
}

func TestObservationBuilder_Errors(t *testing.T) {
	_, err := NewObservationBuilder(nil, nil).Build(time.Now(), 0)
	assert.Error(t, err)

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	series := contracts.NewPriceSeries("SPY", []contracts.Bar{{Date: start, AdjClose: 100}})
	_, err = NewObservationBuilder(series, nil).Build(start.AddDate(0, 0, -5), 0)
	assert.Error(t, err)
}
