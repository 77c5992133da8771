package universe

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

func testUniverseConfig() strategyconfig.Universe {
	return strategyconfig.Universe{
		LookbackMonths:     2, // 42 sessions, keeps fixtures small
		SkipRecentMonths:   1,
		TopPercentile:      0.20,
		FinalPortfolioSize: 50,
	}
}

// growthSeries builds n daily bars with constant per-session growth.
func growthSeries(symbol string, n int, growth float64) *contracts.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.Bar, n)
	price := 100.0
	for i := range bars {
		bars[i] = contracts.Bar{
			Date:     start.AddDate(0, 0, i),
			AdjClose: price,
			Volume:   1_000_000,
		}
		price *= 1 + growth
	}
	return contracts.NewPriceSeries(symbol, bars)
}

func asOfDate(n int) time.Time {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return start.AddDate(0, 0, n-1)
}

func TestSelector_MomentumFormula(t *testing.T) {
	cfg := testUniverseConfig()
	sel := NewSelector(cfg, testLogger())

	const n = 80
	panel := contracts.PricePanel{
		"AAPL": growthSeries("AAPL", n, 0.01),
	}

	_, signals, err := sel.Select(context.Background(), panel, asOfDate(n))
	require.NoError(t, err)

	sig, ok := signals.Get("AAPL")
	require.True(t, ok)

	// momentum = price[end-21]/price[end-63] - 1 = 1.01^42 - 1
	want := math.Pow(1.01, 42) - 1
	assert.InDelta(t, want, sig.Momentum, 1e-9)

	// constant per-session growth has zero return dispersion
	assert.InDelta(t, 0.0, sig.Volatility, 1e-12)
}

func TestSelector_RankingAndCutoff(t *testing.T) {
	cfg := testUniverseConfig()
	sel := NewSelector(cfg, testLogger())

	const n = 80
	growths := map[string]float64{
		"AAA": 0.001, "BBB": 0.002, "CCC": 0.003, "DDD": 0.004, "EEE": 0.005,
		"FFF": 0.006, "GGG": 0.007, "HHH": 0.008, "III": 0.009, "JJJ": 0.010,
	}
	panel := contracts.PricePanel{}
	for sym, g := range growths {
		panel[sym] = growthSeries(sym, n, g)
	}

	universe, signals, err := sel.Select(context.Background(), panel, asOfDate(n))
	require.NoError(t, err)

	// ceil(0.20 * 10) = 2 candidates, highest momentum first
	require.Equal(t, 2, universe.Count())
	assert.Equal(t, []string{"JJJ", "III"}, universe.Symbols)
	assert.Equal(t, 2, signals.Count())

	// the rest carry the cutoff reason
	excluded, reason := universe.IsExcluded("AAA")
	assert.True(t, excluded)
	assert.Equal(t, "below momentum cutoff", reason)
}

func TestSelector_TieBreakBySymbol(t *testing.T) {
	cfg := testUniverseConfig()
	cfg.TopPercentile = 0.5
	sel := NewSelector(cfg, testLogger())

	const n = 80
	panel := contracts.PricePanel{
		"ZZZ": growthSeries("ZZZ", n, 0.005),
		"MMM": growthSeries("MMM", n, 0.005),
		"AAA": growthSeries("AAA", n, 0.005),
		"QQQ": growthSeries("QQQ", n, 0.001),
	}

	universe, _, err := sel.Select(context.Background(), panel, asOfDate(n))
	require.NoError(t, err)

	// ceil(0.5*4)=2; equal momentum resolved alphabetically
	assert.Equal(t, []string{"AAA", "MMM"}, universe.Symbols)
}

func TestSelector_Exclusions(t *testing.T) {
	cfg := testUniverseConfig()
	cfg.VolumeFloor = 500_000
	cfg.TopPercentile = 1.0
	sel := NewSelector(cfg, testLogger())

	const n = 80

	thin := growthSeries("THIN", n, 0.002)
	for i := range thin.Bars {
		thin.Bars[i].Volume = 100 // below the floor
	}

	negative := growthSeries("NEGV", n, 0.002)
	negative.Bars[n-22].AdjClose = -5 // endpoint used by the momentum ratio

	panel := contracts.PricePanel{
		"GOOD": growthSeries("GOOD", n, 0.002),
		"SHRT": growthSeries("SHRT", 30, 0.002), // not enough history
		"THIN": thin,
		"NEGV": negative,
	}

	universe, _, err := sel.Select(context.Background(), panel, asOfDate(n))
	require.NoError(t, err)

	assert.Equal(t, []string{"GOOD"}, universe.Symbols)

	_, reason := universe.IsExcluded("SHRT")
	assert.Contains(t, reason, "insufficient history")
	_, reason = universe.IsExcluded("THIN")
	assert.Contains(t, reason, "below floor")
	_, reason = universe.IsExcluded("NEGV")
	assert.Contains(t, reason, "non-positive price")
}

func TestSelector_Deterministic(t *testing.T) {
	cfg := testUniverseConfig()
	sel := NewSelector(cfg, testLogger())

	const n = 90
	panel := contracts.PricePanel{}
	for _, sym := range []string{"A", "B", "C", "D", "E", "F"} {
		panel[sym] = growthSeries(sym, n, 0.001*float64(len(sym)+int(sym[0]))/100)
	}

	u1, s1, err := sel.Select(context.Background(), panel, asOfDate(n))
	require.NoError(t, err)
	u2, s2, err := sel.Select(context.Background(), panel, asOfDate(n))
	require.NoError(t, err)

	assert.Equal(t, u1.Symbols, u2.Symbols)
	for sym, sig := range s1.Signals {
		assert.Equal(t, sig.Momentum, s2.Signals[sym].Momentum)
	}
}

func TestSelector_EmptyPanel(t *testing.T) {
	sel := NewSelector(testUniverseConfig(), testLogger())

	universe, signals, err := sel.Select(context.Background(), contracts.PricePanel{}, asOfDate(80))
	require.NoError(t, err)
	assert.Equal(t, 0, universe.Count())
	assert.Equal(t, 0, signals.Count())
}
