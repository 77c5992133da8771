package scoring

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/helios/pkg/config"
	"github.com/wonny/helios/pkg/redis"
)

var asOf = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

func TestStatic_Score(t *testing.T) {
	s := NewStatic(map[string]float64{"AAPL": 0.8, "TSLA": -0.3})

	score, err := s.Score(context.Background(), "AAPL", asOf)
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.InDelta(t, 0.8, *score, 1e-12)

	// unknown symbols have no opinion
	score, err = s.Score(context.Background(), "MSFT", asOf)
	require.NoError(t, err)
	assert.Nil(t, score)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Score(ctx, "AAPL", asOf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"AAPL": 0.5, "NVDA": 0.9}`), 0o644))

	s, err := NewStaticFromFile(path)
	require.NoError(t, err)
	score, err := s.Score(context.Background(), "NVDA", asOf)
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.InDelta(t, 0.9, *score, 1e-12)

	_, err = NewStaticFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`not json`), 0o644))
	_, err = NewStaticFromFile(bad)
	assert.Error(t, err)
}

// disabledCache builds a cache over a disabled Redis client; every Get
// misses and every Set is a no-op.
func disabledCache(t *testing.T) *redis.Cache {
	t.Helper()
	client, err := redis.New(&config.Config{})
	require.NoError(t, err)
	return redis.NewCache(client, "helios-test")
}

func TestCached_PassthroughWhenDisabled(t *testing.T) {
	calls := 0
	inner := Func(func(context.Context, string, time.Time) (*float64, error) {
		calls++
		v := 0.4
		return &v, nil
	})

	cached := NewCachedSentiment(inner, disabledCache(t))
	for i := 0; i < 3; i++ {
		score, err := cached.Score(context.Background(), "AAPL", asOf)
		require.NoError(t, err)
		require.NotNil(t, score)
		assert.InDelta(t, 0.4, *score, 1e-12)
	}
	assert.Equal(t, 3, calls) // no cache, every call reaches the source
}

func TestCached_PropagatesSourceError(t *testing.T) {
	inner := Func(func(context.Context, string, time.Time) (*float64, error) {
		return nil, errors.New("provider down")
	})
	cached := NewCachedRisk(inner, disabledCache(t))

	_, err := cached.Score(context.Background(), "AAPL", asOf)
	assert.Error(t, err)
}

func TestRateLimited_AdmitsWithinBudget(t *testing.T) {
	inner := NewStatic(map[string]float64{"AAPL": 0.1})
	limited := NewRateLimited(inner, 1000, 10)

	for i := 0; i < 5; i++ {
		score, err := limited.Score(context.Background(), "AAPL", asOf)
		require.NoError(t, err)
		require.NotNil(t, score)
	}
}

func TestRateLimited_CancelledContext(t *testing.T) {
	inner := NewStatic(map[string]float64{"AAPL": 0.1})
	limited := NewRateLimited(inner, 0.001, 1)

	ctx, cancel := context.WithCancel(context.Background())
	// drain the single burst token, then cancel before the refill
	_, err := limited.Score(ctx, "AAPL", asOf)
	require.NoError(t, err)
	cancel()

	_, err = limited.Score(ctx, "AAPL", asOf)
	assert.Error(t, err)
}

// Redis-backed round trip, needs a live server.
func TestCached_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	cfg := &config.Config{
		Redis: config.RedisConfig{Enabled: true, Host: "localhost", Port: "6379"},
	}
	client, err := redis.New(cfg)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer client.Close()

	calls := 0
	inner := Func(func(context.Context, string, time.Time) (*float64, error) {
		calls++
		v := 0.7
		return &v, nil
	})
	cached := NewCachedSentiment(inner, redis.NewCache(client, "helios-test"))

	for i := 0; i < 3; i++ {
		score, err := cached.Score(context.Background(), "CACHED", asOf)
		require.NoError(t, err)
		require.NotNil(t, score)
		assert.InDelta(t, 0.7, *score, 1e-12)
	}
	assert.Equal(t, 1, calls)
}
