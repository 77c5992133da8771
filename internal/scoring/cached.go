package scoring

import (
	"context"
	"time"

	"github.com/wonny/helios/pkg/redis"
)

// KeyFunc builds the cache key for a symbol and date.
type KeyFunc func(symbol, date string) string

// Cached decorates a scorer with a Redis-backed cache. Scores are keyed by
// symbol and date, so a backtest re-run hits the cache instead of the
// upstream source. With Redis disabled every call passes through.
type Cached struct {
	inner Scorer
	cache *redis.Cache
	key   KeyFunc
	ttl   time.Duration
}

// NewCached wraps inner with score caching.
func NewCached(inner Scorer, cache *redis.Cache, key KeyFunc, ttl time.Duration) *Cached {
	return &Cached{inner: inner, cache: cache, key: key, ttl: ttl}
}

// NewCachedSentiment wraps a sentiment source with the sentiment key space.
func NewCachedSentiment(inner Scorer, cache *redis.Cache) *Cached {
	return NewCached(inner, cache, redis.SentimentKey, redis.TTLDaily)
}

// NewCachedRisk wraps a risk source with the risk key space.
func NewCachedRisk(inner Scorer, cache *redis.Cache) *Cached {
	return NewCached(inner, cache, redis.RiskKey, redis.TTLDaily)
}

// cachedScore distinguishes a cached "no opinion" from a cache miss.
type cachedScore struct {
	Score *float64 `json:"score"`
}

// Score implements Scorer.
func (c *Cached) Score(ctx context.Context, symbol string, asOf time.Time) (*float64, error) {
	key := c.key(symbol, asOf.Format("2006-01-02"))

	var cached cachedScore
	found, err := c.cache.Get(ctx, key, &cached)
	if err == nil && found {
		return cached.Score, nil
	}

	score, err := c.inner.Score(ctx, symbol, asOf)
	if err != nil {
		return nil, err
	}

	// cache failures never block scoring
	_ = c.cache.Set(ctx, key, cachedScore{Score: score}, c.ttl)
	return score, nil
}
