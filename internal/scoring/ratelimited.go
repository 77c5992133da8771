package scoring

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to an upstream scorer. External scoring
// providers meter requests; the limiter keeps bulk rebalances under quota.
type RateLimited struct {
	inner   Scorer
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a token-bucket limiter of rps requests
// per second and the given burst.
func NewRateLimited(inner Scorer, rps float64, burst int) *RateLimited {
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Score implements Scorer, blocking until the limiter admits the call.
func (r *RateLimited) Score(ctx context.Context, symbol string, asOf time.Time) (*float64, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Score(ctx, symbol, asOf)
}
