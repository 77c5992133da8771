// Package scoring supplies the optional per-symbol sentiment and risk
// scores consumed by weight synthesis. Scores come from external systems
// (an LLM pipeline, an analyst feed); this package wraps those sources
// with caching and rate limiting and offers a static file-backed source
// for backtests.
package scoring

import (
	"context"
	"time"
)

// Scorer is the common shape of sentiment and risk sources: a nil score
// means no opinion and leaves the signal neutral.
type Scorer interface {
	Score(ctx context.Context, symbol string, asOf time.Time) (*float64, error)
}

// Func adapts a plain function to a Scorer.
type Func func(ctx context.Context, symbol string, asOf time.Time) (*float64, error)

// Score implements Scorer.
func (f Func) Score(ctx context.Context, symbol string, asOf time.Time) (*float64, error) {
	return f(ctx, symbol, asOf)
}
