package contracts

import (
	"context"
	"time"
)

// UniverseSelector ranks symbols by momentum and keeps the top slice.
// SSOT: universe selection interface.
type UniverseSelector interface {
	Select(ctx context.Context, panel PricePanel, asOf time.Time) (*Universe, *SignalSet, error)
}

// WeightSynthesizer turns signals into a target weight vector.
// SSOT: weight synthesis interface.
type WeightSynthesizer interface {
	Synthesize(ctx context.Context, universe *Universe, signals *SignalSet) (*WeightVector, error)
}

// RegimeClassifier maps market observations to a regime and exposure.
// SSOT: regime classification interface.
type RegimeClassifier interface {
	Classify(ctx context.Context, obs MarketObservation) (*RegimeState, error)
}

// Auditor computes a performance report from a completed ledger.
// SSOT: performance audit interface.
type Auditor interface {
	Analyze(ctx context.Context, ledger *BacktestLedger) (*PerformanceReport, error)
}

// SentimentScorer supplies optional per-symbol sentiment in [-1, 1].
type SentimentScorer interface {
	Score(ctx context.Context, symbol string, asOf time.Time) (*float64, error)
}

// RiskScorer supplies optional per-symbol risk scores in [0, 1].
type RiskScorer interface {
	Score(ctx context.Context, symbol string, asOf time.Time) (*float64, error)
}
