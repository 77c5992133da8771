package contracts

import "time"

// StockSignal is a per-symbol score snapshot feeding weight synthesis.
// Sentiment and RiskScore are optional inputs from external scorers;
// nil means "not scored", which downstream stages treat as neutral.
type StockSignal struct {
	Symbol     string    `json:"symbol"`
	AsOf       time.Time `json:"as_of"`
	Momentum   float64   `json:"momentum"`
	Volatility float64   `json:"volatility"` // annualized trailing realized vol
	Sentiment  *float64  `json:"sentiment,omitempty"`  // -1.0 ~ 1.0
	RiskScore  *float64  `json:"risk_score,omitempty"` // 0.0 ~ 1.0
	ExclReason string    `json:"excl_reason,omitempty"`
}

// SentimentOrNeutral returns the sentiment score, or 0 when unscored.
func (s *StockSignal) SentimentOrNeutral() float64 {
	if s.Sentiment == nil {
		return 0
	}
	return *s.Sentiment
}

// RiskOrZero returns the risk score, or 0 when unscored.
func (s *StockSignal) RiskOrZero() float64 {
	if s.RiskScore == nil {
		return 0
	}
	return *s.RiskScore
}

// SignalSet carries all symbol signals for one evaluation date.
// SSOT: universe selection → weight synthesis signal handoff.
type SignalSet struct {
	Date    time.Time               `json:"date"`
	Signals map[string]*StockSignal `json:"signals"` // key: symbol
}

// Get returns the signal for a symbol.
func (s *SignalSet) Get(symbol string) (*StockSignal, bool) {
	sig, ok := s.Signals[symbol]
	return sig, ok
}

// Count returns the number of scored symbols.
func (s *SignalSet) Count() int {
	return len(s.Signals)
}

// Float64Ptr returns a pointer to v. Convenience for optional signal fields.
func Float64Ptr(v float64) *float64 { return &v }
