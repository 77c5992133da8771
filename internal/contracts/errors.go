package contracts

import (
	"fmt"
	"time"
)

// DataInsufficientError reports a symbol whose price history cannot cover
// the requested lookback window. Callers exclude the symbol and continue.
type DataInsufficientError struct {
	Symbol string
	Need   int
	Have   int
}

func (e *DataInsufficientError) Error() string {
	return fmt.Sprintf("%s: insufficient history: need %d bars, have %d", e.Symbol, e.Need, e.Have)
}

// NonFiniteValueError reports a NaN or Inf produced by a computation.
// Callers exclude the offending symbol and continue.
type NonFiniteValueError struct {
	Symbol string
	Stage  string
}

func (e *NonFiniteValueError) Error() string {
	return fmt.Sprintf("%s: non-finite value in %s", e.Symbol, e.Stage)
}

// InfeasibleCapError reports cap * n < 1: the cap cannot absorb full
// investment across n holdings. Returned only in strict cap mode.
type InfeasibleCapError struct {
	Cap float64
	N   int
}

func (e *InfeasibleCapError) Error() string {
	return fmt.Sprintf("position cap %.4f infeasible for %d holdings (cap*n = %.4f < 1)", e.Cap, e.N, e.Cap*float64(e.N))
}

// LedgerIntegrityError reports an inconsistent simulation state
// (negative value, non-finite value, weight sum out of bounds,
// non-advancing dates). It is fatal: the backtest stops and keeps
// the partial ledger.
type LedgerIntegrityError struct {
	Date   time.Time
	Detail string
}

func (e *LedgerIntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violated on %s: %s", e.Date.Format("2006-01-02"), e.Detail)
}
