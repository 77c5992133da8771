package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Static serves scores from a fixed symbol map. Unknown symbols get a nil
// score. Deterministic, which makes backtests reproducible.
type Static struct {
	scores map[string]float64
}

// NewStatic creates a static scorer over the given symbol map.
func NewStatic(scores map[string]float64) *Static {
	return &Static{scores: scores}
}

// NewStaticFromFile loads a JSON object of symbol to score.
func NewStaticFromFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scores file: %w", err)
	}
	var scores map[string]float64
	if err := json.Unmarshal(data, &scores); err != nil {
		return nil, fmt.Errorf("parse scores file %s: %w", path, err)
	}
	return &Static{scores: scores}, nil
}

// Score implements Scorer.
func (s *Static) Score(ctx context.Context, symbol string, _ time.Time) (*float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := s.scores[symbol]
	if !ok {
		return nil, nil
	}
	return &v, nil
}
