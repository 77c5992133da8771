package contracts

import "time"

// Universe represents the investable symbols selected for one evaluation date.
// SSOT: universe selection → weight synthesis symbol handoff.
type Universe struct {
	Date       time.Time         `json:"date"`
	Symbols    []string          `json:"symbols"`  // selected, momentum-descending
	Excluded   map[string]string `json:"excluded"` // symbol -> reason code
	TotalCount int               `json:"total_count,omitempty"`
}

// Contains checks whether a symbol was selected.
func (u *Universe) Contains(symbol string) bool {
	for _, s := range u.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// IsExcluded checks whether a symbol was excluded, with its reason code.
func (u *Universe) IsExcluded(symbol string) (bool, string) {
	reason, exists := u.Excluded[symbol]
	return exists, reason
}

// Count returns the number of selected symbols.
func (u *Universe) Count() int {
	return len(u.Symbols)
}
