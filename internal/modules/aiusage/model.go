// README: Completion quota errors and defaults.
package aiusage

import "errors"

// ErrInsufficientTokens is returned when a user has no completions left this month.
var ErrInsufficientTokens = errors.New("insufficient tokens")

// DefaultTokens is the monthly allowance when none is configured.
const DefaultTokens = 100

// Usage is a user's allowance for the current month.
type Usage struct {
	UID       string `json:"uid"`
	Remaining int    `json:"remaining"`
	Month     string `json:"month"`
}
