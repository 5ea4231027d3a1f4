package ebay

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth indicates credentials are missing or rejected upstream.
	// Nothing useful can happen without a token, so callers abort the run.
	ErrAuth = errors.New("ebay: authentication failed")

	// ErrBudgetExhausted is returned once the per-run call budget is spent.
	// Callers treat it as "no more data", not as a failure.
	ErrBudgetExhausted = errors.New("ebay: call budget exhausted")
)

// StatusError is an upstream HTTP failure that was not retried away.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ebay: unexpected status %d: %s", e.Status, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
