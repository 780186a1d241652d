package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrUnsupportedKind = errors.New("unsupported job kind")

	// Provider adapter taxonomy. Unavailable is the only retryable class.
	ErrProviderUnavailable   = errors.New("provider unavailable")
	ErrProviderRejected      = errors.New("provider rejected request")
	ErrProviderMisconfigured = errors.New("provider misconfigured")

	// Terminal provider success whose payload yielded no recognizable result.
	ErrInvalidOutput = errors.New("no result in provider output")

	// Returned when a balance row is observed in a state the ledger rules
	// forbid, e.g. a negative total.
	ErrLedgerInvariant = errors.New("ledger invariant violation")
)

// InsufficientCreditsError reports a rejected spend with the amounts the
// caller needs to render the failure.
type InsufficientCreditsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

// IsInsufficientCredits unwraps err as an InsufficientCreditsError.
func IsInsufficientCredits(err error) (*InsufficientCreditsError, bool) {
	var ice *InsufficientCreditsError
	if errors.As(err, &ice) {
		return ice, true
	}
	return nil, false
}
