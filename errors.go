package dnspin

import (
	"errors"
	"fmt"
)

// Terminal error kinds for a reconciliation run.
// Each one names the stage that failed; callers match with errors.Is.
var (
	ErrInvalidTarget        = errors.New("invalid target")
	ErrInvalidCredentials   = errors.New("provider credentials could not be verified")
	ErrZoneNotFound         = errors.New("zone not found")
	ErrRecordNotFound       = errors.New("record not found")
	ErrNoSourceAvailable    = errors.New("no public IP source available")
	ErrNoValidRecord        = errors.New("no valid published A record")
	ErrVerificationTimedOut = errors.New("verification timed out")
)

// UpdateRejectedError is returned when the provider accepted the request but
// rejected the record update, carrying the provider's own message verbatim.
type UpdateRejectedError struct {
	Message string
}

func (e *UpdateRejectedError) Error() string {
	return fmt.Sprintf("update rejected by provider: %s", e.Message)
}
