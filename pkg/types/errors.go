package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every way a cycle can fail. Kinds are surfaced in the
// TradeRecord and never cross the engine boundary as bare errors.
type ErrorKind string

// Input errors: no venue calls were made.
const (
	ErrMalformedCycle       ErrorKind = "MALFORMED_CYCLE"
	ErrCurrencyNotSupported ErrorKind = "CURRENCY_NOT_SUPPORTED"
)

// Pre-admission failures: aborted before leg 1 was submitted.
const (
	ErrStale          ErrorKind = "STALE"
	ErrThinBook       ErrorKind = "THIN_BOOK"
	ErrBelowThreshold ErrorKind = "BELOW_THRESHOLD"
	ErrUnconfirmed    ErrorKind = "UNCONFIRMED"
	ErrBusy           ErrorKind = "BUSY"
	ErrCancelled      ErrorKind = "CANCELLED"
	ErrHalted         ErrorKind = "HALTED"
	ErrNoLiquidity    ErrorKind = "NO_LIQUIDITY"
)

// Mid-cycle failures: at least one leg was submitted. Forward-only policy
// applies; none of these are retried within the cycle (CLOCK_SKEW on leg 1
// being the single, bounded exception).
const (
	ErrRejected            ErrorKind = "REJECTED"
	ErrInsufficientBalance ErrorKind = "INSUFFICIENT_BALANCE"
	ErrPrecision           ErrorKind = "PRECISION"
	ErrTimeout             ErrorKind = "TIMEOUT"
	ErrClockSkew           ErrorKind = "CLOCK_SKEW"
	ErrZeroFill            ErrorKind = "ZERO_FILL"
)

// Post-cycle: the cycle completed but the record could not be emitted.
// Realized P&L is unaffected.
const ErrRecordEmitFailed ErrorKind = "RECORD_EMIT_FAILED"

// CycleError carries the taxonomy kind plus the leg at which execution
// failed. Leg is 1-based; 0 means no leg was submitted.
type CycleError struct {
	Kind    ErrorKind
	Leg     int
	Message string
	Err     error
}

func (e *CycleError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Leg > 0 {
		return fmt.Sprintf("leg %d %s: %s", e.Leg, e.Kind, msg)
	}

	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *CycleError) Unwrap() error { return e.Err }

// VenueError is a failure reported by a venue API call, tagged with the
// normalized kind and the venue's own error code for operators.
type VenueError struct {
	Venue   string
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *VenueError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code %s)", e.Venue, e.Message, e.Code)
	}

	return fmt.Sprintf("%s: %s", e.Venue, e.Message)
}

func (e *VenueError) Unwrap() error { return e.Err }

// KindOf extracts the taxonomy kind from an error chain. Unknown errors map
// to REJECTED when a leg context exists, so callers should prefer wrapping
// with CycleError before this falls through; the empty kind means the error
// carries no classification.
func KindOf(err error) ErrorKind {
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce.Kind
	}

	var ve *VenueError
	if errors.As(err, &ve) {
		return ve.Kind
	}

	return ""
}
