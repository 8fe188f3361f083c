package crawler

import (
	"errors"
	"fmt"
)

// Error kinds produced at the boundary where a raw failure is first observed.
// Downstream code matches them with errors.Is instead of inspecting messages.
var (
	ErrRateLimited         = errors.New("rate limited")
	ErrDuplicateEntity     = errors.New("duplicate entity")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrValidationFailed    = errors.New("validation failed")
)

// Error tags an underlying failure with one of the kinds above.
type Error struct {
	Kind error
	// Op is the subsystem message prefix, e.g. "failed to scrape https://...".
	Op  string
	Err error
}

// NewError wraps err with a kind and an operation prefix.
func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Op == "":
		return e.Err.Error()
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

// Is reports whether target is this error's kind.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryableRateLimit reports whether err should trigger rate-limit backoff.
func IsRetryableRateLimit(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
