// Package apperr defines the error taxonomy shared by the certification and
// verification subsystems. Handlers map these onto the HTTP response envelope.
package apperr

import "errors"

var (
	// ErrNotFound means a token, registration, session or certificate could not be resolved.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized means the acting account lacks the required organization membership.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidState means the operation is not applicable in the registration's
	// current state (cancelled registration, self-certification outside window/radius).
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict means a concurrent writer won a state transition race.
	ErrConflict = errors.New("conflict")
	// ErrUpstream means the external identity-verification provider was unreachable
	// or returned an error. Never auto-retried; retry is a deliberate user action.
	ErrUpstream = errors.New("upstream failure")
)

// ReasonError wraps a sentinel with a machine-readable reason code
// (e.g. "out_of_window", "out_of_radius").
type ReasonError struct {
	Base   error
	Reason string
}

func (e *ReasonError) Error() string { return e.Base.Error() + ": " + e.Reason }

func (e *ReasonError) Unwrap() error { return e.Base }

// WithReason attaches a reason code to a sentinel error.
func WithReason(base error, reason string) error {
	return &ReasonError{Base: base, Reason: reason}
}

// Reason extracts the reason code from an error, if any.
func Reason(err error) string {
	var re *ReasonError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}
