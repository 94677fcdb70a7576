package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure so handlers can pick a status code and a
// client-safe message without inspecting provider detail.
type Kind int

const (
	Validation               Kind = iota // Malformed input
	DuplicateIdentity                    // Email already registered
	InvalidCredentials                   // Wrong password or unknown email, never distinguished
	FederationRejected                   // Identity provider rejected the token
	FederationUnavailable                // Identity provider unreachable or timed out
	ConfigurationMissing                 // Required configuration absent for this flow
	ProviderInitiationFailed             // Payment provider rejected or failed the initiation
)

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case Validation, DuplicateIdentity, FederationRejected, ProviderInitiationFailed:
		return http.StatusBadRequest
	case InvalidCredentials:
		return http.StatusUnauthorized
	case FederationUnavailable:
		return http.StatusBadGateway
	case ConfigurationMissing:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a kind plus a client-safe message; the wrapped cause holds
// provider detail and is for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind with a client-safe message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err; ok is false for untyped errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Public returns the client-safe message for err, or a generic fallback for
// untyped errors so internals never leak.
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
