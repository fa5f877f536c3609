// Package fault defines the error taxonomy shared by the credential vault,
// identity linker, and auth flow orchestrator. Every error carries a Kind
// and a Recoverable flag so callers can decide between retrying with
// backoff and sending the user back through authentication.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	// KindNotFound means the requested record does not exist.
	KindNotFound Kind = "not_found"

	// KindInvalidState means a transient auth state token was missing,
	// expired, or already consumed.
	KindInvalidState Kind = "invalid_state"

	// KindCorruptCredential means a stored envelope failed authentication
	// or decoding. Always fail closed: no partial bundle is ever returned.
	KindCorruptCredential Kind = "corrupt_credential"

	// KindUnauthorized means the credential is invalid or expired with no
	// usable refresh path. The user must re-authenticate.
	KindUnauthorized Kind = "unauthorized"

	// KindTransientNetwork covers rate limiting and transient network
	// failures against the platform. Safe to retry with backoff.
	KindTransientNetwork Kind = "transient_network"

	// KindStoreUnavailable means the backing key-value store failed.
	KindStoreUnavailable Kind = "store_unavailable"
)

// recoverableByDefault returns whether errors of this kind may resolve
// without user re-authentication.
func recoverableByDefault(k Kind) bool {
	return k == KindTransientNetwork || k == KindStoreUnavailable
}

// Error is a classified error with an optional wrapped cause.
type Error struct {
	Kind        Kind
	Message     string
	Recoverable bool
	Cause       error
}

// Error returns the formatted error string.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error of the given kind with the kind's default
// recoverability.
func New(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:        kind,
		Message:     message,
		Recoverable: recoverableByDefault(kind),
		Cause:       cause,
	}
}

// NotFound creates a KindNotFound error.
func NotFound(message string, cause error) *Error {
	return New(KindNotFound, message, cause)
}

// InvalidState creates a KindInvalidState error.
func InvalidState(message string, cause error) *Error {
	return New(KindInvalidState, message, cause)
}

// CorruptCredential creates a KindCorruptCredential error.
func CorruptCredential(message string, cause error) *Error {
	return New(KindCorruptCredential, message, cause)
}

// Unauthorized creates a KindUnauthorized error. Never recoverable.
func Unauthorized(message string, cause error) *Error {
	return New(KindUnauthorized, message, cause)
}

// TransientNetwork creates a KindTransientNetwork error. Recoverable.
func TransientNetwork(message string, cause error) *Error {
	return New(KindTransientNetwork, message, cause)
}

// StoreUnavailable creates a KindStoreUnavailable error. Recoverable.
func StoreUnavailable(message string, cause error) *Error {
	return New(KindStoreUnavailable, message, cause)
}

// KindOf returns the kind of err, or "" when err carries no classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return ""
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsNotFound reports whether err is a KindNotFound error.
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// IsRecoverable reports whether err may resolve without user
// re-authentication. Unclassified errors are treated as non-recoverable
// so callers never retry blindly.
func IsRecoverable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Recoverable
	}

	return false
}
