// Package errs provides the error type shared by every Iron Drawer layer.
//
// Storage drivers wrap SDK errors into *errs.Error, the object mapper and
// browser controller add their own kinds (validation, conflict, metadata),
// and HTTP handlers turn kinds into status codes without importing any
// driver package.
//
//	if errs.IsConflict(err) {
//	    return c.Render(http.StatusConflict, "name_error", err)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing backend-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no object, no bucket, unknown key
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindStorageFailed            // storage call rejected or failed
	ErrKindInvalidInput             // bad names, folders where files are expected
	ErrKindConflict                 // name already taken in the current listing
	ErrKindPermissionDenied         // action disabled or access denied by the store
	ErrKindMetadataFailed           // metadata could not be synthesized or verified
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindStorageFailed:
		return "storage_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindConflict:
		return "conflict"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindMetadataFailed:
		return "metadata_failed"
	default:
		return "unknown"
	}
}

// Error is the single error type returned across Iron Drawer.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a missing object or bucket.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsStorageFailed reports whether a storage call failed.
func IsStorageFailed(err error) bool {
	return KindOf(err) == ErrKindStorageFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsConflict reports whether err is a name collision.
func IsConflict(err error) bool {
	return KindOf(err) == ErrKindConflict
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsMetadataFailed reports whether metadata synthesis or verification failed.
func IsMetadataFailed(err error) bool {
	return KindOf(err) == ErrKindMetadataFailed
}

// IsValidation reports whether err should be shown as a field-level error
// rather than a failed storage call.
func IsValidation(err error) bool {
	k := KindOf(err)
	return k == ErrKindInvalidInput || k == ErrKindConflict
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// Message returns the user-facing message of err without its cause.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
