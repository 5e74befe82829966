// Package apperr defines the error taxonomy shared by every warden component.
//
// Components wrap these sentinels with context (fmt.Errorf("...: %w", err))
// and the HTTP layer matches them with errors.Is to pick a status code.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateIdentity is returned when a username or email is already taken
	ErrDuplicateIdentity = errors.New("identity already exists")

	// ErrInvalidCredentials covers unknown user, wrong password and inactive account alike
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated is returned when a request carries no valid session
	ErrUnauthenticated = errors.New("authentication required")

	// ErrAccessDenied is returned when the gate rejects a request
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound is returned for unknown project, user or record ids
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for missing or malformed request fields
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedPayload is returned when scan or report content does not parse
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrScanFailed is returned when the external scanner exits unsuccessfully
	ErrScanFailed = errors.New("scan failed")

	// ErrScanTimedOut is returned when the external scanner exceeds its deadline
	ErrScanTimedOut = errors.New("scan timed out")

	// ErrScanOutputMissing is returned when the scanner succeeded but left no result file
	ErrScanOutputMissing = errors.New("scan produced no result file")

	// ErrAuditAppendFailed marks a failed audit append. It is logged, never returned to callers.
	ErrAuditAppendFailed = errors.New("audit append failed")
)

// Invalid returns an ErrInvalidInput carrying a field-level message
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Malformed returns an ErrMalformedPayload carrying the parse problem
func Malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound naming the missing resource
func NotFound(resource string, id interface{}) error {
	return fmt.Errorf("%s %v: %w", resource, id, ErrNotFound)
}

// IsNotFound reports whether err is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAccessDenied reports whether err is or wraps ErrAccessDenied
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}
