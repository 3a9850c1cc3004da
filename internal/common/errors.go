// Package common defines the error taxonomy and small helpers shared by the
// gophauth server, its repositories and the operator CLI. Callers should use
// errors.Is / errors.As to match these values.
package common

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal   = errors.New("internal error")
	ErrorForbidden  = errors.New("forbidden")
	ErrorValidation = errors.New("validation error")

	// Credential errors. ErrInvalidCredentials is returned both for an unknown
	// email and for a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")

	// Refresh token errors: unknown, expired and already rotated tokens all
	// collapse to ErrTokenInvalid.
	ErrTokenInvalid = errors.New("invalid token")
)

// ValidationError reports the first input rule that was violated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrorValidation) match any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrorValidation
}

// NewValidationError is a shorthand used by input checks.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AccountLockedError carries the time left until the lock expires.
type AccountLockedError struct {
	Remaining time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %d seconds", e.RemainingSeconds())
}

// Is lets errors.Is(err, ErrAccountLocked) match any *AccountLockedError.
func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// RemainingSeconds rounds up, so a lock that is still active never reports 0.
func (e *AccountLockedError) RemainingSeconds() int64 {
	if e.Remaining <= 0 {
		return 0
	}
	return int64(math.Ceil(e.Remaining.Seconds()))
}
