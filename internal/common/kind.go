package common

import "errors"

// ErrorKind is the closed set of outcomes an auth operation can end with.
// Boundary code switches on it instead of matching error strings.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindValidation
	KindConflict
	KindInvalidCredentials
	KindAccountLocked
	KindTokenInvalid
	KindNotFound
	KindForbidden
	KindInternal
)

var kindNames = map[ErrorKind]string{
	KindNone:               "none",
	KindValidation:         "validation",
	KindConflict:           "conflict",
	KindInvalidCredentials: "invalid_credentials",
	KindAccountLocked:      "account_locked",
	KindTokenInvalid:       "token_invalid",
	KindNotFound:           "not_found",
	KindForbidden:          "forbidden",
	KindInternal:           "internal",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Kind classifies err. Anything outside the taxonomy is KindInternal.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrorValidation):
		return KindValidation
	case errors.Is(err, ErrorConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return KindAccountLocked
	case errors.Is(err, ErrTokenInvalid):
		return KindTokenInvalid
	case errors.Is(err, ErrorNotFound):
		return KindNotFound
	case errors.Is(err, ErrorForbidden):
		return KindForbidden
	default:
		return KindInternal
	}
}
