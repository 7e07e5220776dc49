package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure into one of the stable categories the
// API surface exposes. Every kind maps to exactly one error code.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindDatabase
	KindNotFound
	KindTransport
	KindConflict
)

// Code returns the stable string code for the kind.
func (k ErrorKind) Code() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindAuthentication:
		return "AUTHENTICATION_ERROR"
	case KindAuthorization:
		return "AUTHORIZATION_ERROR"
	case KindDatabase:
		return "DATABASE_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindTransport:
		return "TRANSPORT_ERROR"
	case KindConflict:
		return "CONFLICT"
	default:
		return "INTERNAL_ERROR"
	}
}

func (k ErrorKind) String() string { return k.Code() }

// Error is the typed failure carried across component boundaries.
// Status holds the numeric status observed from the data service when
// Kind is KindDatabase; it is preserved for diagnostics only and is
// never rendered into user-facing messages.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind.Code(), e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two *Error values by kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func Authenticationf(format string, args ...any) *Error {
	return newError(KindAuthentication, format, args...)
}

func Authorizationf(format string, args ...any) *Error {
	return newError(KindAuthorization, format, args...)
}

// Databasef records a non-success response from the query channel,
// preserving the numeric status.
func Databasef(status int, format string, args ...any) *Error {
	e := newError(KindDatabase, format, args...)
	e.Status = status
	return e
}

func NotFoundf(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func Transportf(err error, format string, args ...any) *Error {
	e := newError(KindTransport, format, args...)
	e.Err = err
	return e
}

func Conflictf(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

func Internalf(format string, args ...any) *Error {
	return newError(KindInternal, format, args...)
}

// KindOf extracts the kind from err, defaulting to KindInternal for
// errors that did not originate in this module.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsNotFound(err error) bool      { return KindOf(err) == KindNotFound }
func IsValidation(err error) bool    { return KindOf(err) == KindValidation }
func IsTransport(err error) bool     { return KindOf(err) == KindTransport }
func IsAuthorization(err error) bool { return KindOf(err) == KindAuthorization }
