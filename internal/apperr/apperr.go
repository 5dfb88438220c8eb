// Package apperr is the error taxonomy shared by services and the HTTP layer.
//
// Validation, not-found, conflict and unauthorized errors carry a message that
// is safe to show to callers. Dependency errors keep the internal cause for
// logging only; Error() never renders it.
package apperr

import (
	"context"
	stderrors "errors"
	"fmt"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindUnauthorized      Kind = "unauthorized"
	KindDependencyFailure Kind = "dependency_failure"
	KindDependencyTimeout Kind = "dependency_timeout"
)

type Error struct {
	Kind    Kind
	Message string
	Field   string
	cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Unwrap exposes the internal cause to errors.Is/As. It is never part of Error().
func (e *Error) Unwrap() error { return e.cause }

func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// Dependency sanitizes a storage, cache or broker failure. A deadline hit is
// reported as KindDependencyTimeout.
func Dependency(op string, cause error) *Error {
	if stderrors.Is(cause, context.DeadlineExceeded) {
		return &Error{Kind: KindDependencyTimeout, Message: "upstream dependency timed out", cause: fmt.Errorf("%s: %w", op, cause)}
	}
	return &Error{Kind: KindDependencyFailure, Message: "internal server error", cause: fmt.Errorf("%s: %w", op, cause)}
}

// KindOf returns the kind of err, or KindDependencyFailure for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindDependencyFailure
}

func Is(err error, k Kind) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Kind == k
}

// Cause returns the internal cause for logging.
func Cause(err error) error {
	var e *Error
	if stderrors.As(err, &e) && e.cause != nil {
		return e.cause
	}
	return err
}
