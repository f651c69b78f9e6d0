package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error
// chain. If err is already an *Error its code and category carry over.
// Context deadline and cancellation errors map to TIMEOUT and CANCELED.
// If err is nil, Wrap returns nil.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		wrapped := &Error{
			code:      typed.code,
			category:  typed.category,
			message:   message,
			cause:     err,
			metadata:  typed.Metadata(),
			timestamp: typed.timestamp,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(CodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(CodeCanceled, message, append(opts, WithCause(err))...)
	}

	return New(CodeInternal, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error under a specific code, discarding any code the
// chain already carries. Used at component boundaries to convert collaborator
// failures into the public taxonomy.
func WrapWithCode(err error, code Code, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	// Deadline and cancellation keep their own codes so callers can tell a
	// slow collaborator from a broken one.
	if errors.Is(err, context.DeadlineExceeded) {
		return New(CodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(CodeCanceled, message, append(opts, WithCause(err))...)
	}
	return New(code, message, append(opts, WithCause(err))...)
}

// Is reports whether any error in the chain carries the given code.
func Is(err error, code Code) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in the chain, or CodeInternal
// for untyped errors.
func CodeOf(err error) Code {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.code
	}
	return CodeInternal
}

// MessageOf returns the first typed error's message without its cause chain,
// or "" for untyped errors. Transport boundaries use it to keep wrap context
// out of user-facing responses.
func MessageOf(err error) string {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.message
	}
	return ""
}

// IsRetryable reports whether the error is retryable. Untyped errors are not.
func IsRetryable(err error) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Retryable()
	}
	return false
}
