// Package errors provides the ledger's coded error type and helpers for categorizing errors.
package errors

import (
	"context"
	"errors"
)

// IsRetryableError determines if an error is transient and the call may be retried
// against the same or another replica.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_SERVICE_UNAVAILABLE,
			ERR_SHARD_UNAVAILABLE,
			ERR_TIMEOUT:
			return true
		}
	}

	return false
}

// IsContextError determines if an error is related to context cancellation or deadline.
func IsContextError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_CONTEXT_CANCELED, ERR_CONTEXT, ERR_TIMEOUT:
			return true
		}
	}

	return false
}

// FromContext converts a done context into a coded error.
func FromContext(ctx context.Context, message string, params ...interface{}) error {
	err := ctx.Err()

	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError(message, append(params, err)...)
	case errors.Is(err, context.Canceled):
		return NewContextCanceledError(message, append(params, err)...)
	default:
		return NewContextError(message, append(params, err)...)
	}
}
