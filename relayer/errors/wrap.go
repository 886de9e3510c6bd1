package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WrapRelay wraps an error as a RelayError if it isn't already one. An
// existing RelayError keeps its code; the new message is recorded as context.
func WrapRelay(err error, code ErrorCode, message string) *RelayError {
	if err == nil {
		return nil
	}

	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		relayErr.Context["wrapped_message"] = message
		return relayErr
	}

	return New(code, message).WithCause(err)
}

// Is reports whether any error in err's chain matches target
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// HasCode checks if an error is a RelayError with the given code
func HasCode(err error, code ErrorCode) bool {
	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		return relayErr.Code == code
	}
	return false
}

// CodeOf returns the taxonomy code of an error, or ErrCodeInternal for
// untyped errors.
func CodeOf(err error) ErrorCode {
	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		return relayErr.Code
	}
	return ErrCodeInternal
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		return relayErr.IsRetryable()
	}

	// Untyped errors from the HTTP client: fall back to message patterns.
	msg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"too many requests",
		"rate limit",
		"status 5",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
