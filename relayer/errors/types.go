// Package errors defines the typed error taxonomy used across the relayer
// pipeline and the retry helpers built on top of it.
package errors

import (
	"fmt"
)

// ErrorCode represents different categories of errors
type ErrorCode string

const (
	// ErrCodeRPC indicates transient chain or venue RPC failures
	ErrCodeRPC ErrorCode = "RPC"

	// ErrCodeTimeout indicates a bounded wait that expired, such as a
	// confirmation wait after a send
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeLiquidity indicates a swap precondition failure (amount out of
	// band or exceeding the allowed pool share)
	ErrCodeLiquidity ErrorCode = "LIQUIDITY"

	// ErrCodeInsufficientBalance indicates the wallet cannot cover a send
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"

	// ErrCodeParse indicates a malformed candidate transaction or body
	ErrCodeParse ErrorCode = "PARSE"

	// ErrCodeWalletInit indicates wallet initialization failure
	ErrCodeWalletInit ErrorCode = "WALLET_INIT"

	// ErrCodeDatabase indicates ledger operation errors
	ErrCodeDatabase ErrorCode = "DATABASE"

	// ErrCodeConfig indicates configuration errors
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeInternal indicates internal errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// RelayError is the error type carried across component boundaries. It pins
// the failure to a taxonomy code so callers can route on it (retry, refund,
// or terminal-fail) without string matching.
type RelayError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	TxRef   string                 `json:"tx_ref,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// New creates a new RelayError
func New(code ErrorCode, message string) *RelayError {
	return &RelayError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// Newf creates a new RelayError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *RelayError {
	return New(code, fmt.Sprintf(format, args...))
}

// Error implements the error interface
func (e *RelayError) Error() string {
	if e.TxRef != "" {
		return fmt.Sprintf("[%s] %s (tx %s)", e.Code, e.Message, e.TxRef)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *RelayError) Unwrap() error {
	return e.Cause
}

// WithCause attaches the underlying error
func (e *RelayError) WithCause(cause error) *RelayError {
	e.Cause = cause
	return e
}

// WithTxRef pins the error to a specific transaction record
func (e *RelayError) WithTxRef(ref string) *RelayError {
	e.TxRef = ref
	return e
}

// WithContext adds context to the error
func (e *RelayError) WithContext(key string, value interface{}) *RelayError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable returns true if the error class is worth retrying at the call
// site. Liquidity and balance failures are deterministic and must be routed
// to the refund path instead.
func (e *RelayError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeRPC, ErrCodeTimeout:
		return true
	default:
		return false
	}
}
