package store

import (
	"context"
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Connector attempts to open a connection to a key-value store.
// It returns either a usable store handle or a *Error with the code RetCConnection.
// The caller owns the returned handle and must close it.
type Connector func(ctx context.Context) (IStore, error)

// IStore is a scoped handle on a key-value store.
// All methods must return a *Error with the code RetCClosed once Close was called.
type IStore interface {
	// Set inserts or updates a key–value pair and returns once the store acknowledged the write.
	Set(ctx context.Context, key string, value []byte) (err error)
	// SetIfUnset inserts a key–value pair if the key does not exist.
	// The boolean return value indicates whether the value was written.
	SetIfUnset(ctx context.Context, key string, value []byte) (written bool, err error)
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(ctx context.Context, key string) (value []byte, loaded bool, err error)
	// Close releases the connection. Calling Close more than once is a no-op.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and optionally the underlying cause.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The underlying error, may be nil.
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("KVStoreError (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new KVStoreError with the given code and message that wraps err.
func WrapError(code RetCode, msg string, err error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

// ErrClosed is returned by every operation on a closed store handle.
var ErrClosed = NewError(RetCClosed, "store handle is closed")

// HasCode reports whether err is (or wraps) a *Error with the given code.
func HasCode(err error, code RetCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsConnectionError reports whether err means the store could not be reached.
func IsConnectionError(err error) bool {
	return HasCode(err, RetCConnection)
}

// IsClosedError reports whether err was caused by using a closed handle.
func IsClosedError(err error) bool {
	return HasCode(err, RetCClosed)
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the backend.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCConnection                          // 4: The store could not be reached.
	RetCClosed                              // 5: The handle was already closed.
)

// String returns the name of the return code
func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCConnection:
		return "Connection"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
