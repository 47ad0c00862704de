package entity

import (
	"errors"
	"fmt"
)

// ErrNotFound means vstorage holds nothing at the queried path.
// It is an expected outcome and terminates index probing.
var ErrNotFound = errors.New("vstorage: no value at path")

// ErrShape means a node was found but does not have the shape the caller needs,
// e.g. a children query answered with a terminal value.
var ErrShape = errors.New("vstorage: unexpected node shape")

// TransportError wraps a network, HTTP or JSON-RPC failure.
type TransportError struct {
	Op         string
	Path       string
	StatusCode int
	// Code is a non-zero ABCI response code reported by the node.
	Code uint32
	Err  error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the call may succeed.
// ABCI errors and client-side HTTP errors other than 429 are not retried.
func (e *TransportError) Temporary() bool {
	if e.Code != 0 {
		return false
	}
	if e.StatusCode == 0 || e.StatusCode == 429 {
		return true
	}
	return e.StatusCode >= 500
}

// DecodeError wraps a failure at one stage of payload decoding.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether err is a temporary TransportError.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Temporary()
	}
	return false
}
