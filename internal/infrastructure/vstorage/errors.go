package vstorage

import (
	"errors"
	"fmt"
)

var (
	errUnexpectedStatus = errors.New("unexpected HTTP status")
	errMissingResult    = errors.New("response has neither result nor error")
)

// RPCError is a JSON-RPC level error returned by the node.
type RPCError struct {
	Code    int
	Message string
	Data    string
}

func (e *RPCError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ABCIError is a non-zero response code from the vstorage query handler.
type ABCIError struct {
	Code uint32
	Log  string
}

func (e *ABCIError) Error() string {
	return fmt.Sprintf("abci code %d: %s", e.Code, e.Log)
}
