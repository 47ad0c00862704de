package vstorage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ist_tvl/internal/domain/entity"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// RPCTransport sends abci_query through the go-ethereum JSON-RPC client.
// CometBFT accepts positional params in the order path, data, height, prove.
type RPCTransport struct {
	client  *rpc.Client
	timeout time.Duration
	logger  *zap.Logger
}

// DialRPCTransport connects to the RPC endpoint at url.
func DialRPCTransport(ctx context.Context, url string, timeout time.Duration, logger *zap.Logger) (*RPCTransport, error) {
	httpClient := &http.Client{Timeout: timeout}
	client, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to dial vstorage rpc %s: %w", url, err)
	}
	return &RPCTransport{client: client, timeout: timeout, logger: logger.Named("VStorageRPC")}, nil
}

// ABCIQuery implements Transport.
func (t *RPCTransport) ABCIQuery(ctx context.Context, path string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var result *abciQueryResult
	err := t.client.CallContext(callCtx, &result, abciQueryMethod, path, "", "0", false)
	if err != nil {
		t.logger.Debug("abci_query call failed", zap.String("path", path), zap.Error(err))
		return "", classifyRPCError(path, err)
	}
	return resultValue(path, result, nil)
}

// Close releases the underlying client.
func (t *RPCTransport) Close() {
	t.client.Close()
}

func classifyRPCError(path string, err error) error {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return &entity.TransportError{Op: abciQueryMethod, Path: path, StatusCode: httpErr.StatusCode, Err: err}
	}
	var jsonErr rpc.Error
	if errors.As(err, &jsonErr) {
		rpcErr := &RPCError{Code: jsonErr.ErrorCode(), Message: jsonErr.Error()}
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) {
			if data, ok := dataErr.ErrorData().(string); ok {
				rpcErr.Data = data
			}
		}
		return &entity.TransportError{Op: abciQueryMethod, Path: path, Err: rpcErr}
	}
	return &entity.TransportError{Op: abciQueryMethod, Path: path, Err: err}
}
