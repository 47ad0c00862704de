// Package vstorage queries the Agoric vstorage module over CometBFT abci_query.
package vstorage

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"ist_tvl/internal/domain/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const abciQueryMethod = "abci_query"

// Transport performs one abci_query and returns the base64 response value.
// An empty string means the node answered without a value.
type Transport interface {
	ABCIQuery(ctx context.Context, path string) (string, error)
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      uint64            `json:"id"`
	Method  string            `json:"method"`
	Params  map[string]string `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// abciQueryResult is the "result" member of an abci_query response.
type abciQueryResult struct {
	Response struct {
		Code   uint32 `json:"code"`
		Log    string `json:"log"`
		Value  string `json:"value"`
		Height string `json:"height"`
	} `json:"response"`
}

type rpcResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	Result  *abciQueryResult `json:"result"`
	Error   *rpcError        `json:"error"`
}

// HTTPTransport posts JSON-RPC requests to a CometBFT endpoint with fasthttp.
type HTTPTransport struct {
	client  *fasthttp.Client
	url     string
	timeout time.Duration
	logger  *zap.Logger
	nextID  atomic.Uint64
}

// NewHTTPTransport creates a transport for the RPC endpoint at url.
func NewHTTPTransport(url string, timeout time.Duration, logger *zap.Logger) *HTTPTransport {
	return &HTTPTransport{
		client: &fasthttp.Client{
			Name:                "ist-tvl",
			MaxIdleConnDuration: 30 * time.Second,
		},
		url:     strings.TrimRight(url, "/") + "/",
		timeout: timeout,
		logger:  logger.Named("VStorageHTTP"),
	}
}

// ABCIQuery implements Transport.
func (t *HTTPTransport) ABCIQuery(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      t.nextID.Add(1),
		Method:  abciQueryMethod,
		Params:  map[string]string{"path": path},
	})
	if err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(t.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline := time.Now().Add(t.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := t.client.DoDeadline(req, resp, deadline); err != nil {
		t.logger.Debug("abci_query request failed", zap.String("path", path), zap.Error(err))
		return "", &entity.TransportError{Op: abciQueryMethod, Path: path, Err: err}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		t.logger.Debug("abci_query returned non-200 status",
			zap.String("path", path),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", resp.Body()))
		return "", &entity.TransportError{
			Op:         abciQueryMethod,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Err:        errUnexpectedStatus,
		}
	}

	var decoded rpcResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return "", &entity.TransportError{Op: abciQueryMethod, Path: path, StatusCode: resp.StatusCode(), Err: err}
	}
	return resultValue(path, decoded.Result, decoded.Error)
}

// resultValue extracts the response value shared by both transports.
func resultValue(path string, result *abciQueryResult, rpcErr *rpcError) (string, error) {
	if rpcErr != nil {
		return "", &entity.TransportError{Op: abciQueryMethod, Path: path, Err: &RPCError{Code: rpcErr.Code, Message: rpcErr.Message, Data: rpcErr.Data}}
	}
	if result == nil {
		return "", &entity.TransportError{Op: abciQueryMethod, Path: path, Err: errMissingResult}
	}
	if result.Response.Code != 0 {
		return "", &entity.TransportError{
			Op:   abciQueryMethod,
			Path: path,
			Code: result.Response.Code,
			Err:  &ABCIError{Code: result.Response.Code, Log: result.Response.Log},
		}
	}
	return result.Response.Value, nil
}
