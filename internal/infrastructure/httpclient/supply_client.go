package httpclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ist_tvl/internal/app/port"
	"ist_tvl/internal/domain/entity"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// SupplyClient reads bank supply from a Cosmos SDK REST (LCD) endpoint.
type SupplyClient struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

var _ port.SupplyFetcher = (*SupplyClient)(nil)

type supplyByDenomResponse struct {
	Amount struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"amount"`
}

// NewSupplyClient creates a client for the REST endpoint at baseURL.
func NewSupplyClient(baseURL string, timeout time.Duration, logger *zap.Logger) *SupplyClient {
	return &SupplyClient{
		client:  &fasthttp.Client{Name: "ist-tvl"},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.Named("SupplyClient"),
	}
}

// GetSupply implements port.SupplyFetcher.
func (c *SupplyClient) GetSupply(ctx context.Context, denom string) (decimal.Decimal, error) {
	requestURL := c.baseURL + "/cosmos/bank/v1beta1/supply/by_denom?denom=" + url.QueryEscape(denom)

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := doWithContext(ctx, c.client, req, resp, c.timeout); err != nil {
		c.logger.Error("Failed to execute supply request", zap.String("url", requestURL), zap.Error(err))
		return decimal.Zero, &entity.TransportError{Op: "supply", Path: denom, Err: err}
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("Supply request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", resp.Body()))
		return decimal.Zero, &entity.TransportError{Op: "supply", Path: denom, StatusCode: resp.StatusCode(), Err: fmt.Errorf("unexpected status")}
	}

	var payload supplyByDenomResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return decimal.Zero, &entity.DecodeError{Stage: "supply", Err: err}
	}
	amount, err := entity.ParseAmountValue(payload.Amount.Amount)
	if err != nil {
		return decimal.Zero, &entity.DecodeError{Stage: "supply", Err: err}
	}
	c.logger.Debug("Fetched bank supply", zap.String("denom", denom), zap.String("amount", amount.String()))
	return amount, nil
}
