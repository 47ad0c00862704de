package httpclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ist_tvl/internal/app/port"
	"ist_tvl/internal/pkg/metrics"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CoinGeckoClient fetches USD prices from the CoinGecko simple/price endpoint.
type CoinGeckoClient struct {
	client     *fasthttp.Client
	baseURL    string
	apiKey     string
	vsCurrency string
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *zap.Logger
}

var _ port.PriceOracle = (*CoinGeckoClient)(nil)

// CoinGeckoOptions configures NewCoinGeckoClient.
type CoinGeckoOptions struct {
	BaseURL    string
	APIKey     string
	VsCurrency string
	Timeout    time.Duration
	// Limiter spaces requests; nil disables spacing.
	Limiter *rate.Limiter
}

// NewCoinGeckoClient creates a new CoinGecko price oracle.
func NewCoinGeckoClient(opts CoinGeckoOptions, logger *zap.Logger) *CoinGeckoClient {
	vs := strings.ToLower(opts.VsCurrency)
	if vs == "" {
		vs = "usd"
	}
	return &CoinGeckoClient{
		client:     &fasthttp.Client{Name: "ist-tvl"},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		vsCurrency: vs,
		timeout:    opts.Timeout,
		limiter:    opts.Limiter,
		logger:     logger.Named("CoinGeckoClient"),
	}
}

// GetUSDPrices implements port.PriceOracle. Ids CoinGecko does not know are
// absent from the result.
func (c *CoinGeckoClient) GetUSDPrices(ctx context.Context, feedIDs []string) (map[string]float64, error) {
	if len(feedIDs) == 0 {
		return map[string]float64{}, nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	query := url.Values{}
	query.Set("ids", strings.Join(feedIDs, ","))
	query.Set("vs_currencies", c.vsCurrency)
	requestURL := c.baseURL + "/simple/price?" + query.Encode()

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-pro-api-key", c.apiKey)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	c.logger.Debug("Requesting prices from CoinGecko", zap.Strings("ids", feedIDs))
	if err := doWithContext(ctx, c.client, req, resp, c.timeout); err != nil {
		metrics.OracleRequests.WithLabelValues("error").Inc()
		c.logger.Error("Failed to execute request to CoinGecko", zap.String("url", requestURL), zap.Error(err))
		return nil, fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
	}

	rawBody := resp.Body()
	if resp.StatusCode() != fasthttp.StatusOK {
		metrics.OracleRequests.WithLabelValues("error").Inc()
		c.logger.Error("CoinGecko API request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", rawBody))
		return nil, fmt.Errorf("CoinGecko API request to %s failed with status %d", requestURL, resp.StatusCode())
	}

	var payload map[string]map[string]float64
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		metrics.OracleRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to unmarshal CoinGecko response from %s: %w", requestURL, err)
	}

	prices := make(map[string]float64, len(feedIDs))
	for _, id := range feedIDs {
		quotes, ok := payload[id]
		if !ok {
			continue
		}
		if usd, ok := quotes[c.vsCurrency]; ok {
			prices[id] = usd
		}
	}
	if len(prices) < len(feedIDs) {
		metrics.OracleRequests.WithLabelValues("missing").Inc()
	} else {
		metrics.OracleRequests.WithLabelValues("ok").Inc()
	}
	return prices, nil
}

// doWithContext runs req with the earlier of the context deadline and now+timeout.
func doWithContext(ctx context.Context, client *fasthttp.Client, req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	return client.DoDeadline(req, resp, deadline)
}
