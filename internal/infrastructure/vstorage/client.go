package vstorage

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync/atomic"
	"time"

	"ist_tvl/internal/app/port"
	"ist_tvl/internal/domain/entity"
	"ist_tvl/internal/pkg/logger"
	"ist_tvl/internal/pkg/metrics"
	"ist_tvl/internal/pkg/utils"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Options configures a Client.
type Options struct {
	// Limiter spaces network calls. It may be shared by several clients; nil disables spacing.
	Limiter *rate.Limiter
	Retry   utils.RetryPolicy
	Logger  port.Logger
}

// Client answers vstorage queries. Results are memoized for the client's
// lifetime, so one Client should serve exactly one pipeline run.
type Client struct {
	transport Transport
	limiter   *rate.Limiter
	retry     utils.RetryPolicy
	cache     *cache.Cache
	logger    port.Logger

	calls    atomic.Int64
	hits     atomic.Int64
	notFound atomic.Int64
}

var _ port.StorageSession = (*Client)(nil)

// NewClient wraps transport with memoization, pacing and retries.
func NewClient(transport Transport, opts Options) *Client {
	c := &Client{
		transport: transport,
		limiter:   opts.Limiter,
		retry:     opts.Retry,
		cache:     cache.New(cache.NoExpiration, 0),
		logger:    opts.Logger,
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	if c.retry.Retryable == nil {
		c.retry.Retryable = entity.IsRetryable
	}
	onRetry := c.retry.OnRetry
	c.retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.StorageRetries.Inc()
		c.logger.Warn("Retrying vstorage query", "attempt", attempt, "delay", delay, "error", err)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}
	return c
}

// Query implements port.StorageQuerier.
func (c *Client) Query(ctx context.Context, q entity.StorageQuery) (entity.StorageNode, error) {
	key := q.CacheKey()
	if v, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		metrics.StorageQueries.WithLabelValues(string(q.Kind), "cache_hit").Inc()
		return v.(entity.StorageNode), nil
	}

	abciPath := q.ABCIPath()
	var raw string
	err := utils.Retry(ctx, c.retry, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		c.calls.Add(1)
		value, err := c.transport.ABCIQuery(ctx, abciPath)
		if err != nil {
			return err
		}
		raw = value
		return nil
	})
	if err != nil {
		metrics.StorageQueries.WithLabelValues(string(q.Kind), "transport_error").Inc()
		return entity.StorageNode{}, err
	}

	node, err := decodeNode(raw)
	if err != nil {
		metrics.StorageQueries.WithLabelValues(string(q.Kind), "decode_error").Inc()
		return entity.StorageNode{}, fmt.Errorf("%s: %w", abciPath, err)
	}
	if node.Missing(q.Kind) {
		c.notFound.Add(1)
		metrics.StorageQueries.WithLabelValues(string(q.Kind), "not_found").Inc()
		return entity.StorageNode{}, fmt.Errorf("%s: %w", q.Path, entity.ErrNotFound)
	}
	metrics.StorageQueries.WithLabelValues(string(q.Kind), "ok").Inc()

	// Concurrent misses on one key may both reach the network; the first stored answer wins.
	if err := c.cache.Add(key, node, cache.NoExpiration); err != nil {
		if v, ok := c.cache.Get(key); ok {
			return v.(entity.StorageNode), nil
		}
	}
	return node, nil
}

// Data reads the terminal value at path.
func (c *Client) Data(ctx context.Context, path entity.StoragePath) (string, error) {
	node, err := c.Query(ctx, entity.DataQuery(path))
	if err != nil {
		return "", err
	}
	return node.Value, nil
}

// Children lists the child segments at path.
func (c *Client) Children(ctx context.Context, path entity.StoragePath) ([]string, error) {
	node, err := c.Query(ctx, entity.ChildrenQuery(path))
	if err != nil {
		return nil, err
	}
	if !node.HasChildren() {
		return nil, fmt.Errorf("%s: %w", path, entity.ErrShape)
	}
	return node.Children, nil
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() entity.StorageStats {
	return entity.StorageStats{
		Calls:    c.calls.Load(),
		Hits:     c.hits.Load(),
		NotFound: c.notFound.Load(),
	}
}

// decodeNode turns a base64 abci value into a StorageNode. An empty value decodes to an empty node.
func decodeNode(raw string) (entity.StorageNode, error) {
	var node entity.StorageNode
	if raw == "" {
		return node, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return node, &entity.DecodeError{Stage: "abci value", Err: err}
	}
	if len(decoded) == 0 {
		return node, nil
	}
	if err := json.Unmarshal(decoded, &node); err != nil {
		return node, &entity.DecodeError{Stage: "abci value", Err: err}
	}
	return node, nil
}
