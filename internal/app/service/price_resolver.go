package service

import (
	"context"
	"strings"
	"sync/atomic"

	"ist_tvl/internal/app/port"
	"ist_tvl/internal/domain/entity"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// PriceResolver maps collateral types to price-feed ids and resolves their USD
// price at most once per resolver. One resolver serves one pipeline run.
type PriceResolver struct {
	oracle  port.PriceOracle
	mapping map[string]string
	cache   *cache.Cache
	group   singleflight.Group
	calls   atomic.Int64
	logger  port.Logger
}

var _ port.PriceLookup = (*PriceResolver)(nil)

// NewPriceResolver creates a resolver. mapping remaps on-chain symbols to feed
// ids; symbols absent from it are used as-is.
func NewPriceResolver(oracle port.PriceOracle, mapping map[string]string, logger port.Logger) *PriceResolver {
	m := make(map[string]string, len(mapping))
	for k, v := range mapping {
		m[strings.ToLower(k)] = v
	}
	return &PriceResolver{
		oracle:  oracle,
		mapping: m,
		cache:   cache.New(cache.NoExpiration, 0),
		logger:  logger,
	}
}

// FeedID returns the oracle id used for symbol.
func (r *PriceResolver) FeedID(symbol entity.CollateralType) string {
	key := strings.ToLower(string(symbol))
	if id, ok := r.mapping[key]; ok {
		return id
	}
	return key
}

// Resolve returns the price quote for symbol. An oracle failure or a missing
// price yields an unavailable quote, which is cached like any other.
func (r *PriceResolver) Resolve(ctx context.Context, symbol entity.CollateralType) entity.PriceQuote {
	if q, ok := r.Price(symbol); ok {
		return q
	}
	v, _, _ := r.group.Do(string(symbol), func() (any, error) {
		if q, ok := r.Price(symbol); ok {
			return q, nil
		}
		q := r.fetch(ctx, symbol)
		r.cache.Set(string(symbol), q, cache.NoExpiration)
		return q, nil
	})
	return v.(entity.PriceQuote)
}

func (r *PriceResolver) fetch(ctx context.Context, symbol entity.CollateralType) entity.PriceQuote {
	feedID := r.FeedID(symbol)
	quote := entity.PriceQuote{Symbol: symbol, FeedID: feedID}

	r.calls.Add(1)
	prices, err := r.oracle.GetUSDPrices(ctx, []string{feedID})
	if err != nil {
		r.logger.Warn("Price lookup failed", "symbol", symbol, "feed_id", feedID, "error", err)
		return quote
	}
	price, ok := prices[feedID]
	if !ok {
		r.logger.Warn("No price available", "symbol", symbol, "feed_id", feedID)
		return quote
	}
	quote.USDPrice = price
	quote.Available = true
	r.logger.Debug("Resolved price", "symbol", symbol, "feed_id", feedID, "usd", price)
	return quote
}

// ResolveAll resolves every symbol with at most limit concurrent lookups.
func (r *PriceResolver) ResolveAll(ctx context.Context, symbols []entity.CollateralType, limit int) map[entity.CollateralType]entity.PriceQuote {
	quotes := make([]entity.PriceQuote, len(symbols))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, symbol := range symbols {
		g.Go(func() error {
			quotes[i] = r.Resolve(ctx, symbol)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[entity.CollateralType]entity.PriceQuote, len(symbols))
	for i, symbol := range symbols {
		out[symbol] = quotes[i]
	}
	return out
}

// Price implements port.PriceLookup over already resolved quotes.
func (r *PriceResolver) Price(symbol entity.CollateralType) (entity.PriceQuote, bool) {
	v, ok := r.cache.Get(string(symbol))
	if !ok {
		return entity.PriceQuote{}, false
	}
	return v.(entity.PriceQuote), true
}

// Calls reports how many oracle requests the resolver made.
func (r *PriceResolver) Calls() int64 {
	return r.calls.Load()
}
