package port

import (
	"context"

	"ist_tvl/internal/domain/entity"
)

// PriceOracle fetches USD prices keyed by price-feed id.
// A feed id missing from the returned map has no price; that is not an error.
type PriceOracle interface {
	GetUSDPrices(ctx context.Context, feedIDs []string) (map[string]float64, error)
}

// PriceLookup exposes prices already resolved during a run.
type PriceLookup interface {
	Price(symbol entity.CollateralType) (entity.PriceQuote, bool)
}
