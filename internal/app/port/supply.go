package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// SupplyFetcher looks up the total bank supply of a denomination in base units.
type SupplyFetcher interface {
	GetSupply(ctx context.Context, denom string) (decimal.Decimal, error)
}
