package service

import (
	"fmt"
	"slices"

	"ist_tvl/internal/app/port"
	"ist_tvl/internal/domain/entity"
	"ist_tvl/internal/pkg/utils"

	"github.com/shopspring/decimal"
)

// AmountGroup is a set of raw on-chain amounts of one category. Vault groups
// also carry their collateral type and its decimal divisor.
type AmountGroup struct {
	Category   entity.Category
	Collateral entity.CollateralType
	Scale      decimal.Decimal
	Amounts    []decimal.Decimal
}

// AggregateResult is the fold of every group.
type AggregateResult struct {
	Subtotals  map[entity.Category]float64
	Total      float64
	Collateral []entity.CollateralSubtotal
	Warnings   []entity.Warning
}

// Aggregator folds raw amounts into per-category subtotals expressed in native units.
type Aggregator struct {
	nativeScale decimal.Decimal
	logger      port.Logger
}

// NewAggregator creates an Aggregator for a native unit with nativeDecimals places.
func NewAggregator(nativeDecimals int, logger port.Logger) *Aggregator {
	return &Aggregator{nativeScale: utils.Pow10(nativeDecimals), logger: logger}
}

type vaultAccumulator struct {
	raw   decimal.Decimal
	scale decimal.Decimal
	count int
}

// Aggregate sums the groups. Reserve, PSM and supply amounts are divided by the
// native scale. Vault amounts are summed per collateral type, divided by that
// type's scale, priced in USD and divided by the native scale. A collateral type
// without an available price contributes nothing and yields a warning. Total
// covers the include categories only.
func (a *Aggregator) Aggregate(groups []AmountGroup, prices port.PriceLookup, include []entity.Category) AggregateResult {
	sums := make(map[entity.Category]decimal.Decimal)
	vaults := make(map[entity.CollateralType]*vaultAccumulator)
	var order []entity.CollateralType

	for _, g := range groups {
		raw := decimal.Sum(decimal.Zero, g.Amounts...)
		if g.Category != entity.CategoryVault {
			sums[g.Category] = sums[g.Category].Add(utils.Descale(raw, a.nativeScale))
			continue
		}
		key := g.Collateral
		acc, ok := vaults[key]
		if !ok {
			acc = &vaultAccumulator{raw: decimal.Zero, scale: g.Scale}
			vaults[key] = acc
			order = append(order, key)
		}
		acc.raw = acc.raw.Add(raw)
		acc.count += len(g.Amounts)
		if acc.scale.IsZero() {
			acc.scale = g.Scale
		}
	}

	result := AggregateResult{Subtotals: make(map[entity.Category]float64)}
	if len(vaults) > 0 {
		sums[entity.CategoryVault] = decimal.Zero
	}
	slices.Sort(order)
	for _, key := range order {
		acc := vaults[key]
		scale := acc.scale
		if scale.IsZero() {
			scale = decimal.NewFromInt(1)
		}
		sub := entity.CollateralSubtotal{
			Collateral:   key,
			RawLocked:    acc.raw.String(),
			DecimalScale: scale.String(),
			VaultCount:   acc.count,
		}

		var quote entity.PriceQuote
		var found bool
		if prices != nil {
			quote, found = prices.Price(key)
		}
		sub.FeedID = quote.FeedID
		if !found || !quote.Available {
			result.Warnings = append(result.Warnings, entity.Warning{
				Category: entity.CategoryVault,
				Subject:  string(key),
				Message:  fmt.Sprintf("no USD price for %s; %s locked excluded", key, acc.raw.String()),
			})
			result.Collateral = append(result.Collateral, sub)
			continue
		}

		value := utils.Descale(acc.raw, scale).
			Mul(decimal.NewFromFloat(quote.USDPrice)).
			Div(a.nativeScale)
		sums[entity.CategoryVault] = sums[entity.CategoryVault].Add(value)
		sub.PriceUSD = quote.USDPrice
		sub.PriceFound = true
		sub.Value = value.InexactFloat64()
		result.Collateral = append(result.Collateral, sub)
	}

	total := decimal.Zero
	for _, c := range include {
		sum, ok := sums[c]
		if !ok {
			sum = decimal.Zero
			sums[c] = sum
		}
		total = total.Add(sum)
	}
	for c, sum := range sums {
		result.Subtotals[c] = sum.InexactFloat64()
	}
	result.Total = total.InexactFloat64()
	a.logger.Debug("Aggregated TVL", "total", result.Total, "subtotals", result.Subtotals, "collateral_types", len(order))
	return result
}
