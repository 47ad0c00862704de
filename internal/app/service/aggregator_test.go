package service

import (
	"testing"

	"ist_tvl/internal/domain/entity"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticPrices is a PriceLookup over a fixed table.
type staticPrices map[entity.CollateralType]entity.PriceQuote

func (s staticPrices) Price(symbol entity.CollateralType) (entity.PriceQuote, bool) {
	q, ok := s[symbol]
	return q, ok
}

func amounts(values ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}

var reservePSMVault = []entity.Category{entity.CategoryReserve, entity.CategoryPSM, entity.CategoryVault}

func TestAggregate_NativeCategories(t *testing.T) {
	a := NewAggregator(6, testLogger)
	res := a.Aggregate([]AmountGroup{
		{Category: entity.CategoryReserve, Amounts: amounts(1000000)},
		{Category: entity.CategoryPSM, Amounts: amounts(2000000)},
	}, nil, []entity.Category{entity.CategoryReserve, entity.CategoryPSM})

	assert.Equal(t, 3.0, res.Total)
	assert.Equal(t, 1.0, res.Subtotals[entity.CategoryReserve])
	assert.Equal(t, 2.0, res.Subtotals[entity.CategoryPSM])
	assert.Empty(t, res.Warnings)
}

func TestAggregate_VaultUnitMatching(t *testing.T) {
	a := NewAggregator(6, testLogger)
	prices := staticPrices{"atom": {Symbol: "atom", FeedID: "cosmos", USDPrice: 10, Available: true}}

	res := a.Aggregate([]AmountGroup{
		{Category: entity.CategoryVault, Collateral: "atom", Scale: decimal.New(1, 8), Amounts: amounts(500000000)},
	}, prices, reservePSMVault)

	// (500000000 / 1e8) * 10 = 50 USD, divided by the native scale.
	assert.InDelta(t, 0.00005, res.Subtotals[entity.CategoryVault], 1e-15)
	assert.InDelta(t, 0.00005, res.Total, 1e-15)
	require.Len(t, res.Collateral, 1)
	sub := res.Collateral[0]
	assert.Equal(t, "500000000", sub.RawLocked)
	assert.Equal(t, "100000000", sub.DecimalScale)
	assert.Equal(t, "cosmos", sub.FeedID)
	assert.True(t, sub.PriceFound)
	assert.Equal(t, 1, sub.VaultCount)
}

func TestAggregate_MissingPriceExcludedWithWarning(t *testing.T) {
	a := NewAggregator(6, testLogger)
	prices := staticPrices{
		"atom":    {Symbol: "atom", FeedID: "cosmos", USDPrice: 4, Available: true},
		"stkatom": {Symbol: "stkatom", FeedID: "stkatom"},
	}

	res := a.Aggregate([]AmountGroup{
		{Category: entity.CategoryReserve, Amounts: amounts(1000000)},
		{Category: entity.CategoryVault, Collateral: "stkatom", Amounts: amounts(7000000)},
		{Category: entity.CategoryVault, Collateral: "atom", Amounts: amounts(1000000, 2000000)},
	}, prices, reservePSMVault)

	// atom: 3000000 * 4 / 1e6 = 12 with scale 1.
	assert.InDelta(t, 12.0, res.Subtotals[entity.CategoryVault], 1e-9)
	assert.InDelta(t, 13.0, res.Total, 1e-9)
	assert.Equal(t, 0.0, res.Subtotals[entity.CategoryPSM])

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "stkatom", res.Warnings[0].Subject)
	require.Len(t, res.Collateral, 2)
	assert.Equal(t, entity.CollateralType("atom"), res.Collateral[0].Collateral)
	assert.Equal(t, 2, res.Collateral[0].VaultCount)
	assert.False(t, res.Collateral[1].PriceFound)
	assert.Equal(t, 0.0, res.Collateral[1].Value)
}

func TestAggregate_TotalCoversIncludedCategoriesOnly(t *testing.T) {
	a := NewAggregator(6, testLogger)
	groups := []AmountGroup{
		{Category: entity.CategoryReserve, Amounts: amounts(1000000)},
		{Category: entity.CategorySupply, Amounts: amounts(50000000)},
	}

	res := a.Aggregate(groups, nil, reservePSMVault)
	assert.Equal(t, 1.0, res.Total)
	assert.Equal(t, 50.0, res.Subtotals[entity.CategorySupply])

	res = a.Aggregate(groups, nil, []entity.Category{entity.CategorySupply})
	assert.Equal(t, 50.0, res.Total)
}

func TestAggregate_GroupsOfOneCollateralMerge(t *testing.T) {
	a := NewAggregator(6, testLogger)
	prices := staticPrices{"statom": {Symbol: "statom", USDPrice: 2, Available: true}}
	res := a.Aggregate([]AmountGroup{
		{Category: entity.CategoryVault, Collateral: "statom", Amounts: amounts(1000000)},
		{Category: entity.CategoryVault, Collateral: "statom", Amounts: amounts(4000000)},
	}, prices, []entity.Category{entity.CategoryVault})

	require.Len(t, res.Collateral, 1)
	assert.Equal(t, "5000000", res.Collateral[0].RawLocked)
	assert.InDelta(t, 10.0, res.Total, 1e-9)
}
