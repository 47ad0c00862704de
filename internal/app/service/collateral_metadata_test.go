package service

import (
	"context"
	"errors"
	"testing"

	"ist_tvl/internal/config"
	"ist_tvl/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vbankPath = entity.StoragePath("published.agoricNames.vbankAsset")

func vbankCell(t *testing.T) string {
	t.Helper()
	return cell(t, `[["ibc/BA31",{"brand":"$0.Alleged: ATOM brand","denom":"ibc/BA31","displayInfo":{"assetKind":"nat","decimalPlaces":6},"issuerName":"ATOM","proposedName":"ATOM"}],`+
		`["ibc/WBTC",{"brand":"$1.Alleged: WBTC brand","denom":"ibc/WBTC","displayInfo":{"assetKind":"nat","decimalPlaces":8},"issuerName":"WBTC","proposedName":"WBTC"}],`+
		`["ubld",{"brand":"$2.Alleged: BLD brand","denom":"ubld","displayInfo":{"assetKind":"nat"},"issuerName":"BLD"}]]`)
}

func TestCollateralMetadata_OverridesWin(t *testing.T) {
	fs := newFakeStorage().setData(vbankPath, vbankCell(t))
	m := NewCollateralMetadata(fs, config.CollateralConfig{
		Decimals:       map[string]int{"ATOM": 8},
		VbankAssetPath: string(vbankPath),
		UseVbankAsset:  true,
	}, testLogger)

	scales, err := m.Scales(context.Background(), []entity.CollateralType{"atom", "wbtc", "bld", "statom"})
	require.NoError(t, err)
	assert.Equal(t, "100000000", scales["atom"].String())
	assert.Equal(t, "100000000", scales["wbtc"].String())
	assert.Equal(t, "1", scales["bld"].String())
	assert.Equal(t, "1", scales["statom"].String())
}

func TestCollateralMetadata_RegistryOptIn(t *testing.T) {
	fs := newFakeStorage().setData(vbankPath, vbankCell(t))
	m := NewCollateralMetadata(fs, config.CollateralConfig{VbankAssetPath: string(vbankPath)}, testLogger)

	scales, err := m.Scales(context.Background(), []entity.CollateralType{"atom"})
	require.NoError(t, err)
	assert.Equal(t, "1", scales["atom"].String())
	assert.Equal(t, int64(0), fs.total.Load())
}

func TestCollateralMetadata_RegistryNotNeededWhenAllOverridden(t *testing.T) {
	fs := newFakeStorage()
	m := NewCollateralMetadata(fs, config.CollateralConfig{
		Decimals:       map[string]int{"atom": 6},
		VbankAssetPath: string(vbankPath),
		UseVbankAsset:  true,
	}, testLogger)

	_, err := m.Scales(context.Background(), []entity.CollateralType{"atom"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), fs.total.Load())
}

func TestCollateralMetadata_RegistryFailureFallsBack(t *testing.T) {
	fs := newFakeStorage().fail(entity.DataQuery(vbankPath), &entity.TransportError{Op: "abci_query", Err: errors.New("down")})
	m := NewCollateralMetadata(fs, config.CollateralConfig{VbankAssetPath: string(vbankPath), UseVbankAsset: true}, testLogger)

	scales, err := m.Scales(context.Background(), []entity.CollateralType{"atom"})
	assert.Error(t, err)
	assert.Equal(t, "1", scales["atom"].String())
}
