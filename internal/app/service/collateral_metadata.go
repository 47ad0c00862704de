package service

import (
	"context"
	"fmt"
	"strings"

	"ist_tvl/internal/app/port"
	"ist_tvl/internal/config"
	"ist_tvl/internal/domain/entity"
	"ist_tvl/internal/pkg/capdata"
	"ist_tvl/internal/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

// CollateralMetadata supplies the decimal divisor of each collateral type.
// Configured decimals win; otherwise the vbank asset registry is consulted
// when enabled; otherwise the divisor is 1.
type CollateralMetadata struct {
	storage   port.StorageQuerier
	overrides map[entity.CollateralType]int
	vbankPath entity.StoragePath
	useVbank  bool
	logger    port.Logger
}

// NewCollateralMetadata creates a metadata source from the collateral config.
func NewCollateralMetadata(storage port.StorageQuerier, cfg config.CollateralConfig, logger port.Logger) *CollateralMetadata {
	overrides := make(map[entity.CollateralType]int, len(cfg.Decimals))
	for symbol, places := range cfg.Decimals {
		overrides[entity.CollateralType(strings.ToLower(symbol))] = places
	}
	return &CollateralMetadata{
		storage:   storage,
		overrides: overrides,
		vbankPath: entity.StoragePath(cfg.VbankAssetPath),
		useVbank:  cfg.UseVbankAsset,
		logger:    logger,
	}
}

// Scales returns a divisor for every type. A registry failure is returned
// alongside the scales, which then fall back to 1 where no override exists.
func (m *CollateralMetadata) Scales(ctx context.Context, types []entity.CollateralType) (map[entity.CollateralType]decimal.Decimal, error) {
	var registry map[entity.CollateralType]int
	var registryErr error
	if m.useVbank && m.needsRegistry(types) {
		registry, registryErr = m.loadVbankAssets(ctx)
		if registryErr != nil {
			m.logger.Warn("Failed to load vbank asset registry", "path", m.vbankPath, "error", registryErr)
		}
	}

	scales := make(map[entity.CollateralType]decimal.Decimal, len(types))
	for _, ct := range types {
		if places, ok := m.overrides[ct]; ok {
			scales[ct] = utils.Pow10(places)
			continue
		}
		if places, ok := registry[ct]; ok {
			scales[ct] = utils.Pow10(places)
			continue
		}
		scales[ct] = decimal.NewFromInt(1)
	}
	return scales, registryErr
}

func (m *CollateralMetadata) needsRegistry(types []entity.CollateralType) bool {
	for _, ct := range types {
		if _, ok := m.overrides[ct]; !ok {
			return true
		}
	}
	return false
}

// loadVbankAssets reads the registry, whose body is a list of [denom, info] pairs.
func (m *CollateralMetadata) loadVbankAssets(ctx context.Context) (map[entity.CollateralType]int, error) {
	node, err := m.storage.Query(ctx, entity.DataQuery(m.vbankPath))
	if err != nil {
		return nil, err
	}
	records, err := capdata.Decode(node.Value)
	if err != nil {
		return nil, err
	}
	rec, ok := capdata.Latest(records)
	if !ok {
		return nil, fmt.Errorf("%s: %w", m.vbankPath, entity.ErrNotFound)
	}

	var entries [][]jsoniter.RawMessage
	if err := rec.Unmarshal(&entries); err != nil {
		return nil, err
	}

	decimals := make(map[entity.CollateralType]int, len(entries))
	for _, entry := range entries {
		if len(entry) != 2 {
			continue
		}
		var info entity.VbankAssetInfo
		if err := jsoniter.Unmarshal(entry[1], &info); err != nil {
			m.logger.Debug("Skipping unreadable vbank asset entry", "error", err)
			continue
		}
		if info.DisplayInfo.DecimalPlaces == nil {
			continue
		}
		key := entity.CollateralType(strings.ToLower(info.IssuerName))
		if key == "" {
			ct, ok := rec.CollateralType(info.Brand)
			if !ok {
				continue
			}
			key = ct
		}
		decimals[key] = *info.DisplayInfo.DecimalPlaces
	}
	m.logger.Debug("Loaded vbank asset registry", "assets", len(decimals))
	return decimals, nil
}
