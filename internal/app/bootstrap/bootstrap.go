// Package bootstrap wires the TVL pipeline from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"ist_tvl/internal/app/port"
	"ist_tvl/internal/app/service"
	"ist_tvl/internal/config"
	"ist_tvl/internal/domain/entity"
	"ist_tvl/internal/infrastructure/feedloader"
	"ist_tvl/internal/infrastructure/httpclient"
	"ist_tvl/internal/infrastructure/vstorage"
	"ist_tvl/internal/pkg/utils"

	"go.uber.org/zap"
)

// Pipeline is a wired pipeline plus the resources it holds.
type Pipeline struct {
	*service.TVLPipeline
	close func()
}

// Close releases transport resources.
func (p *Pipeline) Close() {
	if p.close != nil {
		p.close()
	}
}

// NewTransport builds the configured vstorage transport.
func NewTransport(ctx context.Context, cfg config.VStorageConfig, zl *zap.Logger) (vstorage.Transport, func(), error) {
	switch cfg.Transport {
	case config.TransportRPC:
		t, err := vstorage.DialRPCTransport(ctx, cfg.RPCURL, cfg.RequestTimeout(), zl)
		if err != nil {
			return nil, nil, err
		}
		return t, t.Close, nil
	case config.TransportHTTP, "":
		return vstorage.NewHTTPTransport(cfg.RPCURL, cfg.RequestTimeout(), zl), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown vstorage transport %q", cfg.Transport)
	}
}

// NewPipeline wires transports, clients and the pipeline. The rate limiters
// are created once here and shared by every run.
func NewPipeline(ctx context.Context, cfg *config.Config, zl *zap.Logger, logger port.Logger) (*Pipeline, error) {
	cfg, err := withFeedFiles(cfg, logger)
	if err != nil {
		return nil, err
	}

	transport, closeTransport, err := NewTransport(ctx, cfg.VStorage, zl)
	if err != nil {
		return nil, err
	}

	storageLimiter := utils.NewLimiter(cfg.VStorage.MinCallDelay())
	retry := utils.RetryPolicy{
		MaxRetries: cfg.VStorage.MaxRetries,
		BaseDelay:  cfg.VStorage.RetryBaseDelay(),
		MaxDelay:   cfg.VStorage.RetryMaxDelay(),
	}
	newStorage := func() port.StorageSession {
		return vstorage.NewClient(transport, vstorage.Options{
			Limiter: storageLimiter,
			Retry:   retry,
			Logger:  logger,
		})
	}

	oracle := httpclient.NewCoinGeckoClient(httpclient.CoinGeckoOptions{
		BaseURL:    cfg.CoinGecko.BaseURL,
		APIKey:     cfg.CoinGecko.APIKey,
		VsCurrency: cfg.CoinGecko.VsCurrency,
		Timeout:    cfg.CoinGecko.RequestTimeout(),
		Limiter:    utils.NewLimiter(cfg.CoinGecko.MinCallDelay()),
	}, zl)

	var supply port.SupplyFetcher
	categories, err := cfg.TVLCategories()
	if err != nil {
		closeTransport()
		return nil, err
	}
	if slices.Contains(categories, entity.CategorySupply) {
		supply = httpclient.NewSupplyClient(cfg.Supply.RESTURL, cfg.Supply.RequestTimeout(), zl)
	}

	pipeline, err := service.NewTVLPipeline(cfg, newStorage, oracle, supply, logger)
	if err != nil {
		closeTransport()
		return nil, err
	}
	logger.Info("TVL pipeline initialized",
		"transport", cfg.VStorage.Transport,
		"rpc_url", cfg.VStorage.RPCURL,
		"categories", categories,
		"min_call_delay", cfg.VStorage.MinCallDelay())
	return &Pipeline{TVLPipeline: pipeline, close: closeTransport}, nil
}

// withFeedFiles returns a copy of cfg whose symbol mapping is extended, and
// overridden, by the files under coinGecko.mappingDir.
func withFeedFiles(cfg *config.Config, logger port.Logger) (*config.Config, error) {
	if cfg.CoinGecko.MappingDir == "" {
		return cfg, nil
	}
	fromFiles, err := feedloader.NewFeedLoader(cfg.CoinGecko.MappingDir, logger).Load()
	if err != nil {
		return nil, err
	}
	merged := make(map[string]string, len(cfg.CoinGecko.SymbolMapping)+len(fromFiles))
	maps.Copy(merged, cfg.CoinGecko.SymbolMapping)
	maps.Copy(merged, fromFiles)

	out := *cfg
	out.CoinGecko.SymbolMapping = merged
	return &out, nil
}
