package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ist_tvl/internal/app/port"
	"ist_tvl/internal/config"
	"ist_tvl/internal/domain/entity"
	"ist_tvl/internal/pkg/capdata"
	"ist_tvl/internal/pkg/logger"
	"ist_tvl/internal/pkg/metrics"
	"ist_tvl/internal/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ErrAllCategoriesFailed is returned when no selected category produced data.
var ErrAllCategoriesFailed = errors.New("all TVL categories failed")

// StorageFactory opens the storage session of one run.
type StorageFactory func() port.StorageSession

// TVLPipeline computes the protocol TVL from vstorage.
type TVLPipeline struct {
	cfg        *config.Config
	categories []entity.Category
	newStorage StorageFactory
	oracle     port.PriceOracle
	supply     port.SupplyFetcher
	logger     port.Logger
}

var _ port.TVLService = (*TVLPipeline)(nil)

// NewTVLPipeline creates a pipeline. supply may be nil when the supply
// category is not selected.
func NewTVLPipeline(cfg *config.Config, newStorage StorageFactory, oracle port.PriceOracle, supply port.SupplyFetcher, logger port.Logger) (*TVLPipeline, error) {
	categories, err := cfg.TVLCategories()
	if err != nil {
		return nil, err
	}
	for _, c := range categories {
		if c == entity.CategorySupply && supply == nil {
			return nil, errors.New("supply category selected without a supply fetcher")
		}
	}
	return &TVLPipeline{
		cfg:        cfg,
		categories: categories,
		newStorage: newStorage,
		oracle:     oracle,
		supply:     supply,
		logger:     logger,
	}, nil
}

// runState is everything scoped to a single Run.
type runState struct {
	id      uuid.UUID
	log     port.Logger
	storage port.StorageSession
	enum    *Enumerator
	prices  *PriceResolver
	meta    *CollateralMetadata

	mu             sync.Mutex
	warnings       []entity.Warning
	vaultsRead     int
	psmInstruments int
}

func (s *runState) record(category entity.Category, subject string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, entity.Warning{Category: category, Subject: subject, Message: err.Error()})
}

// warn records a branch-local failure and logs it. NotFound is logged at debug.
func (s *runState) warn(category entity.Category, subject string, err error) {
	s.record(category, subject, err)
	if entity.IsNotFound(err) {
		s.log.Debug("TVL item not found", "category", category, "subject", subject, "error", err)
		return
	}
	s.log.Warn("TVL item skipped", "category", category, "subject", subject, "error", err)
}

// Run implements port.TVLService.
func (p *TVLPipeline) Run(ctx context.Context) (*entity.TVLReport, error) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RunTimeout())
	defer cancel()

	storage := p.newStorage()
	id := uuid.New()
	log := logger.With(p.logger, "run_id", id)
	st := &runState{
		id:      id,
		log:     log,
		storage: storage,
		enum:    NewEnumerator(storage, p.cfg.Pipeline.ProbeBatchSize, p.cfg.Pipeline.MaxProbeIndex, log),
		prices:  NewPriceResolver(p.oracle, p.cfg.CoinGecko.SymbolMapping, log),
		meta:    NewCollateralMetadata(storage, p.cfg.Collateral, log),
	}
	log.Info("Starting TVL run", "categories", p.categories)

	groups := make([][]AmountGroup, len(p.categories))
	failures := make([]error, len(p.categories))
	var g errgroup.Group
	for i, category := range p.categories {
		g.Go(func() error {
			var err error
			switch category {
			case entity.CategoryReserve:
				groups[i], err = p.collectReserve(ctx, st)
			case entity.CategoryPSM:
				groups[i], err = p.collectPSM(ctx, st)
			case entity.CategoryVault:
				groups[i], err = p.collectVaults(ctx, st)
			case entity.CategorySupply:
				groups[i], err = p.collectSupply(ctx)
			}
			if err != nil {
				failures[i] = fmt.Errorf("%s: %w", category, err)
				st.record(category, "", err)
				log.Error("TVL category failed", "category", category, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	var all []AmountGroup
	var causes []error
	for i := range p.categories {
		all = append(all, groups[i]...)
		if failures[i] != nil {
			causes = append(causes, failures[i])
		}
	}
	if len(causes) == len(p.categories) {
		metrics.PipelineRuns.WithLabelValues("failed").Inc()
		metrics.PipelineDuration.Observe(time.Since(started).Seconds())
		return nil, fmt.Errorf("%w: %w", ErrAllCategoriesFailed, errors.Join(causes...))
	}

	agg := NewAggregator(p.cfg.Pipeline.NativeDecimals, log).Aggregate(all, st.prices, p.categories)

	storageStats := storage.Stats()
	report := &entity.TVLReport{
		RunID:      st.id,
		Balances:   entity.AggregateBalance{},
		Total:      agg.Total,
		Categories: p.categories,
		Subtotals:  agg.Subtotals,
		Collateral: agg.Collateral,
		Warnings:   append(st.warnings, agg.Warnings...),
		Stats: entity.RunStats{
			StorageCalls:    storageStats.Calls,
			StorageHits:     storageStats.Hits,
			StorageNotFound: storageStats.NotFound,
			OracleCalls:     st.prices.Calls(),
			VaultsRead:      st.vaultsRead,
			PSMInstruments:  st.psmInstruments,
		},
		StartedAt: started,
		Duration:  time.Since(started),
	}
	report.Balances.Add(p.cfg.Pipeline.CoinID, agg.Total)

	status := "ok"
	if len(causes) > 0 {
		status = "partial"
	}
	metrics.PipelineRuns.WithLabelValues(status).Inc()
	metrics.PipelineDuration.Observe(report.Duration.Seconds())
	for c, v := range report.Subtotals {
		metrics.TVLValue.WithLabelValues(string(c)).Set(v)
	}
	metrics.TVLValue.WithLabelValues("total").Set(report.Total)

	log.Info("TVL run finished",
		"status", status,
		"total", report.Total,
		"warnings", len(report.Warnings),
		"storage_calls", report.Stats.StorageCalls,
		"oracle_calls", report.Stats.OracleCalls,
		"duration", report.Duration)
	return report, nil
}

func (p *TVLPipeline) concurrency() int {
	return max(1, p.cfg.Pipeline.MaxConcurrentRequests)
}

// cellRecords decodes a data node value and applies the cell policy: the last
// record only, or every readable record.
func (p *TVLPipeline) cellRecords(st *runState, category entity.Category, path entity.StoragePath, raw string) ([]capdata.Record, error) {
	records, err := capdata.Decode(raw)
	if err != nil {
		return nil, err
	}
	if p.cfg.Pipeline.CellPolicy != config.CellPolicyAll {
		rec, ok := capdata.Latest(records)
		if !ok {
			return nil, fmt.Errorf("%s: empty stream cell: %w", path, entity.ErrNotFound)
		}
		if rec.Err != nil {
			return nil, rec.Err
		}
		return []capdata.Record{rec}, nil
	}

	good := make([]capdata.Record, 0, len(records))
	var lastErr error
	for _, rec := range records {
		if rec.Err != nil {
			lastErr = rec.Err
			st.warn(category, fmt.Sprintf("%s[%d]", path, rec.Index), rec.Err)
			continue
		}
		good = append(good, rec)
	}
	if len(good) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%s: empty stream cell: %w", path, entity.ErrNotFound)
	}
	return good, nil
}

func (p *TVLPipeline) readData(ctx context.Context, st *runState, path entity.StoragePath) (string, error) {
	node, err := st.storage.Query(ctx, entity.DataQuery(path))
	if err != nil {
		return "", err
	}
	return node.Value, nil
}

func (p *TVLPipeline) collectReserve(ctx context.Context, st *runState) ([]AmountGroup, error) {
	path := entity.StoragePath(p.cfg.Reserve.Path)
	raw, err := p.readData(ctx, st, path)
	if err != nil {
		return nil, err
	}
	records, err := p.cellRecords(st, entity.CategoryReserve, path, raw)
	if err != nil {
		return nil, err
	}

	group := AmountGroup{Category: entity.CategoryReserve}
	var errs []error
	for _, rec := range records {
		var m entity.ReserveMetrics
		if err := rec.Unmarshal(&m); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		for _, key := range p.cfg.Reserve.AllocationKeys {
			alloc, ok := m.Allocations[key]
			if !ok {
				errs = append(errs, fmt.Errorf("allocation %q missing: %w", key, entity.ErrShape))
				continue
			}
			v, err := alloc.Decimal()
			if err != nil {
				errs = append(errs, fmt.Errorf("allocation %q: %w", key, err))
				continue
			}
			group.Amounts = append(group.Amounts, v)
		}
	}
	// Nothing readable means the category failed rather than holds zero.
	if len(group.Amounts) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		st.warn(entity.CategoryReserve, path.String(), err)
	}
	st.log.Debug("Reserve collected", "amounts", len(group.Amounts))
	return []AmountGroup{group}, nil
}

func (p *TVLPipeline) psmInstruments(ctx context.Context, st *runState) ([]string, error) {
	parent := entity.StoragePath(p.cfg.PSM.Path)
	switch p.cfg.PSM.Strategy {
	case config.StrategyStatic:
		return p.cfg.PSM.Instruments, nil
	case config.StrategyAuto:
		members, err := st.enum.Children(ctx, parent)
		if entity.IsNotFound(err) {
			st.log.Debug("PSM children unavailable, using configured instruments")
			return p.cfg.PSM.Instruments, nil
		}
		return members, err
	default:
		return st.enum.Children(ctx, parent)
	}
}

func (p *TVLPipeline) collectPSM(ctx context.Context, st *runState) ([]AmountGroup, error) {
	instruments, err := p.psmInstruments(ctx, st)
	if err != nil {
		return nil, err
	}
	parent := entity.StoragePath(p.cfg.PSM.Path)

	perInstrument := make([][]decimal.Decimal, len(instruments))
	failures := make([]error, len(instruments))
	var g errgroup.Group
	g.SetLimit(p.concurrency())
	for i, inst := range instruments {
		g.Go(func() error {
			perInstrument[i], failures[i] = p.readPSMInstrument(ctx, st, parent.Child(inst).Child("metrics"))
			if failures[i] != nil {
				st.warn(entity.CategoryPSM, inst, failures[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	group := AmountGroup{Category: entity.CategoryPSM}
	var errs []error
	read := 0
	for i := range instruments {
		if failures[i] != nil {
			if !entity.IsNotFound(failures[i]) {
				errs = append(errs, failures[i])
			}
			continue
		}
		read++
		group.Amounts = append(group.Amounts, perInstrument[i]...)
	}
	st.mu.Lock()
	st.psmInstruments = read
	st.mu.Unlock()

	if read == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	st.log.Debug("PSM collected", "instruments", read, "listed", len(instruments))
	return []AmountGroup{group}, nil
}

func (p *TVLPipeline) readPSMInstrument(ctx context.Context, st *runState, path entity.StoragePath) ([]decimal.Decimal, error) {
	raw, err := p.readData(ctx, st, path)
	if err != nil {
		return nil, err
	}
	records, err := p.cellRecords(st, entity.CategoryPSM, path, raw)
	if err != nil {
		return nil, err
	}
	var amounts []decimal.Decimal
	for _, rec := range records {
		var m entity.PSMMetrics
		if err := rec.Unmarshal(&m); err != nil {
			return nil, err
		}
		field := m.Field(p.cfg.PSM.BalanceField)
		if field == nil {
			return nil, fmt.Errorf("%s: field %q missing: %w", path, p.cfg.PSM.BalanceField, entity.ErrShape)
		}
		v, err := field.Decimal()
		if err != nil {
			return nil, err
		}
		amounts = append(amounts, v)
	}
	return amounts, nil
}

// lockedAmount is the collateral read from one vault.
type lockedAmount struct {
	collateral entity.CollateralType
	value      decimal.Decimal
}

func (p *TVLPipeline) collectVaults(ctx context.Context, st *runState) ([]AmountGroup, error) {
	vc := p.cfg.Vaults
	managersPath := entity.StoragePath(vc.ManagersPath)
	managers, err := st.enum.Enumerate(ctx, CollectionSpec{
		Parent:      managersPath,
		Strategy:    vc.ManagerStrategy,
		Prefix:      vc.ManagerPrefix,
		ProbeSuffix: vc.ManagerProbeSuffix,
	})
	if err != nil {
		if !errors.Is(err, ErrProbeLimit) || len(managers) == 0 {
			return nil, err
		}
		st.warn(entity.CategoryVault, managersPath.String(), err)
	}

	var mu sync.Mutex
	var locked []lockedAmount
	var errs []error
	read := 0
	var g errgroup.Group
	g.SetLimit(p.concurrency())
	for _, manager := range managers {
		g.Go(func() error {
			amounts, n, failed := p.collectManager(ctx, st, managersPath.Child(manager))
			mu.Lock()
			locked = append(locked, amounts...)
			errs = append(errs, failed...)
			read += n
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	st.mu.Lock()
	st.vaultsRead = read
	st.mu.Unlock()
	if read == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	byType := make(map[entity.CollateralType][]decimal.Decimal)
	for _, l := range locked {
		byType[l.collateral] = append(byType[l.collateral], l.value)
	}
	types := utils.SortedKeys(byType)

	scales, err := st.meta.Scales(ctx, types)
	if err != nil {
		st.warn(entity.CategoryVault, "collateral metadata", err)
	}
	st.prices.ResolveAll(ctx, types, p.concurrency())

	groups := make([]AmountGroup, 0, len(types))
	for _, ct := range types {
		groups = append(groups, AmountGroup{
			Category:   entity.CategoryVault,
			Collateral: ct,
			Scale:      scales[ct],
			Amounts:    byType[ct],
		})
	}
	st.log.Debug("Vaults collected", "managers", len(managers), "vaults", read, "locked", len(locked), "collateral_types", len(types))
	return groups, nil
}

// collectManager reads the vaults of one manager. It returns the locked
// amounts, the number of vaults read and the failures other than NotFound.
func (p *TVLPipeline) collectManager(ctx context.Context, st *runState, managerPath entity.StoragePath) ([]lockedAmount, int, []error) {
	vc := p.cfg.Vaults
	vaultsPath := managerPath.Child(vc.VaultsSegment)
	vaults, err := st.enum.Enumerate(ctx, CollectionSpec{
		Parent:   vaultsPath,
		Strategy: vc.VaultStrategy,
		Prefix:   vc.VaultPrefix,
	})
	var errs []error
	if err != nil {
		// Probing keeps the contiguous prefix it found; use it.
		st.warn(entity.CategoryVault, vaultsPath.String(), err)
		if !errors.Is(err, ErrProbeLimit) && !entity.IsNotFound(err) {
			errs = append(errs, fmt.Errorf("%s: %w", vaultsPath, err))
		}
	}

	amounts := make([][]lockedAmount, len(vaults))
	failures := make([]error, len(vaults))
	var g errgroup.Group
	g.SetLimit(p.concurrency())
	for i, vault := range vaults {
		g.Go(func() error {
			path := vaultsPath.Child(vault)
			amounts[i], failures[i] = p.readVault(ctx, st, path)
			if failures[i] != nil {
				st.warn(entity.CategoryVault, path.String(), failures[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []lockedAmount
	read := 0
	for i := range vaults {
		if failures[i] != nil {
			if !entity.IsNotFound(failures[i]) {
				errs = append(errs, fmt.Errorf("%s: %w", vaultsPath.Child(vaults[i]), failures[i]))
			}
			continue
		}
		read++
		out = append(out, amounts[i]...)
	}
	return out, read, errs
}

func (p *TVLPipeline) readVault(ctx context.Context, st *runState, path entity.StoragePath) ([]lockedAmount, error) {
	raw, err := p.readData(ctx, st, path)
	if err != nil {
		return nil, err
	}
	records, err := p.cellRecords(st, entity.CategoryVault, path, raw)
	if err != nil {
		return nil, err
	}
	var out []lockedAmount
	for _, rec := range records {
		var v entity.VaultRecord
		if err := rec.Unmarshal(&v); err != nil {
			return nil, err
		}
		if v.Locked == nil {
			continue
		}
		ct, ok := rec.CollateralType(v.Locked.Brand)
		if !ok {
			return nil, fmt.Errorf("brand %q has no alleged name: %w", v.Locked.Brand, entity.ErrShape)
		}
		value, err := v.Locked.Decimal()
		if err != nil {
			return nil, err
		}
		out = append(out, lockedAmount{collateral: ct, value: value})
	}
	return out, nil
}

func (p *TVLPipeline) collectSupply(ctx context.Context) ([]AmountGroup, error) {
	amount, err := p.supply.GetSupply(ctx, p.cfg.Supply.Denom)
	if err != nil {
		return nil, err
	}
	return []AmountGroup{{Category: entity.CategorySupply, Amounts: []decimal.Decimal{amount}}}, nil
}
