package service

import (
	"context"
	"errors"
	"fmt"

	"ist_tvl/internal/app/port"
	"ist_tvl/internal/config"
	"ist_tvl/internal/domain/entity"

	"golang.org/x/sync/errgroup"
)

// ErrProbeLimit means probing reached the index bound without hitting an absent index.
var ErrProbeLimit = errors.New("probe index limit reached")

// ProbeSpec describes an indexed collection: members live at
// <Parent>.<Prefix><i>, and existence is checked at <Parent>.<Prefix><i>[.<Suffix>].
type ProbeSpec struct {
	Parent entity.StoragePath
	Prefix string
	Suffix string
}

func (p ProbeSpec) member(i int) string {
	return p.Prefix + fmt.Sprint(i)
}

func (p ProbeSpec) probePath(i int) entity.StoragePath {
	path := p.Parent.Indexed(p.Prefix, i)
	if p.Suffix != "" {
		path = path.Child(p.Suffix)
	}
	return path
}

// CollectionSpec describes how to list the members of a vstorage collection.
type CollectionSpec struct {
	Parent   entity.StoragePath
	Strategy string
	Prefix   string
	// ProbeSuffix is the child checked for existence when probing, e.g. "metrics".
	ProbeSuffix string
	// Static is the fixed member list for the static strategy.
	Static []string
}

// Enumerator lists collection members under vstorage paths.
type Enumerator struct {
	storage   port.StorageQuerier
	batchSize int
	maxIndex  int
	logger    port.Logger
}

// NewEnumerator creates an Enumerator. Probing issues batchSize queries at a
// time and never looks past maxIndex.
func NewEnumerator(storage port.StorageQuerier, batchSize, maxIndex int, logger port.Logger) *Enumerator {
	if batchSize <= 0 {
		batchSize = 1
	}
	if maxIndex <= 0 {
		maxIndex = 5000
	}
	return &Enumerator{storage: storage, batchSize: batchSize, maxIndex: maxIndex, logger: logger}
}

// Children returns the child segments listed at path.
func (e *Enumerator) Children(ctx context.Context, path entity.StoragePath) ([]string, error) {
	node, err := e.storage.Query(ctx, entity.ChildrenQuery(path))
	if err != nil {
		return nil, err
	}
	if !node.HasChildren() {
		return nil, fmt.Errorf("%s: %w", path, entity.ErrShape)
	}
	return node.Children, nil
}

// Probe discovers members by querying consecutive indices from 0. It returns
// exactly the members before the first absent index. On any other failure the
// members found so far are returned together with the error.
func (e *Enumerator) Probe(ctx context.Context, spec ProbeSpec) ([]string, error) {
	var members []string
	for start := 0; ; start += e.batchSize {
		if start >= e.maxIndex {
			e.logger.Warn("Probe stopped at index limit", "parent", spec.Parent, "limit", e.maxIndex)
			return members, fmt.Errorf("%s: %w (%d)", spec.Parent, ErrProbeLimit, e.maxIndex)
		}
		end := min(start+e.batchSize, e.maxIndex)

		results := make([]error, end-start)
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				_, err := e.storage.Query(ctx, entity.DataQuery(spec.probePath(i)))
				results[i-start] = err
				return nil
			})
		}
		_ = g.Wait()

		for offset, err := range results {
			i := start + offset
			switch {
			case err == nil:
				members = append(members, spec.member(i))
			case entity.IsNotFound(err):
				e.logger.Debug("Probe finished", "parent", spec.Parent, "prefix", spec.Prefix, "count", len(members))
				return members, nil
			default:
				return members, fmt.Errorf("probe %s: %w", spec.probePath(i), err)
			}
		}
	}
}

// Enumerate lists members according to spec.Strategy.
func (e *Enumerator) Enumerate(ctx context.Context, spec CollectionSpec) ([]string, error) {
	probe := ProbeSpec{Parent: spec.Parent, Prefix: spec.Prefix, Suffix: spec.ProbeSuffix}
	switch spec.Strategy {
	case config.StrategyStatic:
		return append([]string(nil), spec.Static...), nil
	case config.StrategyChildren:
		return e.Children(ctx, spec.Parent)
	case config.StrategyProbe:
		return e.Probe(ctx, probe)
	case config.StrategyAuto, "":
		members, err := e.Children(ctx, spec.Parent)
		if err == nil {
			return members, nil
		}
		if !entity.IsNotFound(err) {
			return nil, err
		}
		e.logger.Debug("Children listing unavailable, probing", "parent", spec.Parent)
		return e.Probe(ctx, probe)
	default:
		return nil, fmt.Errorf("unknown enumeration strategy %q", spec.Strategy)
	}
}
