package port

import (
	"context"

	"ist_tvl/internal/domain/entity"
)

// StorageQuerier answers vstorage queries.
// Implementations fail with entity.ErrNotFound when nothing is stored at the path,
// *entity.TransportError for network failures and *entity.DecodeError for bad payloads.
type StorageQuerier interface {
	Query(ctx context.Context, q entity.StorageQuery) (entity.StorageNode, error)
}

// StorageSession is a StorageQuerier scoped to one pipeline run.
type StorageSession interface {
	StorageQuerier
	Stats() entity.StorageStats
}
