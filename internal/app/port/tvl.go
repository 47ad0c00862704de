package port

import (
	"context"

	"ist_tvl/internal/domain/entity"
)

// TVLService computes the protocol TVL.
type TVLService interface {
	// Run executes one full pipeline pass. Branch failures are reported as
	// warnings on the report; an error means no category produced data.
	Run(ctx context.Context) (*entity.TVLReport, error)
}
