package datasource

import (
	"context"

	"github.com/mohammed-shakir/bikeways-nearby/internal/invalidation"
)

// Invalidator routes dataset update notifications by source name.
type Invalidator struct {
	Catalog  *Catalog
	Sources  []Source
	Bikeways []BikewayLayer
	Stations *StationStore
}

func (v Invalidator) InvalidateDataset(ctx context.Context, name string) error {
	if name == StationsDataset && v.Stations != nil {
		return v.Stations.Invalidate(ctx)
	}
	for _, src := range v.Sources {
		if src.Name == name {
			return v.Catalog.Invalidate(ctx, src)
		}
	}
	for _, l := range v.Bikeways {
		if l.Name == name {
			return v.Catalog.InvalidateBikeways(ctx, l)
		}
	}
	return invalidation.ErrUnknownDataset
}
