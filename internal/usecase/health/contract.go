package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// SpatialChecker checks that the spatial extension responds.
type SpatialChecker interface {
	CheckPostGIS(ctx context.Context) error
}
