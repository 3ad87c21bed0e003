package feature

import (
	"context"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	domcol "github.com/02JanDal/spatialvault/internal/domain/collection"
	domfeat "github.com/02JanDal/spatialvault/internal/domain/feature"
	featrepo "github.com/02JanDal/spatialvault/internal/repository/feature"
)

// Repository defines the feature storage contract.
type Repository interface {
	List(ctx context.Context, role string, col domcol.Collection, q featrepo.Query) (domfeat.Page, error)
	Get(ctx context.Context, role string, col domcol.Collection, id uuid.UUID) (domfeat.Feature, error)
	Create(ctx context.Context, role string, col domcol.Collection, f domfeat.Feature) error
	Update(ctx context.Context, role string, col domcol.Collection, id uuid.UUID, expectedVersion *int64, geometry *geojson.Geometry, properties map[string]any) (domfeat.Feature, error)
	Delete(ctx context.Context, role string, col domcol.Collection, id uuid.UUID, expectedVersion *int64) error
}

// CollectionResolver looks up collection metadata and storage details.
type CollectionResolver interface {
	Get(ctx context.Context, name string) (domcol.Collection, error)
	StorageSRID(ctx context.Context, col domcol.Collection) (int, error)
}
