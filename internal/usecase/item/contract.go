package item

import (
	"context"

	"github.com/google/uuid"

	domcol "github.com/02JanDal/spatialvault/internal/domain/collection"
	domitem "github.com/02JanDal/spatialvault/internal/domain/item"
	itemrepo "github.com/02JanDal/spatialvault/internal/repository/item"
)

// Repository defines the item and asset storage contract.
type Repository interface {
	List(ctx context.Context, role string, collectionID uuid.UUID, q itemrepo.Query) (domitem.Page, error)
	Get(ctx context.Context, role string, collectionID, id uuid.UUID) (domitem.Item, error)
	Create(ctx context.Context, role string, it domitem.Item) error
	Update(ctx context.Context, role string, collectionID, id uuid.UUID, expectedVersion *int64, p itemrepo.UpdateParams) (domitem.Item, error)
	Delete(ctx context.Context, role string, collectionID, id uuid.UUID, expectedVersion *int64) error

	ListAssets(ctx context.Context, role string, itemID uuid.UUID) ([]domitem.Asset, error)
	CreateAsset(ctx context.Context, role string, a domitem.Asset) error
	DeleteAsset(ctx context.Context, role string, itemID uuid.UUID, key string) error
}

// CollectionResolver looks up collection metadata.
type CollectionResolver interface {
	Get(ctx context.Context, name string) (domcol.Collection, error)
}
