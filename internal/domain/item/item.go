package item

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Item is one row of the shared items table, scoped by collection id.
// Raster and point cloud collections store their records here.
type Item struct {
	id           uuid.UUID
	collectionID uuid.UUID
	geometry     orb.Geometry
	datetime     *time.Time
	properties   map[string]any
	version      int64
	createdAt    time.Time
	updatedAt    time.Time
}

// New validates and creates an Item at version 1.
func New(collectionID uuid.UUID, geometry orb.Geometry, datetime *time.Time, properties map[string]any) (Item, error) {
	if collectionID == uuid.Nil {
		return Item{}, fmt.Errorf("item collection id is required")
	}
	if geometry == nil {
		return Item{}, fmt.Errorf("item geometry is required")
	}
	if properties == nil {
		properties = map[string]any{}
	}
	now := time.Now().UTC()
	return Item{
		id:           uuid.New(),
		collectionID: collectionID,
		geometry:     geometry,
		datetime:     datetime,
		properties:   properties,
		version:      1,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// Reconstruct creates an Item without validation (storage hydration).
func Reconstruct(
	id, collectionID uuid.UUID, geometry orb.Geometry, datetime *time.Time,
	properties map[string]any, version int64, createdAt, updatedAt time.Time,
) Item {
	return Item{
		id:           id,
		collectionID: collectionID,
		geometry:     geometry,
		datetime:     datetime,
		properties:   properties,
		version:      version,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// ID returns the item identifier.
func (i Item) ID() uuid.UUID { return i.id }

// CollectionID returns the owning collection's identifier.
func (i Item) CollectionID() uuid.UUID { return i.collectionID }

// Geometry returns the item footprint geometry.
func (i Item) Geometry() orb.Geometry { return i.geometry }

// Datetime returns the item's acquisition timestamp, if any.
func (i Item) Datetime() *time.Time { return i.datetime }

// Properties returns the opaque property document.
func (i Item) Properties() map[string]any { return i.properties }

// Version returns the optimistic concurrency token.
func (i Item) Version() int64 { return i.version }

// CreatedAt returns the creation timestamp.
func (i Item) CreatedAt() time.Time { return i.createdAt }

// UpdatedAt returns the last mutation timestamp.
func (i Item) UpdatedAt() time.Time { return i.updatedAt }

// Page is one page of items plus the unpaged match count.
type Page struct {
	Items []Item
	Total int64
}

// Asset describes an external payload attached to an item.
type Asset struct {
	ID          uuid.UUID
	ItemID      uuid.UUID
	Key         string
	Href        string
	MediaType   string
	Title       string
	Description string
	Roles       []string
	FileSize    int64
	CreatedAt   time.Time
}

// NewAsset validates and creates an Asset.
func NewAsset(itemID uuid.UUID, key, href string) (Asset, error) {
	if itemID == uuid.Nil {
		return Asset{}, fmt.Errorf("asset item id is required")
	}
	if key == "" {
		return Asset{}, fmt.Errorf("asset key is required")
	}
	if href == "" {
		return Asset{}, fmt.Errorf("asset href is required")
	}
	return Asset{ID: uuid.New(), ItemID: itemID, Key: key, Href: href, CreatedAt: time.Now().UTC()}, nil
}
