package item

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/02JanDal/spatialvault/internal/domain/item"
)

// itemColumns is the select list every item query shares, in scanItem
// order. Shared storage is fixed at CRS84, so geometry passes through
// untransformed.
const itemColumns = "id, collection_id, ST_AsGeoJSON(geometry), datetime, " +
	"properties::text, version, created_at, updated_at"

// scanItem hydrates a domain Item from a shared-table row.
func scanItem(row pgx.Row) (item.Item, error) {
	var (
		id           uuid.UUID
		collectionID uuid.UUID
		geomJSON     string
		datetime     *time.Time
		propsJSON    string
		version      int64
		createdAt    time.Time
		updatedAt    time.Time
	)
	if err := row.Scan(&id, &collectionID, &geomJSON, &datetime, &propsJSON,
		&version, &createdAt, &updatedAt); err != nil {
		return item.Item{}, err //nolint:wrapcheck // callers normalize
	}

	geom, err := geojson.UnmarshalGeometry([]byte(geomJSON))
	if err != nil {
		return item.Item{}, fmt.Errorf("hydrate item %s geometry: %w", id, err)
	}
	props := map[string]any{}
	if propsJSON != "" {
		if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
			return item.Item{}, fmt.Errorf("hydrate item %s properties: %w", id, err)
		}
	}
	return item.Reconstruct(id, collectionID, geom.Geometry(), datetime, props,
		version, createdAt, updatedAt), nil
}

// assetColumns is the select list for asset queries, in scanAsset order.
const assetColumns = "id, item_id, key, href, COALESCE(media_type, ''), " +
	"COALESCE(title, ''), COALESCE(description, ''), roles, file_size, created_at"

// scanAsset hydrates an Asset from an asset row.
func scanAsset(row pgx.Row) (item.Asset, error) {
	var a item.Asset
	if err := row.Scan(&a.ID, &a.ItemID, &a.Key, &a.Href, &a.MediaType,
		&a.Title, &a.Description, &a.Roles, &a.FileSize, &a.CreatedAt); err != nil {
		return item.Asset{}, err //nolint:wrapcheck // callers normalize
	}
	return a, nil
}
