package feature

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/02JanDal/spatialvault/internal/domain/feature"
)

// featureColumns is the select list every feature query shares, in
// scanFeature order. Geometry comes back as CRS84 GeoJSON regardless of
// the table's spatial reference.
const featureColumns = "id, ST_AsGeoJSON(ST_Transform(geometry, 4326)), " +
	"properties::text, version, created_at, updated_at"

// scanFeature hydrates a domain Feature from a table row.
func scanFeature(row pgx.Row) (feature.Feature, error) {
	var (
		id        uuid.UUID
		geomJSON  string
		propsJSON string
		version   int64
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &geomJSON, &propsJSON, &version, &createdAt, &updatedAt); err != nil {
		return feature.Feature{}, err //nolint:wrapcheck // callers normalize
	}

	geom, err := geojson.UnmarshalGeometry([]byte(geomJSON))
	if err != nil {
		return feature.Feature{}, fmt.Errorf("hydrate feature %s geometry: %w", id, err)
	}
	props := map[string]any{}
	if propsJSON != "" {
		if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
			return feature.Feature{}, fmt.Errorf("hydrate feature %s properties: %w", id, err)
		}
	}
	return feature.Reconstruct(id, geom.Geometry(), props, version, createdAt, updatedAt), nil
}
