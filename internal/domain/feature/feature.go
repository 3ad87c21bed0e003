package feature

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Feature is one row of a vector collection's dedicated table
// (immutable value object).
type Feature struct {
	id         uuid.UUID
	geometry   orb.Geometry
	properties map[string]any
	version    int64
	createdAt  time.Time
	updatedAt  time.Time
}

// New validates and creates a Feature at version 1.
func New(geometry orb.Geometry, properties map[string]any) (Feature, error) {
	if geometry == nil {
		return Feature{}, fmt.Errorf("feature geometry is required")
	}
	if properties == nil {
		properties = map[string]any{}
	}
	now := time.Now().UTC()
	return Feature{
		id:         uuid.New(),
		geometry:   geometry,
		properties: properties,
		version:    1,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// Reconstruct creates a Feature without validation (storage hydration).
func Reconstruct(
	id uuid.UUID, geometry orb.Geometry, properties map[string]any,
	version int64, createdAt, updatedAt time.Time,
) Feature {
	return Feature{
		id:         id,
		geometry:   geometry,
		properties: properties,
		version:    version,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

// ID returns the feature identifier.
func (f Feature) ID() uuid.UUID { return f.id }

// Geometry returns the feature geometry.
func (f Feature) Geometry() orb.Geometry { return f.geometry }

// Properties returns the opaque property document.
func (f Feature) Properties() map[string]any { return f.properties }

// Version returns the optimistic concurrency token.
func (f Feature) Version() int64 { return f.version }

// CreatedAt returns the creation timestamp.
func (f Feature) CreatedAt() time.Time { return f.createdAt }

// UpdatedAt returns the last mutation timestamp.
func (f Feature) UpdatedAt() time.Time { return f.updatedAt }

// Page is one page of features plus the unpaged match count.
type Page struct {
	Features []Feature
	Total    int64
}
