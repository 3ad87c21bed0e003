package collection

import "time"

// SpatialExtent is a bounding box in CRS84 coordinates.
type SpatialExtent struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// TemporalExtent is the datetime range covered by a collection's items.
// Either bound may be open.
type TemporalExtent struct {
	Start *time.Time
	End   *time.Time
}

// Extent is the computed coverage of a collection. Nil members mean the
// collection holds no data with that dimension.
type Extent struct {
	Spatial  *SpatialExtent
	Temporal *TemporalExtent
}
