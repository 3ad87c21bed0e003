package chi

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	domcol "github.com/02JanDal/spatialvault/internal/domain/collection"
	domfeat "github.com/02JanDal/spatialvault/internal/domain/feature"
	domitem "github.com/02JanDal/spatialvault/internal/domain/item"
	"github.com/02JanDal/spatialvault/internal/domain/share"
)

// ErrorCode classifies an error response body.
type ErrorCode string

const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeForbidden        ErrorCode = "forbidden"
	CodeNotFound         ErrorCode = "not_found"
	CodeAlreadyExists    ErrorCode = "already_exists"
	CodeVersionConflict  ErrorCode = "version_conflict"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeInvalidFilter    ErrorCode = "invalid_filter"
	CodeNotImplemented   ErrorCode = "not_implemented"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// CollectionResponse is the wire form of a collection.
type CollectionResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Owner       string    `json:"owner"`
	Type        string    `json:"type"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	SRID        int       `json:"srid"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func collectionToResponse(c domcol.Collection) CollectionResponse {
	return CollectionResponse{
		ID:          c.ID(),
		Name:        c.Name(),
		Owner:       c.Owner(),
		Type:        c.Kind().String(),
		Title:       c.Title(),
		Description: c.Description(),
		SRID:        c.SRID(),
		Version:     c.Version(),
		CreatedAt:   c.CreatedAt(),
		UpdatedAt:   c.UpdatedAt(),
	}
}

// CollectionListResponse is a page of collections.
type CollectionListResponse struct {
	Collections []CollectionResponse `json:"collections"`
}

type createCollectionRequest struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	SRID        int    `json:"srid"`
}

type updateCollectionRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	NewName     *string `json:"new_name"`
}

type replaceCollectionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ExtentResponse reports a collection's computed coverage.
type ExtentResponse struct {
	Spatial  *SpatialExtentResponse  `json:"spatial,omitempty"`
	Temporal *TemporalExtentResponse `json:"temporal,omitempty"`
}

// SpatialExtentResponse is a CRS84 bounding box as minx,miny,maxx,maxy.
type SpatialExtentResponse struct {
	BBox [4]float64 `json:"bbox"`
}

// TemporalExtentResponse is a datetime range with open bounds as null.
type TemporalExtentResponse struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

func extentToResponse(e domcol.Extent) ExtentResponse {
	var resp ExtentResponse
	if e.Spatial != nil {
		resp.Spatial = &SpatialExtentResponse{
			BBox: [4]float64{e.Spatial.MinX, e.Spatial.MinY, e.Spatial.MaxX, e.Spatial.MaxY},
		}
	}
	if e.Temporal != nil {
		resp.Temporal = &TemporalExtentResponse{Start: e.Temporal.Start, End: e.Temporal.End}
	}
	return resp
}

// StorageCRSResponse reports the physical spatial reference.
type StorageCRSResponse struct {
	SRID int `json:"srid"`
}

// ShareResponse is one derived share entry.
type ShareResponse struct {
	Principal     string `json:"principal"`
	PrincipalType string `json:"principal_type"`
	Permission    string `json:"permission"`
}

// ShareListResponse is the derived share list of a collection.
type ShareListResponse struct {
	Shares []ShareResponse `json:"shares"`
}

func sharesToResponse(entries []share.Entry) ShareListResponse {
	shares := make([]ShareResponse, len(entries))
	for i, e := range entries {
		shares[i] = ShareResponse{
			Principal:     e.Principal,
			PrincipalType: string(e.PrincipalType),
			Permission:    string(e.Permission),
		}
	}
	return ShareListResponse{Shares: shares}
}

type shareRequest struct {
	Permission string `json:"permission"`
}

// FeatureResponse is the wire form of a feature (GeoJSON Feature).
type FeatureResponse struct {
	Type       string            `json:"type"`
	ID         uuid.UUID         `json:"id"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties map[string]any    `json:"properties"`
	Version    int64             `json:"version"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func featureToResponse(f domfeat.Feature) FeatureResponse {
	return FeatureResponse{
		Type:       "Feature",
		ID:         f.ID(),
		Geometry:   geojson.NewGeometry(f.Geometry()),
		Properties: f.Properties(),
		Version:    f.Version(),
		CreatedAt:  f.CreatedAt(),
		UpdatedAt:  f.UpdatedAt(),
	}
}

// FeatureCollectionResponse is a page of features (GeoJSON
// FeatureCollection plus paging metadata).
type FeatureCollectionResponse struct {
	Type           string            `json:"type"`
	Features       []FeatureResponse `json:"features"`
	NumberMatched  int64             `json:"numberMatched"`
	NumberReturned int               `json:"numberReturned"`
}

func featurePageToResponse(p domfeat.Page) FeatureCollectionResponse {
	features := make([]FeatureResponse, len(p.Features))
	for i, f := range p.Features {
		features[i] = featureToResponse(f)
	}
	return FeatureCollectionResponse{
		Type:           "FeatureCollection",
		Features:       features,
		NumberMatched:  p.Total,
		NumberReturned: len(features),
	}
}

type featureRequest struct {
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties map[string]any    `json:"properties"`
}

// ItemResponse is the wire form of a shared-storage item.
type ItemResponse struct {
	ID           uuid.UUID         `json:"id"`
	CollectionID uuid.UUID         `json:"collection_id"`
	Geometry     *geojson.Geometry `json:"geometry"`
	Datetime     *time.Time        `json:"datetime,omitempty"`
	Properties   map[string]any    `json:"properties"`
	Version      int64             `json:"version"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func itemToResponse(it domitem.Item) ItemResponse {
	return ItemResponse{
		ID:           it.ID(),
		CollectionID: it.CollectionID(),
		Geometry:     geojson.NewGeometry(it.Geometry()),
		Datetime:     it.Datetime(),
		Properties:   it.Properties(),
		Version:      it.Version(),
		CreatedAt:    it.CreatedAt(),
		UpdatedAt:    it.UpdatedAt(),
	}
}

// ItemListResponse is a page of items.
type ItemListResponse struct {
	Items          []ItemResponse `json:"items"`
	NumberMatched  int64          `json:"numberMatched"`
	NumberReturned int            `json:"numberReturned"`
}

func itemPageToResponse(p domitem.Page) ItemListResponse {
	items := make([]ItemResponse, len(p.Items))
	for i, it := range p.Items {
		items[i] = itemToResponse(it)
	}
	return ItemListResponse{
		Items:          items,
		NumberMatched:  p.Total,
		NumberReturned: len(items),
	}
}

type itemRequest struct {
	Geometry   *geojson.Geometry `json:"geometry"`
	Datetime   *time.Time        `json:"datetime"`
	Properties map[string]any    `json:"properties"`
}

// AssetResponse is the wire form of an item asset.
type AssetResponse struct {
	ID          uuid.UUID `json:"id"`
	Key         string    `json:"key"`
	Href        string    `json:"href"`
	MediaType   string    `json:"media_type,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Roles       []string  `json:"roles,omitempty"`
	FileSize    int64     `json:"file_size,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func assetToResponse(a domitem.Asset) AssetResponse {
	return AssetResponse{
		ID:          a.ID,
		Key:         a.Key,
		Href:        a.Href,
		MediaType:   a.MediaType,
		Title:       a.Title,
		Description: a.Description,
		Roles:       a.Roles,
		FileSize:    a.FileSize,
		CreatedAt:   a.CreatedAt,
	}
}

// AssetListResponse is an item's asset list.
type AssetListResponse struct {
	Assets []AssetResponse `json:"assets"`
}

type assetRequest struct {
	Key         string   `json:"key"`
	Href        string   `json:"href"`
	MediaType   string   `json:"media_type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Roles       []string `json:"roles"`
	FileSize    int64    `json:"file_size"`
}

// HealthResponse reports aggregated component health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
