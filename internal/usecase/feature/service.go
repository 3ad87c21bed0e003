// Package feature orchestrates queries and mutations on vector
// collections: kind dispatch, filter compilation and query validation.
// Storage access itself is enforced by the database's grant system,
// since every repository call runs under the principal's native role.
package feature

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/02JanDal/spatialvault/internal/cql"
	"github.com/02JanDal/spatialvault/internal/domain"
	domcol "github.com/02JanDal/spatialvault/internal/domain/collection"
	domfeat "github.com/02JanDal/spatialvault/internal/domain/feature"
	"github.com/02JanDal/spatialvault/internal/domain/principal"
	"github.com/02JanDal/spatialvault/internal/metrics"
	featrepo "github.com/02JanDal/spatialvault/internal/repository/feature"
	usecol "github.com/02JanDal/spatialvault/internal/usecase/collection"
)

const (
	defaultLimit = 10
	maxLimit     = 10000
)

// Service handles feature operations on vector collections.
type Service struct {
	repo        Repository
	collections CollectionResolver
}

// New creates a feature service.
func New(repo Repository, collections CollectionResolver) *Service {
	return &Service{repo: repo, collections: collections}
}

// ListParams narrows a feature listing. BBox is minx,miny,maxx,maxy in
// CRS84; Filter is a CQL2 text expression.
type ListParams struct {
	BBox   []float64
	Filter string
	Limit  int
	Offset int
}

// List returns a page of features matching the query.
func (s *Service) List(ctx context.Context, p principal.Principal, name string, params ListParams) (domfeat.Page, error) {
	col, err := s.vectorCollection(ctx, p, name)
	if err != nil {
		return domfeat.Page{}, err
	}

	q := featrepo.Query{}
	q.Limit, q.Offset, err = normalizePage(params.Limit, params.Offset)
	if err != nil {
		return domfeat.Page{}, err
	}
	if len(params.BBox) > 0 {
		bbox, err := ValidateBBox(params.BBox)
		if err != nil {
			return domfeat.Page{}, err
		}
		q.BBox = bbox
	}
	if params.Filter != "" {
		q.FilterSQL, err = cql.ToSQL(params.Filter, "")
		if err != nil {
			metrics.FilterCompileTotal.WithLabelValues("error").Inc()
			return domfeat.Page{}, fmt.Errorf("%w: %w", domain.ErrInvalidFilter, err)
		}
		metrics.FilterCompileTotal.WithLabelValues("ok").Inc()
	}
	q.StorageSRID, err = s.collections.StorageSRID(ctx, col)
	if err != nil {
		return domfeat.Page{}, fmt.Errorf("storage srid: %w", err)
	}

	start := time.Now()
	page, err := s.repo.List(ctx, p.Username(), col, q)
	metrics.QueryDuration.WithLabelValues(col.Kind().String()).Observe(time.Since(start).Seconds())
	if err != nil {
		return domfeat.Page{}, fmt.Errorf("list features: %w", err)
	}
	return page, nil
}

// Get returns a single feature by id.
func (s *Service) Get(ctx context.Context, p principal.Principal, name string, id uuid.UUID) (domfeat.Feature, error) {
	col, err := s.vectorCollection(ctx, p, name)
	if err != nil {
		return domfeat.Feature{}, err
	}
	f, err := s.repo.Get(ctx, p.Username(), col, id)
	if err != nil {
		return domfeat.Feature{}, fmt.Errorf("get feature: %w", err)
	}
	return f, nil
}

// Create stores a new feature in the collection.
func (s *Service) Create(ctx context.Context, p principal.Principal, name string, geometry *geojson.Geometry, properties map[string]any) (domfeat.Feature, error) {
	col, err := s.vectorCollection(ctx, p, name)
	if err != nil {
		return domfeat.Feature{}, err
	}
	if geometry == nil {
		return domfeat.Feature{}, fmt.Errorf("feature geometry is required: %w", domain.ErrInvalidQuery)
	}
	f, err := domfeat.New(geometry.Geometry(), properties)
	if err != nil {
		return domfeat.Feature{}, fmt.Errorf("validate feature: %w: %w", domain.ErrInvalidQuery, err)
	}
	if err := s.repo.Create(ctx, p.Username(), col, f); err != nil {
		return domfeat.Feature{}, fmt.Errorf("create feature: %w", err)
	}
	return f, nil
}

// Update replaces a feature's geometry and properties.
func (s *Service) Update(ctx context.Context, p principal.Principal, name string, id uuid.UUID, expectedVersion *int64, geometry *geojson.Geometry, properties map[string]any) (domfeat.Feature, error) {
	col, err := s.vectorCollection(ctx, p, name)
	if err != nil {
		return domfeat.Feature{}, err
	}
	f, err := s.repo.Update(ctx, p.Username(), col, id, expectedVersion, geometry, properties)
	if err != nil {
		return domfeat.Feature{}, fmt.Errorf("update feature: %w", err)
	}
	return f, nil
}

// Delete removes a feature.
func (s *Service) Delete(ctx context.Context, p principal.Principal, name string, id uuid.UUID, expectedVersion *int64) error {
	col, err := s.vectorCollection(ctx, p, name)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, p.Username(), col, id, expectedVersion); err != nil {
		return fmt.Errorf("delete feature: %w", err)
	}
	return nil
}

// vectorCollection resolves the collection and rejects kinds that do not
// store features in a dedicated table.
func (s *Service) vectorCollection(ctx context.Context, p principal.Principal, name string) (domcol.Collection, error) {
	col, err := s.collections.Get(ctx, usecol.QualifyName(p, name))
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	dedicated, err := col.Kind().DedicatedTable()
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("collection %q: %w", col.Name(), err)
	}
	if !dedicated {
		return domcol.Collection{}, fmt.Errorf("collection %q is %s and does not store features: %w",
			col.Name(), col.Kind(), domain.ErrInvalidQuery)
	}
	return col, nil
}

// ValidateBBox checks a minx,miny,maxx,maxy bounding box for shape,
// finiteness and axis order.
func ValidateBBox(coords []float64) (*[4]float64, error) {
	if len(coords) != 4 {
		return nil, fmt.Errorf("bbox requires 4 coordinates, got %d: %w", len(coords), domain.ErrInvalidQuery)
	}
	for _, c := range coords {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("bbox coordinates must be finite: %w", domain.ErrInvalidQuery)
		}
	}
	if coords[0] >= coords[2] || coords[1] >= coords[3] {
		return nil, fmt.Errorf("bbox min corner must be south-west of max corner: %w", domain.ErrInvalidQuery)
	}
	bbox := [4]float64{coords[0], coords[1], coords[2], coords[3]}
	return &bbox, nil
}

func normalizePage(limit, offset int) (int, int, error) {
	if limit == 0 {
		limit = defaultLimit
	}
	if limit < 1 || limit > maxLimit {
		return 0, 0, fmt.Errorf("limit must be between 1 and %d, got %d: %w", maxLimit, limit, domain.ErrInvalidQuery)
	}
	if offset < 0 {
		return 0, 0, fmt.Errorf("offset must not be negative, got %d: %w", offset, domain.ErrInvalidQuery)
	}
	return limit, offset, nil
}
