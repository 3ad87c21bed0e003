// Package item orchestrates item and asset operations on raster and
// point cloud collections backed by the shared items table.
package item

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/02JanDal/spatialvault/internal/cql"
	"github.com/02JanDal/spatialvault/internal/domain"
	domcol "github.com/02JanDal/spatialvault/internal/domain/collection"
	domitem "github.com/02JanDal/spatialvault/internal/domain/item"
	"github.com/02JanDal/spatialvault/internal/domain/principal"
	"github.com/02JanDal/spatialvault/internal/metrics"
	itemrepo "github.com/02JanDal/spatialvault/internal/repository/item"
	usecol "github.com/02JanDal/spatialvault/internal/usecase/collection"
)

const (
	defaultLimit = 10
	maxLimit     = 10000
)

// Service handles item and asset operations.
type Service struct {
	repo        Repository
	collections CollectionResolver
}

// New creates an item service.
func New(repo Repository, collections CollectionResolver) *Service {
	return &Service{repo: repo, collections: collections}
}

// ListParams narrows an item listing. Datetime is an RFC 3339 instant or
// a start/end interval where either side may be the open bound "..".
type ListParams struct {
	BBox     []float64
	Datetime string
	Filter   string
	Limit    int
	Offset   int
}

// List returns a page of a collection's items.
func (s *Service) List(ctx context.Context, p principal.Principal, name string, params ListParams) (domitem.Page, error) {
	col, err := s.sharedCollection(ctx, p, name)
	if err != nil {
		return domitem.Page{}, err
	}

	q := itemrepo.Query{}
	q.Limit, q.Offset, err = normalizePage(params.Limit, params.Offset)
	if err != nil {
		return domitem.Page{}, err
	}
	if len(params.BBox) > 0 {
		q.BBox, err = validateBBox(params.BBox)
		if err != nil {
			return domitem.Page{}, err
		}
	}
	if params.Datetime != "" {
		q.DatetimeStart, q.DatetimeEnd, err = ParseInterval(params.Datetime)
		if err != nil {
			return domitem.Page{}, err
		}
	}
	if params.Filter != "" {
		q.FilterSQL, err = cql.ToSQL(params.Filter, "")
		if err != nil {
			metrics.FilterCompileTotal.WithLabelValues("error").Inc()
			return domitem.Page{}, fmt.Errorf("%w: %w", domain.ErrInvalidFilter, err)
		}
		metrics.FilterCompileTotal.WithLabelValues("ok").Inc()
	}

	start := time.Now()
	page, err := s.repo.List(ctx, p.Username(), col.ID(), q)
	metrics.QueryDuration.WithLabelValues(col.Kind().String()).Observe(time.Since(start).Seconds())
	if err != nil {
		return domitem.Page{}, fmt.Errorf("list items: %w", err)
	}
	return page, nil
}

// Get returns a single item by id.
func (s *Service) Get(ctx context.Context, p principal.Principal, name string, id uuid.UUID) (domitem.Item, error) {
	col, err := s.sharedCollection(ctx, p, name)
	if err != nil {
		return domitem.Item{}, err
	}
	it, err := s.repo.Get(ctx, p.Username(), col.ID(), id)
	if err != nil {
		return domitem.Item{}, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

// Create stores a new item in the collection.
func (s *Service) Create(ctx context.Context, p principal.Principal, name string, geometry *geojson.Geometry, datetime *time.Time, properties map[string]any) (domitem.Item, error) {
	col, err := s.sharedCollection(ctx, p, name)
	if err != nil {
		return domitem.Item{}, err
	}
	if geometry == nil {
		return domitem.Item{}, fmt.Errorf("item geometry is required: %w", domain.ErrInvalidQuery)
	}
	it, err := domitem.New(col.ID(), geometry.Geometry(), datetime, properties)
	if err != nil {
		return domitem.Item{}, fmt.Errorf("validate item: %w: %w", domain.ErrInvalidQuery, err)
	}
	if err := s.repo.Create(ctx, p.Username(), it); err != nil {
		return domitem.Item{}, fmt.Errorf("create item: %w", err)
	}
	return it, nil
}

// Update replaces an item's payload.
func (s *Service) Update(ctx context.Context, p principal.Principal, name string, id uuid.UUID, expectedVersion *int64, params itemrepo.UpdateParams) (domitem.Item, error) {
	col, err := s.sharedCollection(ctx, p, name)
	if err != nil {
		return domitem.Item{}, err
	}
	it, err := s.repo.Update(ctx, p.Username(), col.ID(), id, expectedVersion, params)
	if err != nil {
		return domitem.Item{}, fmt.Errorf("update item: %w", err)
	}
	return it, nil
}

// Delete removes an item and its assets.
func (s *Service) Delete(ctx context.Context, p principal.Principal, name string, id uuid.UUID, expectedVersion *int64) error {
	col, err := s.sharedCollection(ctx, p, name)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, p.Username(), col.ID(), id, expectedVersion); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// ListAssets returns an item's assets.
func (s *Service) ListAssets(ctx context.Context, p principal.Principal, name string, itemID uuid.UUID) ([]domitem.Asset, error) {
	col, err := s.sharedCollection(ctx, p, name)
	if err != nil {
		return nil, err
	}
	// The item lookup doubles as the existence check for the asset list.
	if _, err := s.repo.Get(ctx, p.Username(), col.ID(), itemID); err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	assets, err := s.repo.ListAssets(ctx, p.Username(), itemID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

// AddAsset attaches an asset to an item.
func (s *Service) AddAsset(ctx context.Context, p principal.Principal, name string, itemID uuid.UUID, key, href, mediaType, title, description string, roles []string, fileSize int64) (domitem.Asset, error) {
	col, err := s.sharedCollection(ctx, p, name)
	if err != nil {
		return domitem.Asset{}, err
	}
	if _, err := s.repo.Get(ctx, p.Username(), col.ID(), itemID); err != nil {
		return domitem.Asset{}, fmt.Errorf("get item: %w", err)
	}

	a, err := domitem.NewAsset(itemID, key, href)
	if err != nil {
		return domitem.Asset{}, fmt.Errorf("validate asset: %w: %w", domain.ErrInvalidQuery, err)
	}
	a.MediaType = mediaType
	a.Title = title
	a.Description = description
	a.Roles = roles
	a.FileSize = fileSize

	if err := s.repo.CreateAsset(ctx, p.Username(), a); err != nil {
		return domitem.Asset{}, fmt.Errorf("create asset: %w", err)
	}
	return a, nil
}

// RemoveAsset detaches one asset by key.
func (s *Service) RemoveAsset(ctx context.Context, p principal.Principal, name string, itemID uuid.UUID, key string) error {
	col, err := s.sharedCollection(ctx, p, name)
	if err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, p.Username(), col.ID(), itemID); err != nil {
		return fmt.Errorf("get item: %w", err)
	}
	if err := s.repo.DeleteAsset(ctx, p.Username(), itemID, key); err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

// sharedCollection resolves the collection and rejects kinds whose
// records live in a dedicated table instead of the shared items table.
func (s *Service) sharedCollection(ctx context.Context, p principal.Principal, name string) (domcol.Collection, error) {
	col, err := s.collections.Get(ctx, usecol.QualifyName(p, name))
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	dedicated, err := col.Kind().DedicatedTable()
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("collection %q: %w", col.Name(), err)
	}
	if dedicated {
		return domcol.Collection{}, fmt.Errorf("collection %q is %s and does not store items: %w",
			col.Name(), col.Kind(), domain.ErrInvalidQuery)
	}
	return col, nil
}

// ParseInterval parses an RFC 3339 instant or a start/end interval.
// Either side of an interval may be the open bound "..", but not both.
func ParseInterval(s string) (*time.Time, *time.Time, error) {
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 1:
		t, err := parseInstant(parts[0])
		if err != nil {
			return nil, nil, err
		}
		return t, t, nil
	case 2:
		start, err := parseBound(parts[0])
		if err != nil {
			return nil, nil, err
		}
		end, err := parseBound(parts[1])
		if err != nil {
			return nil, nil, err
		}
		if start == nil && end == nil {
			return nil, nil, fmt.Errorf("datetime interval cannot be open on both sides: %w", domain.ErrInvalidQuery)
		}
		if start != nil && end != nil && end.Before(*start) {
			return nil, nil, fmt.Errorf("datetime interval end precedes start: %w", domain.ErrInvalidQuery)
		}
		return start, end, nil
	default:
		return nil, nil, fmt.Errorf("datetime must be an instant or start/end interval, got %q: %w", s, domain.ErrInvalidQuery)
	}
}

func parseBound(s string) (*time.Time, error) {
	if s == ".." || s == "" {
		return nil, nil
	}
	return parseInstant(s)
}

func parseInstant(s string) (*time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("datetime %q is not RFC 3339: %w", s, domain.ErrInvalidQuery)
	}
	t = t.UTC()
	return &t, nil
}

func validateBBox(coords []float64) (*[4]float64, error) {
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
