package feature

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/02JanDal/spatialvault/internal/domain"
	domcol "github.com/02JanDal/spatialvault/internal/domain/collection"
	domfeat "github.com/02JanDal/spatialvault/internal/domain/feature"
	"github.com/02JanDal/spatialvault/internal/domain/principal"
	featrepo "github.com/02JanDal/spatialvault/internal/repository/feature"
)

// mockRepository implements Repository, recording the role and query of
// each call.
type mockRepository struct {
	roles   []string
	queries []featrepo.Query

	listFn   func(col domcol.Collection, q featrepo.Query) (domfeat.Page, error)
	getFn    func(col domcol.Collection, id uuid.UUID) (domfeat.Feature, error)
	createFn func(col domcol.Collection, f domfeat.Feature) error
	updateFn func(col domcol.Collection, id uuid.UUID, expectedVersion *int64, geometry *geojson.Geometry, properties map[string]any) (domfeat.Feature, error)
	deleteFn func(col domcol.Collection, id uuid.UUID, expectedVersion *int64) error
}

func (m *mockRepository) List(_ context.Context, role string, col domcol.Collection, q featrepo.Query) (domfeat.Page, error) {
	m.roles = append(m.roles, role)
	m.queries = append(m.queries, q)
	if m.listFn != nil {
		return m.listFn(col, q)
	}
	return domfeat.Page{}, nil
}

func (m *mockRepository) Get(_ context.Context, role string, col domcol.Collection, id uuid.UUID) (domfeat.Feature, error) {
	m.roles = append(m.roles, role)
	return m.getFn(col, id)
}

func (m *mockRepository) Create(_ context.Context, role string, col domcol.Collection, f domfeat.Feature) error {
	m.roles = append(m.roles, role)
	if m.createFn != nil {
		return m.createFn(col, f)
	}
	return nil
}

func (m *mockRepository) Update(_ context.Context, role string, col domcol.Collection, id uuid.UUID, expectedVersion *int64, geometry *geojson.Geometry, properties map[string]any) (domfeat.Feature, error) {
	m.roles = append(m.roles, role)
	return m.updateFn(col, id, expectedVersion, geometry, properties)
}

func (m *mockRepository) Delete(_ context.Context, role string, col domcol.Collection, id uuid.UUID, expectedVersion *int64) error {
	m.roles = append(m.roles, role)
	return m.deleteFn(col, id, expectedVersion)
}

// mockResolver implements CollectionResolver over a fixed collection set.
type mockResolver struct {
	cols map[string]domcol.Collection
	srid int
}

func (m *mockResolver) Get(_ context.Context, name string) (domcol.Collection, error) {
	col, ok := m.cols[name]
	if !ok {
		return domcol.Collection{}, errNotFound(name)
	}
	return col, nil
}

func (m *mockResolver) StorageSRID(_ context.Context, col domcol.Collection) (int, error) {
	if m.srid != 0 {
		return m.srid, nil
	}
	return col.SRID(), nil
}

func errNotFound(name string) error {
	return fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
}

func mustPrincipal(t *testing.T, username string, groups ...string) principal.Principal {
	t.Helper()
	p, err := principal.New(username, groups)
	if err != nil {
		t.Fatalf("build principal: %v", err)
	}
	return p
}

func mustCollection(t *testing.T, name string, kind domcol.Kind, srid int) domcol.Collection {
	t.Helper()
	col, err := domcol.New(name, kind, "Title", "", srid)
	if err != nil {
		t.Fatalf("build collection: %v", err)
	}
	return col
}
