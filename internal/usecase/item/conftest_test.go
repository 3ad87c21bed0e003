package item

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/02JanDal/spatialvault/internal/domain"
	domcol "github.com/02JanDal/spatialvault/internal/domain/collection"
	domitem "github.com/02JanDal/spatialvault/internal/domain/item"
	"github.com/02JanDal/spatialvault/internal/domain/principal"
	itemrepo "github.com/02JanDal/spatialvault/internal/repository/item"
)

// mockRepository implements Repository, recording the role and query of
// each call.
type mockRepository struct {
	roles   []string
	queries []itemrepo.Query
	created []domitem.Item
	assets  []domitem.Asset

	listFn        func(collectionID uuid.UUID, q itemrepo.Query) (domitem.Page, error)
	getFn         func(collectionID, id uuid.UUID) (domitem.Item, error)
	updateFn      func(collectionID, id uuid.UUID, expectedVersion *int64, p itemrepo.UpdateParams) (domitem.Item, error)
	deleteFn      func(collectionID, id uuid.UUID, expectedVersion *int64) error
	listAssetsFn  func(itemID uuid.UUID) ([]domitem.Asset, error)
	deleteAssetFn func(itemID uuid.UUID, key string) error
}

func (m *mockRepository) List(_ context.Context, role string, collectionID uuid.UUID, q itemrepo.Query) (domitem.Page, error) {
	m.roles = append(m.roles, role)
	m.queries = append(m.queries, q)
	if m.listFn != nil {
		return m.listFn(collectionID, q)
	}
	return domitem.Page{}, nil
}

func (m *mockRepository) Get(_ context.Context, role string, collectionID, id uuid.UUID) (domitem.Item, error) {
	m.roles = append(m.roles, role)
	if m.getFn != nil {
		return m.getFn(collectionID, id)
	}
	return domitem.Item{}, nil
}

func (m *mockRepository) Create(_ context.Context, role string, it domitem.Item) error {
	m.roles = append(m.roles, role)
	m.created = append(m.created, it)
	return nil
}

func (m *mockRepository) Update(_ context.Context, role string, collectionID, id uuid.UUID, expectedVersion *int64, p itemrepo.UpdateParams) (domitem.Item, error) {
	m.roles = append(m.roles, role)
	return m.updateFn(collectionID, id, expectedVersion, p)
}

func (m *mockRepository) Delete(_ context.Context, role string, collectionID, id uuid.UUID, expectedVersion *int64) error {
	m.roles = append(m.roles, role)
	return m.deleteFn(collectionID, id, expectedVersion)
}

func (m *mockRepository) ListAssets(_ context.Context, role string, itemID uuid.UUID) ([]domitem.Asset, error) {
	m.roles = append(m.roles, role)
	if m.listAssetsFn != nil {
		return m.listAssetsFn(itemID)
	}
	return nil, nil
}

func (m *mockRepository) CreateAsset(_ context.Context, role string, a domitem.Asset) error {
	m.roles = append(m.roles, role)
	m.assets = append(m.assets, a)
	return nil
}

func (m *mockRepository) DeleteAsset(_ context.Context, role string, itemID uuid.UUID, key string) error {
	m.roles = append(m.roles, role)
	if m.deleteAssetFn != nil {
		return m.deleteAssetFn(itemID, key)
	}
	return nil
}

// mockResolver implements CollectionResolver over a fixed collection set.
type mockResolver struct {
	cols map[string]domcol.Collection
}

func (m *mockResolver) Get(_ context.Context, name string) (domcol.Collection, error) {
	col, ok := m.cols[name]
	if !ok {
		return domcol.Collection{}, fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
	}
	return col, nil
}

func mustPrincipal(t *testing.T, username string, groups ...string) principal.Principal {
	t.Helper()
	p, err := principal.New(username, groups)
	if err != nil {
		t.Fatalf("build principal: %v", err)
	}
	return p
}

func mustCollection(t *testing.T, name string, kind domcol.Kind) domcol.Collection {
	t.Helper()
	col, err := domcol.New(name, kind, "Title", "", 0)
	if err != nil {
		t.Fatalf("build collection: %v", err)
	}
	return col
}
