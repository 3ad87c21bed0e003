package collection

import (
	"context"
	"testing"

	domcol "github.com/02JanDal/spatialvault/internal/domain/collection"
	"github.com/02JanDal/spatialvault/internal/domain/principal"
	"github.com/02JanDal/spatialvault/internal/domain/share"
	"github.com/02JanDal/spatialvault/internal/repository/catalog"
)

// mockRepository implements Repository with overridable functions.
type mockRepository struct {
	createFn  func(col domcol.Collection) error
	getFn     func(name string) (domcol.Collection, error)
	listFn    func(username string, limit, offset int) ([]domcol.Collection, error)
	updateFn  func(username, name string, expectedVersion *int64, p catalog.UpdateParams) (domcol.Collection, error)
	replaceFn func(username, name string, expectedVersion *int64, title, description string) (domcol.Collection, error)
	deleteFn  func(username, name string, expectedVersion *int64) error
	aliasFn   func(name string) (string, bool, error)
	extentFn  func(col domcol.Collection) (domcol.Extent, error)
	sridFn    func(col domcol.Collection) (int, error)

	created []domcol.Collection
}

func (m *mockRepository) Create(_ context.Context, col domcol.Collection) error {
	m.created = append(m.created, col)
	if m.createFn != nil {
		return m.createFn(col)
	}
	return nil
}

func (m *mockRepository) Get(_ context.Context, name string) (domcol.Collection, error) {
	return m.getFn(name)
}

func (m *mockRepository) List(_ context.Context, username string, limit, offset int) ([]domcol.Collection, error) {
	return m.listFn(username, limit, offset)
}

func (m *mockRepository) Update(_ context.Context, username, name string, expectedVersion *int64, p catalog.UpdateParams) (domcol.Collection, error) {
	return m.updateFn(username, name, expectedVersion, p)
}

func (m *mockRepository) Replace(_ context.Context, username, name string, expectedVersion *int64, title, description string) (domcol.Collection, error) {
	return m.replaceFn(username, name, expectedVersion, title, description)
}

func (m *mockRepository) Delete(_ context.Context, username, name string, expectedVersion *int64) error {
	return m.deleteFn(username, name, expectedVersion)
}

func (m *mockRepository) ResolveAlias(_ context.Context, name string) (string, bool, error) {
	return m.aliasFn(name)
}

func (m *mockRepository) ComputeExtent(_ context.Context, col domcol.Collection) (domcol.Extent, error) {
	return m.extentFn(col)
}

func (m *mockRepository) StorageSRID(_ context.Context, col domcol.Collection) (int, error) {
	return m.sridFn(col)
}

// mockRoles implements RoleManager, recording provisioning and grants.
type mockRoles struct {
	userRoles   []string
	groupRoles  []string
	memberships []membershipCall
	grants      []grantCall
	revokes     []grantCall

	roleExistsFn func(name string) (bool, error)
	hasPrivFn    func(role, schema, table, privilege string) (bool, error)
	listSharesFn func(schema, table, owner string) ([]share.Entry, error)
}

type grantCall struct {
	schema, table, role string
	privileges          []string
}

type membershipCall struct {
	group, member string
}

func (m *mockRoles) EnsureUserRole(_ context.Context, username string) error {
	m.userRoles = append(m.userRoles, username)
	return nil
}

func (m *mockRoles) EnsureGroupRole(_ context.Context, group string) error {
	m.groupRoles = append(m.groupRoles, group)
	return nil
}

func (m *mockRoles) EnsureMembership(_ context.Context, group, member string) error {
	m.memberships = append(m.memberships, membershipCall{group: group, member: member})
	return nil
}

func (m *mockRoles) RoleExists(_ context.Context, name string) (bool, error) {
	if m.roleExistsFn != nil {
		return m.roleExistsFn(name)
	}
	return true, nil
}

func (m *mockRoles) HasTablePrivilege(_ context.Context, role, schema, table, privilege string) (bool, error) {
	if m.hasPrivFn != nil {
		return m.hasPrivFn(role, schema, table, privilege)
	}
	return false, nil
}

func (m *mockRoles) GrantTablePrivileges(_ context.Context, schema, table, role string, privileges []string) error {
	m.grants = append(m.grants, grantCall{schema, table, role, privileges})
	return nil
}

func (m *mockRoles) RevokeTablePrivileges(_ context.Context, schema, table, role string) error {
	m.revokes = append(m.revokes, grantCall{schema: schema, table: table, role: role})
	return nil
}

func (m *mockRoles) ListShares(_ context.Context, schema, table, owner string) ([]share.Entry, error) {
	if m.listSharesFn != nil {
		return m.listSharesFn(schema, table, owner)
	}
	return nil, nil
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
