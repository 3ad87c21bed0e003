package collection

import (
	"context"

	domcol "github.com/02JanDal/spatialvault/internal/domain/collection"
	"github.com/02JanDal/spatialvault/internal/domain/share"
	"github.com/02JanDal/spatialvault/internal/repository/catalog"
)

// Repository defines the catalog storage contract for collections.
type Repository interface {
	Create(ctx context.Context, col domcol.Collection) error
	Get(ctx context.Context, name string) (domcol.Collection, error)
	List(ctx context.Context, username string, limit, offset int) ([]domcol.Collection, error)
	Update(ctx context.Context, username, name string, expectedVersion *int64, p catalog.UpdateParams) (domcol.Collection, error)
	Replace(ctx context.Context, username, name string, expectedVersion *int64, title, description string) (domcol.Collection, error)
	Delete(ctx context.Context, username, name string, expectedVersion *int64) error
	ResolveAlias(ctx context.Context, name string) (string, bool, error)
	ComputeExtent(ctx context.Context, col domcol.Collection) (domcol.Extent, error)
	StorageSRID(ctx context.Context, col domcol.Collection) (int, error)
}

// RoleManager defines the native role and grant contract.
type RoleManager interface {
	EnsureUserRole(ctx context.Context, username string) error
	EnsureGroupRole(ctx context.Context, group string) error
	EnsureMembership(ctx context.Context, group, member string) error
	RoleExists(ctx context.Context, name string) (bool, error)
	HasTablePrivilege(ctx context.Context, role, schema, table, privilege string) (bool, error)
	GrantTablePrivileges(ctx context.Context, schema, table, role string, privileges []string) error
	RevokeTablePrivileges(ctx context.Context, schema, table, role string) error
	ListShares(ctx context.Context, schema, table, owner string) ([]share.Entry, error)
}
