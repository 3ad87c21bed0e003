// Package collection orchestrates the collection catalog: name
// resolution, role provisioning, access checks and sharing.
package collection

import (
	"context"
	"fmt"
	"strings"

	"github.com/02JanDal/spatialvault/internal/domain"
	domcol "github.com/02JanDal/spatialvault/internal/domain/collection"
	"github.com/02JanDal/spatialvault/internal/domain/principal"
	"github.com/02JanDal/spatialvault/internal/domain/share"
	"github.com/02JanDal/spatialvault/internal/repository/catalog"
)

const (
	defaultLimit = 10
	maxLimit     = 10000
)

// Service handles collection catalog operations.
type Service struct {
	repo  Repository
	roles RoleManager
}

// New creates a collection service.
func New(repo Repository, roles RoleManager) *Service {
	return &Service{repo: repo, roles: roles}
}

// QualifyName resolves a possibly unqualified collection name against
// the requesting principal. A name without an owner segment belongs to
// the caller.
func QualifyName(p principal.Principal, name string) string {
	if strings.Contains(name, ":") {
		return name
	}
	return p.Username() + ":" + name
}

// Create provisions the owner's native role and registers a collection,
// creating its dedicated storage when the kind calls for one. The owner
// role gets full access to the physical table.
func (s *Service) Create(ctx context.Context, p principal.Principal, name, kind, title, description string, srid int) (domcol.Collection, error) {
	name = QualifyName(p, name)
	owner, _, err := domcol.ParseName(name)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("%w: %w", domain.ErrInvalidName, err)
	}
	if !p.CanActAs(owner) {
		return domcol.Collection{}, fmt.Errorf("principal %q cannot create collections for %q: %w",
			p.Username(), owner, domain.ErrForbidden)
	}

	k, err := domcol.ParseKind(kind)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("%w: %w", domain.ErrInvalidName, err)
	}
	col, err := domcol.New(name, k, title, description, srid)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("validate collection: %w: %w", domain.ErrInvalidName, err)
	}

	if err := s.roles.EnsureUserRole(ctx, p.Username()); err != nil {
		return domcol.Collection{}, fmt.Errorf("ensure user role: %w", err)
	}
	if owner != p.Username() {
		if err := s.roles.EnsureGroupRole(ctx, owner); err != nil {
			return domcol.Collection{}, fmt.Errorf("ensure group role: %w", err)
		}
		if err := s.roles.EnsureMembership(ctx, owner, p.Username()); err != nil {
			return domcol.Collection{}, fmt.Errorf("ensure group membership: %w", err)
		}
	}

	if err := s.repo.Create(ctx, col); err != nil {
		return domcol.Collection{}, fmt.Errorf("create collection: %w", err)
	}

	dedicated, err := col.Kind().DedicatedTable()
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("create collection: %w", err)
	}
	if dedicated {
		err := s.roles.GrantTablePrivileges(ctx, col.SchemaName(), col.TableName(), owner, []string{"ALL"})
		if err != nil {
			return domcol.Collection{}, fmt.Errorf("grant owner access: %w", err)
		}
	}

	return col, nil
}

// Get retrieves a collection the principal owns or can read.
func (s *Service) Get(ctx context.Context, p principal.Principal, name string) (domcol.Collection, error) {
	col, err := s.repo.Get(ctx, QualifyName(p, name))
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	if err := s.authorizeRead(ctx, p, col); err != nil {
		return domcol.Collection{}, err
	}
	return col, nil
}

// List returns the collections visible to the principal, newest first.
func (s *Service) List(ctx context.Context, p principal.Principal, limit, offset int) ([]domcol.Collection, error) {
	limit, offset, err := normalizePage(limit, offset)
	if err != nil {
		return nil, err
	}
	cols, err := s.repo.List(ctx, p.Username(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return cols, nil
}

// Update applies a partial update. A new name is qualified against the
// principal before the rename.
func (s *Service) Update(ctx context.Context, p principal.Principal, name string, expectedVersion *int64, params catalog.UpdateParams) (domcol.Collection, error) {
	if params.NewName != nil {
		qualified := QualifyName(p, *params.NewName)
		params.NewName = &qualified
	}
	col, err := s.repo.Update(ctx, p.Username(), QualifyName(p, name), expectedVersion, params)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("update collection: %w", err)
	}
	return col, nil
}

// Replace overwrites the mutable metadata of a collection.
func (s *Service) Replace(ctx context.Context, p principal.Principal, name string, expectedVersion *int64, title, description string) (domcol.Collection, error) {
	col, err := s.repo.Replace(ctx, p.Username(), QualifyName(p, name), expectedVersion, title, description)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("replace collection: %w", err)
	}
	return col, nil
}

// Delete removes a collection and its dedicated storage.
func (s *Service) Delete(ctx context.Context, p principal.Principal, name string, expectedVersion *int64) error {
	if err := s.repo.Delete(ctx, p.Username(), QualifyName(p, name), expectedVersion); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

// ResolveAlias returns the current name a superseded name redirects to.
func (s *Service) ResolveAlias(ctx context.Context, p principal.Principal, name string) (string, bool, error) {
	target, found, err := s.repo.ResolveAlias(ctx, QualifyName(p, name))
	if err != nil {
		return "", false, fmt.Errorf("resolve alias: %w", err)
	}
	return target, found, nil
}

// Extent computes the collection's spatial and temporal coverage.
func (s *Service) Extent(ctx context.Context, p principal.Principal, name string) (domcol.Extent, error) {
	col, err := s.Get(ctx, p, name)
	if err != nil {
		return domcol.Extent{}, err
	}
	ext, err := s.repo.ComputeExtent(ctx, col)
	if err != nil {
		return domcol.Extent{}, fmt.Errorf("compute extent: %w", err)
	}
	return ext, nil
}

// StorageSRID reports the spatial reference of the collection's physical
// storage.
func (s *Service) StorageSRID(ctx context.Context, p principal.Principal, name string) (int, error) {
	col, err := s.Get(ctx, p, name)
	if err != nil {
		return 0, err
	}
	srid, err := s.repo.StorageSRID(ctx, col)
	if err != nil {
		return 0, fmt.Errorf("storage srid: %w", err)
	}
	return srid, nil
}

// ListShares derives the collection's share list from live grants.
// Only the owner sees it.
func (s *Service) ListShares(ctx context.Context, p principal.Principal, name string) ([]share.Entry, error) {
	col, err := s.ownedCollection(ctx, p, name)
	if err != nil {
		return nil, err
	}
	entries, err := s.roles.ListShares(ctx, col.SchemaName(), col.TableName(), col.Owner())
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	return entries, nil
}

// AddShare grants a principal access to the collection's storage. The
// grantee role must already exist; sharing never provisions roles.
func (s *Service) AddShare(ctx context.Context, p principal.Principal, name, grantee, permission string) error {
	col, err := s.ownedCollection(ctx, p, name)
	if err != nil {
		return err
	}

	perm, err := share.ParsePermission(permission)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidName, err)
	}
	exists, err := s.roles.RoleExists(ctx, grantee)
	if err != nil {
		return fmt.Errorf("check grantee role: %w", err)
	}
	if !exists {
		return fmt.Errorf("grantee %q: %w", grantee, domain.ErrNotFound)
	}

	err = s.roles.GrantTablePrivileges(ctx, col.SchemaName(), col.TableName(), grantee, perm.Privileges())
	if err != nil {
		return fmt.Errorf("grant share: %w", err)
	}
	return nil
}

// RemoveShare revokes all of a principal's access to the collection's
// storage.
func (s *Service) RemoveShare(ctx context.Context, p principal.Principal, name, grantee string) error {
	col, err := s.ownedCollection(ctx, p, name)
	if err != nil {
		return err
	}
	if err := s.roles.RevokeTablePrivileges(ctx, col.SchemaName(), col.TableName(), grantee); err != nil {
		return fmt.Errorf("revoke share: %w", err)
	}
	return nil
}

func (s *Service) ownedCollection(ctx context.Context, p principal.Principal, name string) (domcol.Collection, error) {
	col, err := s.repo.Get(ctx, QualifyName(p, name))
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	if !p.CanActAs(col.Owner()) {
		return domcol.Collection{}, fmt.Errorf("only owner can manage shares: %w", domain.ErrForbidden)
	}
	return col, nil
}

func (s *Service) authorizeRead(ctx context.Context, p principal.Principal, col domcol.Collection) error {
	if p.CanActAs(col.Owner()) {
		return nil
	}
	has, err := s.roles.HasTablePrivilege(ctx, p.Username(), col.SchemaName(), col.TableName(), "SELECT")
	if err != nil {
		return fmt.Errorf("check read access: %w", err)
	}
	if !has {
		return fmt.Errorf("collection %q: %w", col.Name(), domain.ErrForbidden)
	}
	return nil
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
