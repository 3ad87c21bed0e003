// Package roles bridges application principals onto native PostgreSQL
// roles and grants.
package roles

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/02JanDal/spatialvault/internal/db"
	"github.com/02JanDal/spatialvault/internal/domain"
	"github.com/02JanDal/spatialvault/internal/domain/share"
)

// Repo manages roles and table grants through a querier.
type Repo struct {
	q db.Querier
}

// New creates a roles repository.
func New(q db.Querier) *Repo {
	return &Repo{q: q}
}

// EnsureUserRole idempotently provisions a native role and private schema
// for a user.
func (r *Repo) EnsureUserRole(ctx context.Context, username string) error {
	return r.ensureRole(ctx, username, false)
}

// EnsureGroupRole idempotently provisions a native role and private schema
// for a group.
func (r *Repo) EnsureGroupRole(ctx context.Context, group string) error {
	return r.ensureRole(ctx, group, true)
}

func (r *Repo) ensureRole(ctx context.Context, name string, isGroup bool) error {
	if !db.IsValidIdentifier(name) {
		return fmt.Errorf("%w: invalid role name %q", domain.ErrInvalidName, name)
	}
	if _, err := r.q.Exec(ctx, "SELECT spatialvault.ensure_role($1, $2)", name, isGroup); err != nil {
		return db.Normalize(db.OpExec, err)
	}
	return nil
}

// EnsureMembership idempotently grants the group role to the member role,
// so the member's native role inherits the group's table access.
func (r *Repo) EnsureMembership(ctx context.Context, group, member string) error {
	if !db.IsValidIdentifier(group) || !db.IsValidIdentifier(member) {
		return fmt.Errorf("%w: invalid group or member name", domain.ErrInvalidName)
	}
	sql := fmt.Sprintf("GRANT %s TO %s", db.QuoteIdentifier(group), db.QuoteIdentifier(member))
	if _, err := r.q.Exec(ctx, sql); err != nil {
		return db.Normalize(db.OpExec, err)
	}
	return nil
}

// RoleExists reports whether a native role with the given name exists.
func (r *Repo) RoleExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_roles WHERE rolname = $1)", name,
	).Scan(&exists)
	if err != nil {
		return false, db.Normalize(db.OpQuery, err)
	}
	return exists, nil
}

// HasTablePrivilege reports whether a role holds a privilege on a table.
// A table that does not exist yields false rather than an error.
func (r *Repo) HasTablePrivilege(ctx context.Context, role, schema, table, privilege string) (bool, error) {
	var has bool
	err := r.q.QueryRow(ctx, `
		SELECT to_regclass(quote_ident($2) || '.' || quote_ident($3)) IS NOT NULL
		   AND pg_catalog.has_table_privilege($1, quote_ident($2) || '.' || quote_ident($3), $4)`,
		role, schema, table, privilege).Scan(&has)
	if err != nil {
		return false, db.Normalize(db.OpQuery, err)
	}
	return has, nil
}

// GrantTablePrivileges grants schema usage and the requested table
// privileges to a role.
func (r *Repo) GrantTablePrivileges(ctx context.Context, schema, table, role string, privileges []string) error {
	if !db.IsValidIdentifier(schema) || !db.IsValidIdentifier(table) || !db.IsValidIdentifier(role) {
		return fmt.Errorf("%w: invalid schema, table or role name", domain.ErrInvalidName)
	}

	// The role needs USAGE on the schema before table grants take effect.
	schemaSQL := fmt.Sprintf("GRANT USAGE ON SCHEMA %s TO %s",
		db.QuoteIdentifier(schema), db.QuoteIdentifier(role))
	if _, err := r.q.Exec(ctx, schemaSQL); err != nil {
		return db.Normalize(db.OpExec, err)
	}

	tableSQL := fmt.Sprintf("GRANT %s ON %s TO %s",
		strings.Join(privileges, ", "),
		db.QuoteQualified(schema, table),
		db.QuoteIdentifier(role))
	if _, err := r.q.Exec(ctx, tableSQL); err != nil {
		return db.Normalize(db.OpExec, err)
	}
	return nil
}

// RevokeTablePrivileges revokes all table privileges from a role.
func (r *Repo) RevokeTablePrivileges(ctx context.Context, schema, table, role string) error {
	if !db.IsValidIdentifier(schema) || !db.IsValidIdentifier(table) || !db.IsValidIdentifier(role) {
		return fmt.Errorf("%w: invalid schema, table or role name", domain.ErrInvalidName)
	}
	sql := fmt.Sprintf("REVOKE ALL ON %s FROM %s",
		db.QuoteQualified(schema, table), db.QuoteIdentifier(role))
	if _, err := r.q.Exec(ctx, sql); err != nil {
		return db.Normalize(db.OpExec, err)
	}
	return nil
}

// ListShares derives the share list from live grants on the table,
// excluding the owner and PUBLIC. A grantee with any mutating privilege
// classifies as write; a grantee role with member edges classifies as a
// group.
func (r *Repo) ListShares(ctx context.Context, schema, table, owner string) ([]share.Entry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT grantee, privilege_type
		FROM information_schema.table_privileges
		WHERE table_schema = $1
		  AND table_name = $2
		  AND grantee != $3
		  AND grantee != 'PUBLIC'
		ORDER BY grantee, privilege_type`,
		schema, table, owner)
	if err != nil {
		return nil, db.Normalize(db.OpQuery, err)
	}
	defer rows.Close()

	grants := map[string][]string{}
	for rows.Next() {
		var grantee, privilege string
		if err := rows.Scan(&grantee, &privilege); err != nil {
			return nil, db.Normalize(db.OpScanRow, err)
		}
		grants[grantee] = append(grants[grantee], privilege)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Normalize(db.OpQuery, err)
	}

	grantees := make([]string, 0, len(grants))
	for g := range grants {
		grantees = append(grantees, g)
	}
	sort.Strings(grantees)

	entries := make([]share.Entry, 0, len(grantees))
	for _, grantee := range grantees {
		hasMembers, err := r.hasMembers(ctx, grantee)
		if err != nil {
			return nil, err
		}
		entries = append(entries, share.Classify(grantee, grants[grantee], hasMembers))
	}
	return entries, nil
}

func (r *Repo) hasMembers(ctx context.Context, role string) (bool, error) {
	var hasMembers bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM pg_auth_members
			WHERE roleid = (SELECT oid FROM pg_roles WHERE rolname = $1)
		)`, role).Scan(&hasMembers)
	if err != nil {
		return false, db.Normalize(db.OpQuery, err)
	}
	return hasMembers, nil
}
