// Package catalog persists the collection catalog, its aliases and the
// per-collection physical storage lifecycle.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/02JanDal/spatialvault/internal/db"
	"github.com/02JanDal/spatialvault/internal/domain"
	"github.com/02JanDal/spatialvault/internal/domain/collection"
)

// store is the narrow database contract the repository consumes.
type store interface {
	InTx(ctx context.Context, fn func(q db.Querier) error) error
	Querier() db.Querier
}

// Repo persists collections in the spatialvault catalog schema.
type Repo struct {
	s store
}

// New creates a catalog repository.
func New(s store) *Repo {
	return &Repo{s: s}
}

// UpdateParams carries the optional fields of a partial update. Nil
// members keep the current value; NewName triggers an alias-preserving
// rename.
type UpdateParams struct {
	Title       *string
	Description *string
	NewName     *string
}

// Create inserts the catalog row and, for dedicated-table collections,
// creates the physical table plus its spatial index in the same
// transaction, so metadata and storage appear together or not at all.
func (r *Repo) Create(ctx context.Context, col collection.Collection) error {
	dedicated, err := col.Kind().DedicatedTable()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidName, err)
	}
	if dedicated {
		if !db.IsValidIdentifier(col.SchemaName()) {
			return fmt.Errorf("%w: invalid schema name %q", domain.ErrInvalidName, col.SchemaName())
		}
		if !db.IsValidIdentifier(col.TableName()) {
			return fmt.Errorf("%w: invalid table name %q", domain.ErrInvalidName, col.TableName())
		}
	}

	return r.s.InTx(ctx, func(q db.Querier) error {
		_, err := q.Exec(ctx, `
			INSERT INTO spatialvault.collections
			(id, canonical_name, owner, schema_name, table_name, collection_type,
			 title, description, srid, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			col.ID(), col.Name(), col.Owner(), col.SchemaName(), col.TableName(),
			col.Kind().String(), col.Title(), col.Description(), col.SRID(),
			col.Version(), col.CreatedAt(), col.UpdatedAt())
		if err != nil {
			err = db.Normalize(db.OpExec, err)
			if errors.Is(err, db.ErrDuplicate) {
				return fmt.Errorf("collection %q: %w", col.Name(), domain.ErrAlreadyExists)
			}
			return err
		}

		if !dedicated {
			return nil
		}

		target := db.QuoteQualified(col.SchemaName(), col.TableName())
		createSQL := fmt.Sprintf(`
			CREATE TABLE %s (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				geometry geometry(Geometry, %d) NOT NULL,
				properties JSONB DEFAULT '{}',
				version BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMPTZ DEFAULT NOW(),
				updated_at TIMESTAMPTZ DEFAULT NOW()
			)`, target, col.SRID())
		if _, err := q.Exec(ctx, createSQL); err != nil {
			return db.Normalize(db.OpExec, err)
		}
		indexSQL := fmt.Sprintf("CREATE INDEX ON %s USING GIST(geometry)", target)
		if _, err := q.Exec(ctx, indexSQL); err != nil {
			return db.Normalize(db.OpExec, err)
		}
		return nil
	})
}

// Get returns the active collection with the given canonical name.
func (r *Repo) Get(ctx context.Context, name string) (collection.Collection, error) {
	row := r.s.Querier().QueryRow(ctx,
		"SELECT "+collectionColumns+" FROM spatialvault.collections WHERE canonical_name = $1",
		name)
	col, err := scanCollection(row)
	if err != nil {
		err = db.Normalize(db.OpQuery, err)
		if errors.Is(err, db.ErrNoRows) {
			return collection.Collection{}, fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
		}
		return collection.Collection{}, err
	}
	return col, nil
}

// List returns the collections the user owns or can read through a live
// grant, newest first.
func (r *Repo) List(ctx context.Context, username string, limit, offset int) ([]collection.Collection, error) {
	rows, err := r.s.Querier().Query(ctx, `
		SELECT `+collectionColumns+`
		FROM spatialvault.collections c
		WHERE c.owner = $1
		   OR (to_regclass(quote_ident(c.schema_name) || '.' || quote_ident(c.table_name)) IS NOT NULL
		       AND pg_catalog.has_table_privilege($1, quote_ident(c.schema_name) || '.' || quote_ident(c.table_name), 'SELECT'))
		ORDER BY c.created_at DESC
		LIMIT $2 OFFSET $3`,
		username, limit, offset)
	if err != nil {
		return nil, db.Normalize(db.OpQuery, err)
	}
	defer rows.Close()

	var cols []collection.Collection
	for rows.Next() {
		col, err := scanCollection(rows)
		if err != nil {
			return nil, db.Normalize(db.OpScanRow, err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Normalize(db.OpQuery, err)
	}
	return cols, nil
}

// Update applies a partial update under a row lock, checking existence,
// then the expected version, then ownership, in that order. A new name
// writes an alias from the old name before the row changes.
func (r *Repo) Update(ctx context.Context, username, name string, expectedVersion *int64, p UpdateParams) (collection.Collection, error) {
	var updated collection.Collection
	err := r.s.InTx(ctx, func(q db.Querier) error {
		current, err := r.lockCurrent(ctx, q, name, expectedVersion, username)
		if err != nil {
			return err
		}

		finalName := name
		if p.NewName != nil {
			if _, _, err := collection.ParseName(*p.NewName); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrInvalidName, err)
			}
			_, err := q.Exec(ctx,
				"INSERT INTO spatialvault.collection_aliases (old_name, new_name) VALUES ($1, $2)",
				name, *p.NewName)
			if err != nil {
				return db.Normalize(db.OpExec, err)
			}
			finalName = *p.NewName
		}

		row := q.QueryRow(ctx, `
			UPDATE spatialvault.collections
			SET canonical_name = $1,
			    title = COALESCE($2, title),
			    description = COALESCE($3, description),
			    version = version + 1,
			    updated_at = NOW()
			WHERE id = $4
			RETURNING `+collectionColumns,
			finalName, p.Title, p.Description, current.ID())
		updated, err = scanCollection(row)
		if err != nil {
			err = db.Normalize(db.OpExec, err)
			if errors.Is(err, db.ErrDuplicate) {
				return fmt.Errorf("collection %q: %w", finalName, domain.ErrAlreadyExists)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return collection.Collection{}, err
	}
	return updated, nil
}

// Replace overwrites the mutable fields under the same lock and check
// order as Update.
func (r *Repo) Replace(ctx context.Context, username, name string, expectedVersion *int64, title, description string) (collection.Collection, error) {
	var updated collection.Collection
	err := r.s.InTx(ctx, func(q db.Querier) error {
		current, err := r.lockCurrent(ctx, q, name, expectedVersion, username)
		if err != nil {
			return err
		}

		row := q.QueryRow(ctx, `
			UPDATE spatialvault.collections
			SET title = $1,
			    description = $2,
			    version = version + 1,
			    updated_at = NOW()
			WHERE id = $3
			RETURNING `+collectionColumns,
			title, description, current.ID())
		updated, err = scanCollection(row)
		if err != nil {
			return db.Normalize(db.OpExec, err)
		}
		return nil
	})
	if err != nil {
		return collection.Collection{}, err
	}
	return updated, nil
}

// Delete removes the catalog row after the usual checks. Dedicated
// tables are dropped in the same transaction; shared items go away via
// the foreign key cascade.
func (r *Repo) Delete(ctx context.Context, username, name string, expectedVersion *int64) error {
	return r.s.InTx(ctx, func(q db.Querier) error {
		current, err := r.lockCurrent(ctx, q, name, expectedVersion, username)
		if err != nil {
			return err
		}

		dedicated, err := current.Kind().DedicatedTable()
		if err != nil {
			return fmt.Errorf("collection %q: %w", name, err)
		}
		if dedicated {
			dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE",
				db.QuoteQualified(current.SchemaName(), current.TableName()))
			if _, err := q.Exec(ctx, dropSQL); err != nil {
				return db.Normalize(db.OpExec, err)
			}
		}

		if _, err := q.Exec(ctx,
			"DELETE FROM spatialvault.collections WHERE id = $1", current.ID()); err != nil {
			return db.Normalize(db.OpExec, err)
		}
		return nil
	})
}

// lockCurrent loads the collection row FOR UPDATE and runs the fixed
// check order: existence, expected version, ownership.
func (r *Repo) lockCurrent(ctx context.Context, q db.Querier, name string, expectedVersion *int64, username string) (collection.Collection, error) {
	row := q.QueryRow(ctx,
		"SELECT "+collectionColumns+" FROM spatialvault.collections WHERE canonical_name = $1 FOR UPDATE",
		name)
	current, err := scanCollection(row)
	if err != nil {
		err = db.Normalize(db.OpQuery, err)
		if errors.Is(err, db.ErrNoRows) {
			return collection.Collection{}, fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
		}
		return collection.Collection{}, err
	}
	if expectedVersion != nil && current.Version() != *expectedVersion {
		return collection.Collection{}, domain.NewVersionConflict(current.Version())
	}
	if current.Owner() != username {
		return collection.Collection{}, fmt.Errorf("only owner can modify collection: %w", domain.ErrForbidden)
	}
	return current, nil
}

// ResolveAlias returns the redirect target for a superseded name. A name
// under which an active collection exists never redirects: new
// collections take priority over dangling aliases.
func (r *Repo) ResolveAlias(ctx context.Context, name string) (string, bool, error) {
	q := r.s.Querier()

	var active bool
	err := q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM spatialvault.collections WHERE canonical_name = $1)", name,
	).Scan(&active)
	if err != nil {
		return "", false, db.Normalize(db.OpQuery, err)
	}
	if active {
		return "", false, nil
	}

	var newName string
	err = q.QueryRow(ctx, `
		SELECT new_name FROM spatialvault.collection_aliases
		WHERE old_name = $1
		ORDER BY created_at DESC
		LIMIT 1`, name).Scan(&newName)
	if err != nil {
		err = db.Normalize(db.OpQuery, err)
		if errors.Is(err, db.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return newName, true, nil
}

// ComputeExtent aggregates the collection's spatial coverage, and for
// shared-storage collections its datetime range, transformed to CRS84.
func (r *Repo) ComputeExtent(ctx context.Context, col collection.Collection) (collection.Extent, error) {
	q := r.s.Querier()
	var ext collection.Extent

	dedicated, err := col.Kind().DedicatedTable()
	if err != nil {
		return collection.Extent{}, fmt.Errorf("collection %q: %w", col.Name(), err)
	}

	var minX, minY, maxX, maxY *float64
	if dedicated {
		sql := fmt.Sprintf(`
			SELECT ST_XMin(extent), ST_YMin(extent), ST_XMax(extent), ST_YMax(extent)
			FROM (SELECT ST_Extent(ST_Transform(geometry, 4326)) AS extent FROM %s) sub`,
			db.QuoteQualified(col.SchemaName(), col.TableName()))
		err = q.QueryRow(ctx, sql).Scan(&minX, &minY, &maxX, &maxY)
	} else {
		err = q.QueryRow(ctx, `
			SELECT ST_XMin(extent), ST_YMin(extent), ST_XMax(extent), ST_YMax(extent)
			FROM (
				SELECT ST_Extent(ST_Transform(geometry, 4326)) AS extent
				FROM spatialvault.items
				WHERE collection_id = $1
			) sub`, col.ID()).Scan(&minX, &minY, &maxX, &maxY)
	}
	if err != nil && !errors.Is(db.Normalize(db.OpQuery, err), db.ErrNoRows) {
		return collection.Extent{}, db.Normalize(db.OpQuery, err)
	}
	if minX != nil && minY != nil && maxX != nil && maxY != nil {
		ext.Spatial = &collection.SpatialExtent{MinX: *minX, MinY: *minY, MaxX: *maxX, MaxY: *maxY}
	}

	if !dedicated {
		var minDt, maxDt *time.Time
		err := q.QueryRow(ctx, `
			SELECT MIN(datetime), MAX(datetime)
			FROM spatialvault.items
			WHERE collection_id = $1 AND datetime IS NOT NULL`, col.ID(),
		).Scan(&minDt, &maxDt)
		if err != nil && !errors.Is(db.Normalize(db.OpQuery, err), db.ErrNoRows) {
			return collection.Extent{}, db.Normalize(db.OpQuery, err)
		}
		if minDt != nil || maxDt != nil {
			ext.Temporal = &collection.TemporalExtent{Start: minDt, End: maxDt}
		}
	}

	return ext, nil
}

// StorageSRID probes the spatial reference of the physical geometry
// column. Shared storage is fixed at 4326; an empty dedicated table
// reports the collection's declared value.
func (r *Repo) StorageSRID(ctx context.Context, col collection.Collection) (int, error) {
	dedicated, err := col.Kind().DedicatedTable()
	if err != nil {
		return 0, fmt.Errorf("collection %q: %w", col.Name(), err)
	}
	if !dedicated {
		return collection.DefaultSRID, nil
	}

	sql := fmt.Sprintf("SELECT ST_SRID(geometry) FROM %s LIMIT 1",
		db.QuoteQualified(col.SchemaName(), col.TableName()))
	var srid int
	if err := r.s.Querier().QueryRow(ctx, sql).Scan(&srid); err != nil {
		err = db.Normalize(db.OpQuery, err)
		if errors.Is(err, db.ErrNoRows) {
			return col.SRID(), nil
		}
		return 0, err
	}
	return srid, nil
}
