// Package item persists raster and point cloud records in the shared
// items table, scoped by collection id, plus their attached assets.
// Every operation runs under the requesting principal's native role.
package item

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/02JanDal/spatialvault/internal/db"
	"github.com/02JanDal/spatialvault/internal/domain"
	"github.com/02JanDal/spatialvault/internal/domain/item"
)

// store is the narrow database contract the repository consumes.
type store interface {
	AsRole(ctx context.Context, role string, fn func(q db.Querier) error) error
}

// Repo reads and writes items and assets in the shared storage tables.
type Repo struct {
	s store
}

// New creates an item repository.
func New(s store) *Repo {
	return &Repo{s: s}
}

// Query narrows an item listing. Datetime bounds are half-open on either
// side when nil; FilterSQL is an already compiled predicate.
type Query struct {
	BBox          *[4]float64
	DatetimeStart *time.Time
	DatetimeEnd   *time.Time
	FilterSQL     string
	Limit         int
	Offset        int
}

// List returns a page of a collection's items plus the total match count.
func (r *Repo) List(ctx context.Context, role string, collectionID uuid.UUID, q Query) (item.Page, error) {
	where := db.NewWhere()
	where.Add("collection_id = ?", collectionID)
	if q.BBox != nil {
		where.Add("ST_Intersects(geometry, ST_MakeEnvelope(?, ?, ?, ?, 4326))",
			q.BBox[0], q.BBox[1], q.BBox[2], q.BBox[3])
	}
	if q.DatetimeStart != nil {
		where.Add("datetime >= ?", *q.DatetimeStart)
	}
	if q.DatetimeEnd != nil {
		where.Add("datetime <= ?", *q.DatetimeEnd)
	}
	where.AddRaw(q.FilterSQL)

	var page item.Page
	err := r.s.AsRole(ctx, role, func(dbq db.Querier) error {
		countSQL := "SELECT COUNT(*) FROM spatialvault.items " + where.SQL()
		if err := dbq.QueryRow(ctx, countSQL, where.Args()...).Scan(&page.Total); err != nil {
			return db.Normalize(db.OpQuery, err)
		}

		listSQL := fmt.Sprintf(`
			SELECT %s FROM spatialvault.items %s
			ORDER BY created_at DESC
			LIMIT %s OFFSET %s`,
			itemColumns, where.SQL(), where.Bind(q.Limit), where.Bind(q.Offset))
		rows, err := dbq.Query(ctx, listSQL, where.Args()...)
		if err != nil {
			return db.Normalize(db.OpQuery, err)
		}
		defer rows.Close()

		for rows.Next() {
			it, err := scanItem(rows)
			if err != nil {
				return db.Normalize(db.OpScanRow, err)
			}
			page.Items = append(page.Items, it)
		}
		return db.Normalize(db.OpQuery, rows.Err())
	})
	if err != nil {
		return item.Page{}, err
	}
	return page, nil
}

// Get returns a single item by id within a collection.
func (r *Repo) Get(ctx context.Context, role string, collectionID, id uuid.UUID) (item.Item, error) {
	var it item.Item
	err := r.s.AsRole(ctx, role, func(q db.Querier) error {
		sql := "SELECT " + itemColumns + " FROM spatialvault.items WHERE collection_id = $1 AND id = $2"
		var err error
		it, err = scanItem(q.QueryRow(ctx, sql, collectionID, id))
		if err != nil {
			err = db.Normalize(db.OpQuery, err)
			if errors.Is(err, db.ErrNoRows) {
				return fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return item.Item{}, err
	}
	return it, nil
}

// Create inserts an item into the shared table.
func (r *Repo) Create(ctx context.Context, role string, it item.Item) error {
	geom, err := json.Marshal(geojson.NewGeometry(it.Geometry()))
	if err != nil {
		return fmt.Errorf("encode geometry: %w", err)
	}
	props, err := json.Marshal(it.Properties())
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}

	return r.s.AsRole(ctx, role, func(q db.Querier) error {
		_, err := q.Exec(ctx, `
			INSERT INTO spatialvault.items
			(id, collection_id, geometry, datetime, properties, version, created_at, updated_at)
			VALUES ($1, $2, ST_SetSRID(ST_GeomFromGeoJSON($3), 4326), $4, $5, $6, $7, $8)`,
			it.ID(), it.CollectionID(), string(geom), it.Datetime(), string(props),
			it.Version(), it.CreatedAt(), it.UpdatedAt())
		if err != nil {
			err = db.Normalize(db.OpExec, err)
			if errors.Is(err, db.ErrDuplicate) {
				return fmt.Errorf("item %s: %w", it.ID(), domain.ErrAlreadyExists)
			}
			return err
		}
		return nil
	})
}

// UpdateParams carries the replaceable fields of an item update. Nil
// geometry keeps the current footprint.
type UpdateParams struct {
	Geometry   *geojson.Geometry
	Datetime   *time.Time
	Properties map[string]any
}

// Update replaces an item's payload under a row lock, checking existence
// and then the expected version.
func (r *Repo) Update(ctx context.Context, role string, collectionID, id uuid.UUID, expectedVersion *int64, p UpdateParams) (item.Item, error) {
	var updated item.Item
	err := r.s.AsRole(ctx, role, func(q db.Querier) error {
		if err := lockVersion(ctx, q, collectionID, id, expectedVersion); err != nil {
			return err
		}

		props, err := json.Marshal(p.Properties)
		if err != nil {
			return fmt.Errorf("encode properties: %w", err)
		}
		set := "datetime = $3, properties = $4, version = version + 1, updated_at = NOW()"
		args := []any{collectionID, id, p.Datetime, string(props)}
		if p.Geometry != nil {
			geom, err := json.Marshal(p.Geometry)
			if err != nil {
				return fmt.Errorf("encode geometry: %w", err)
			}
			set = "geometry = ST_SetSRID(ST_GeomFromGeoJSON($5), 4326), " + set
			args = append(args, string(geom))
		}

		sql := fmt.Sprintf(`
			UPDATE spatialvault.items SET %s
			WHERE collection_id = $1 AND id = $2
			RETURNING %s`, set, itemColumns)
		updated, err = scanItem(q.QueryRow(ctx, sql, args...))
		if err != nil {
			return db.Normalize(db.OpExec, err)
		}
		return nil
	})
	if err != nil {
		return item.Item{}, err
	}
	return updated, nil
}

// Delete removes an item and, via the foreign key cascade, its assets.
func (r *Repo) Delete(ctx context.Context, role string, collectionID, id uuid.UUID, expectedVersion *int64) error {
	return r.s.AsRole(ctx, role, func(q db.Querier) error {
		if err := lockVersion(ctx, q, collectionID, id, expectedVersion); err != nil {
			return err
		}
		_, err := q.Exec(ctx,
			"DELETE FROM spatialvault.items WHERE collection_id = $1 AND id = $2",
			collectionID, id)
		return db.Normalize(db.OpExec, err)
	})
}

// lockVersion loads the current version FOR UPDATE and runs the fixed
// check order: existence, then expected version.
func lockVersion(ctx context.Context, q db.Querier, collectionID, id uuid.UUID, expectedVersion *int64) error {
	var current int64
	err := q.QueryRow(ctx,
		"SELECT version FROM spatialvault.items WHERE collection_id = $1 AND id = $2 FOR UPDATE",
		collectionID, id).Scan(&current)
	if err != nil {
		err = db.Normalize(db.OpQuery, err)
		if errors.Is(err, db.ErrNoRows) {
			return fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
		}
		return err
	}
	if expectedVersion != nil && current != *expectedVersion {
		return domain.NewVersionConflict(current)
	}
	return nil
}

// ListAssets returns an item's assets ordered by key.
func (r *Repo) ListAssets(ctx context.Context, role string, itemID uuid.UUID) ([]item.Asset, error) {
	var assets []item.Asset
	err := r.s.AsRole(ctx, role, func(q db.Querier) error {
		rows, err := q.Query(ctx,
			"SELECT "+assetColumns+" FROM spatialvault.assets WHERE item_id = $1 ORDER BY key",
			itemID)
		if err != nil {
			return db.Normalize(db.OpQuery, err)
		}
		defer rows.Close()

		for rows.Next() {
			a, err := scanAsset(rows)
			if err != nil {
				return db.Normalize(db.OpScanRow, err)
			}
			assets = append(assets, a)
		}
		return db.Normalize(db.OpQuery, rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// CreateAsset attaches an asset to an item. The item's key space is
// unique, so re-adding an existing key fails.
func (r *Repo) CreateAsset(ctx context.Context, role string, a item.Asset) error {
	return r.s.AsRole(ctx, role, func(q db.Querier) error {
		_, err := q.Exec(ctx, `
			INSERT INTO spatialvault.assets
			(id, item_id, key, href, media_type, title, description, roles, file_size, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			a.ID, a.ItemID, a.Key, a.Href, a.MediaType, a.Title, a.Description,
			a.Roles, a.FileSize, a.CreatedAt)
		if err != nil {
			err = db.Normalize(db.OpExec, err)
			if errors.Is(err, db.ErrDuplicate) {
				return fmt.Errorf("asset %q: %w", a.Key, domain.ErrAlreadyExists)
			}
			return err
		}
		return nil
	})
}

// DeleteAsset removes one asset by key.
func (r *Repo) DeleteAsset(ctx context.Context, role string, itemID uuid.UUID, key string) error {
	return r.s.AsRole(ctx, role, func(q db.Querier) error {
		tag, err := q.Exec(ctx,
			"DELETE FROM spatialvault.assets WHERE item_id = $1 AND key = $2",
			itemID, key)
		if err != nil {
			return db.Normalize(db.OpExec, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("asset %q: %w", key, domain.ErrNotFound)
		}
		return nil
	})
}
