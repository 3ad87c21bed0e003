// Package feature persists vector features in a collection's dedicated
// table. Every operation runs under the requesting principal's native
// role, so the backend's grant system enforces read and write access.
package feature

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/02JanDal/spatialvault/internal/db"
	"github.com/02JanDal/spatialvault/internal/domain"
	"github.com/02JanDal/spatialvault/internal/domain/collection"
	"github.com/02JanDal/spatialvault/internal/domain/feature"
)

// store is the narrow database contract the repository consumes.
type store interface {
	AsRole(ctx context.Context, role string, fn func(q db.Querier) error) error
}

// Repo reads and writes features in dedicated collection tables.
type Repo struct {
	s store
}

// New creates a feature repository.
func New(s store) *Repo {
	return &Repo{s: s}
}

// Query narrows a feature listing. FilterSQL is an already compiled
// predicate and is interpolated as-is; BBox coordinates are CRS84 and
// transformed to the table's spatial reference when it differs.
type Query struct {
	BBox        *[4]float64
	FilterSQL   string
	StorageSRID int
	Limit       int
	Offset      int
}

func storageTarget(col collection.Collection) (string, error) {
	d, err := col.Storage()
	if err != nil {
		return "", err
	}
	if !db.IsValidIdentifier(d.Schema) || !db.IsValidIdentifier(d.Table) {
		return "", fmt.Errorf("%w: %q.%q", domain.ErrInvalidName, d.Schema, d.Table)
	}
	return db.QuoteQualified(d.Schema, d.Table), nil
}

// List returns a page of features matching the query plus the total
// count of matches.
func (r *Repo) List(ctx context.Context, role string, col collection.Collection, q Query) (feature.Page, error) {
	target, err := storageTarget(col)
	if err != nil {
		return feature.Page{}, err
	}

	where := db.NewWhere()
	if q.BBox != nil {
		envelope := "ST_MakeEnvelope(?, ?, ?, ?, 4326)"
		if q.StorageSRID != 0 && q.StorageSRID != collection.DefaultSRID {
			envelope = fmt.Sprintf("ST_Transform(%s, %d)", envelope, q.StorageSRID)
		}
		where.Add("ST_Intersects(geometry, "+envelope+")",
			q.BBox[0], q.BBox[1], q.BBox[2], q.BBox[3])
	}
	where.AddRaw(q.FilterSQL)

	var page feature.Page
	err = r.s.AsRole(ctx, role, func(dbq db.Querier) error {
		countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", target, where.SQL())
		if err := dbq.QueryRow(ctx, countSQL, where.Args()...).Scan(&page.Total); err != nil {
			return db.Normalize(db.OpQuery, err)
		}

		listSQL := fmt.Sprintf(`
			SELECT %s FROM %s %s
			ORDER BY created_at DESC
			LIMIT %s OFFSET %s`,
			featureColumns, target, where.SQL(), where.Bind(q.Limit), where.Bind(q.Offset))
		rows, err := dbq.Query(ctx, listSQL, where.Args()...)
		if err != nil {
			return db.Normalize(db.OpQuery, err)
		}
		defer rows.Close()

		for rows.Next() {
			f, err := scanFeature(rows)
			if err != nil {
				return db.Normalize(db.OpScanRow, err)
			}
			page.Features = append(page.Features, f)
		}
		return db.Normalize(db.OpQuery, rows.Err())
	})
	if err != nil {
		return feature.Page{}, err
	}
	return page, nil
}

// Get returns a single feature by id.
func (r *Repo) Get(ctx context.Context, role string, col collection.Collection, id uuid.UUID) (feature.Feature, error) {
	target, err := storageTarget(col)
	if err != nil {
		return feature.Feature{}, err
	}

	var f feature.Feature
	err = r.s.AsRole(ctx, role, func(q db.Querier) error {
		sql := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", featureColumns, target)
		f, err = scanFeature(q.QueryRow(ctx, sql, id))
		if err != nil {
			err = db.Normalize(db.OpQuery, err)
			if errors.Is(err, db.ErrNoRows) {
				return fmt.Errorf("feature %s: %w", id, domain.ErrNotFound)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return feature.Feature{}, err
	}
	return f, nil
}

// Create inserts a feature, transforming its CRS84 geometry into the
// table's spatial reference.
func (r *Repo) Create(ctx context.Context, role string, col collection.Collection, f feature.Feature) error {
	target, err := storageTarget(col)
	if err != nil {
		return err
	}
	geom, err := json.Marshal(geojson.NewGeometry(f.Geometry()))
	if err != nil {
		return fmt.Errorf("encode geometry: %w", err)
	}
	props, err := json.Marshal(f.Properties())
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}

	return r.s.AsRole(ctx, role, func(q db.Querier) error {
		sql := fmt.Sprintf(`
			INSERT INTO %s (id, geometry, properties, version, created_at, updated_at)
			VALUES ($1, ST_Transform(ST_SetSRID(ST_GeomFromGeoJSON($2), 4326), %d), $3, $4, $5, $6)`,
			target, col.SRID())
		_, err := q.Exec(ctx, sql, f.ID(), string(geom), string(props),
			f.Version(), f.CreatedAt(), f.UpdatedAt())
		if err != nil {
			err = db.Normalize(db.OpExec, err)
			if errors.Is(err, db.ErrDuplicate) {
				return fmt.Errorf("feature %s: %w", f.ID(), domain.ErrAlreadyExists)
			}
			return err
		}
		return nil
	})
}

// Update replaces a feature's geometry and properties under a row lock,
// checking existence and then the expected version.
func (r *Repo) Update(ctx context.Context, role string, col collection.Collection, id uuid.UUID, expectedVersion *int64, geometry *geojson.Geometry, properties map[string]any) (feature.Feature, error) {
	target, err := storageTarget(col)
	if err != nil {
		return feature.Feature{}, err
	}

	var updated feature.Feature
	err = r.s.AsRole(ctx, role, func(q db.Querier) error {
		if err := lockVersion(ctx, q, target, id, expectedVersion); err != nil {
			return err
		}

		set := "properties = $2, version = version + 1, updated_at = NOW()"
		args := []any{id}
		var props []byte
		props, err = json.Marshal(properties)
		if err != nil {
			return fmt.Errorf("encode properties: %w", err)
		}
		args = append(args, string(props))
		if geometry != nil {
			geom, err := json.Marshal(geometry)
			if err != nil {
				return fmt.Errorf("encode geometry: %w", err)
			}
			set = fmt.Sprintf("geometry = ST_Transform(ST_SetSRID(ST_GeomFromGeoJSON($3), 4326), %d), %s",
				col.SRID(), set)
			args = append(args, string(geom))
		}

		sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1 RETURNING %s", target, set, featureColumns)
		updated, err = scanFeature(q.QueryRow(ctx, sql, args...))
		if err != nil {
			return db.Normalize(db.OpExec, err)
		}
		return nil
	})
	if err != nil {
		return feature.Feature{}, err
	}
	return updated, nil
}

// Delete removes a feature under the same lock and checks as Update.
func (r *Repo) Delete(ctx context.Context, role string, col collection.Collection, id uuid.UUID, expectedVersion *int64) error {
	target, err := storageTarget(col)
	if err != nil {
		return err
	}

	return r.s.AsRole(ctx, role, func(q db.Querier) error {
		if err := lockVersion(ctx, q, target, id, expectedVersion); err != nil {
			return err
		}
		sql := fmt.Sprintf("DELETE FROM %s WHERE id = $1", target)
		if _, err := q.Exec(ctx, sql, id); err != nil {
			return db.Normalize(db.OpExec, err)
		}
		return nil
	})
}

// lockVersion loads the current version FOR UPDATE and runs the fixed
// check order: existence, then expected version.
func lockVersion(ctx context.Context, q db.Querier, target string, id uuid.UUID, expectedVersion *int64) error {
	sql := fmt.Sprintf("SELECT version FROM %s WHERE id = $1 FOR UPDATE", target)
	var current int64
	if err := q.QueryRow(ctx, sql, id).Scan(&current); err != nil {
		err = db.Normalize(db.OpQuery, err)
		if errors.Is(err, db.ErrNoRows) {
			return fmt.Errorf("feature %s: %w", id, domain.ErrNotFound)
		}
		return err
	}
	if expectedVersion != nil && current != *expectedVersion {
		return domain.NewVersionConflict(current)
	}
	return nil
}
