package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/02JanDal/spatialvault/internal/db"
	"github.com/02JanDal/spatialvault/internal/domain/collection"
)

// mockStore hands every transaction and querier request to the same
// mockQuerier, so tests observe all statements in order.
type mockStore struct {
	q       *mockQuerier
	inTxErr error
}

func (m *mockStore) InTx(_ context.Context, fn func(q db.Querier) error) error {
	if m.inTxErr != nil {
		return m.inTxErr
	}
	return fn(m.q)
}

func (m *mockStore) Querier() db.Querier { return m.q }

// mockQuerier implements db.Querier for tests, recording statements.
type mockQuerier struct {
	execSQL  []string
	execArgs [][]any
	execFn   func(sql string, args []any) error
	queryFn  func(sql string, args []any) (pgx.Rows, error)
	rowSQL   []string
	rowArgs  [][]any
	rowFn    func(sql string, args []any) pgx.Row
}

func (m *mockQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execSQL = append(m.execSQL, sql)
	m.execArgs = append(m.execArgs, args)
	if m.execFn != nil {
		return pgconn.CommandTag{}, m.execFn(sql, args)
	}
	return pgconn.CommandTag{}, nil
}

func (m *mockQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFn != nil {
		return m.queryFn(sql, args)
	}
	return &fakeRows{}, nil
}

func (m *mockQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.rowSQL = append(m.rowSQL, sql)
	m.rowArgs = append(m.rowArgs, args)
	if m.rowFn != nil {
		return m.rowFn(sql, args)
	}
	return fakeRow{err: pgx.ErrNoRows}
}

// fakeRow scans fixed values into the destinations.
type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if i >= len(r.vals) {
			break
		}
		if err := assign(d, r.vals[i]); err != nil {
			return err
		}
	}
	return nil
}

// fakeRows iterates over fixed result rows.
type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i, d := range dest {
		if i >= len(row) {
			break
		}
		if err := assign(d, row[i]); err != nil {
			return err
		}
	}
	return nil
}

func assign(dest, val any) error {
	switch d := dest.(type) {
	case *string:
		*d = val.(string)
	case *bool:
		*d = val.(bool)
	case *int:
		*d = val.(int)
	case *int64:
		*d = val.(int64)
	case *uuid.UUID:
		*d = val.(uuid.UUID)
	case *time.Time:
		*d = val.(time.Time)
	case **float64:
		if val == nil {
			*d = nil
		} else {
			f := val.(float64)
			*d = &f
		}
	case **time.Time:
		if val == nil {
			*d = nil
		} else {
			t := val.(time.Time)
			*d = &t
		}
	default:
		return fmt.Errorf("unsupported scan destination %T", dest)
	}
	return nil
}

// collectionRow lays out a catalog row in collectionColumns order.
func collectionRow(t *testing.T, col collection.Collection) []any {
	t.Helper()
	return []any{
		col.ID(), col.Name(), col.Owner(), col.SchemaName(), col.TableName(),
		col.Kind().String(), col.Title(), col.Description(), col.SRID(),
		col.Version(), col.CreatedAt(), col.UpdatedAt(),
	}
}

func mustCollection(t *testing.T, name string, kind collection.Kind, version int64) collection.Collection {
	t.Helper()
	col, err := collection.New(name, kind, "Title", "", 0)
	if err != nil {
		t.Fatalf("build collection: %v", err)
	}
	if version == col.Version() {
		return col
	}
	return collection.Reconstruct(col.ID(), col.Name(), col.Owner(),
		col.SchemaName(), col.TableName(), col.Kind(), col.Title(),
		col.Description(), col.SRID(), version, col.CreatedAt(), col.UpdatedAt())
}
