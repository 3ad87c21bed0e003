package item

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/paulmach/orb"

	"github.com/02JanDal/spatialvault/internal/db"
	"github.com/02JanDal/spatialvault/internal/domain/item"
)

// mockStore records the role each call ran under and hands every
// statement to the same mockQuerier.
type mockStore struct {
	q     *mockQuerier
	roles []string
	err   error
}

func (m *mockStore) AsRole(_ context.Context, role string, fn func(q db.Querier) error) error {
	m.roles = append(m.roles, role)
	if m.err != nil {
		return m.err
	}
	return fn(m.q)
}

// mockQuerier implements db.Querier for tests, recording statements.
type mockQuerier struct {
	execSQL  []string
	execArgs [][]any
	execTag  pgconn.CommandTag
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
		return m.execTag, m.execFn(sql, args)
	}
	return m.execTag, nil
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
	case *int64:
		*d = val.(int64)
	case *uuid.UUID:
		*d = val.(uuid.UUID)
	case *time.Time:
		*d = val.(time.Time)
	case **time.Time:
		if val == nil {
			*d = nil
		} else {
			t := val.(time.Time)
			*d = &t
		}
	case *[]string:
		if val == nil {
			*d = nil
		} else {
			*d = val.([]string)
		}
	default:
		return fmt.Errorf("unsupported scan destination %T", dest)
	}
	return nil
}

func mustItem(t *testing.T, collectionID uuid.UUID, datetime *time.Time) item.Item {
	t.Helper()
	it, err := item.New(collectionID, orb.Point{11.6, 48.1}, datetime, map[string]any{"cloud_cover": 12.5})
	if err != nil {
		t.Fatalf("build item: %v", err)
	}
	return it
}

// itemRow lays out a shared-table row in itemColumns order.
func itemRow(t *testing.T, it item.Item) []any {
	t.Helper()
	var dt any
	if it.Datetime() != nil {
		dt = *it.Datetime()
	}
	return []any{
		it.ID(), it.CollectionID(),
		`{"type":"Point","coordinates":[11.6,48.1]}`,
		dt,
		`{"cloud_cover":12.5}`,
		it.Version(), it.CreatedAt(), it.UpdatedAt(),
	}
}
