package cql

import (
	"strings"
	"testing"
)

func compile(t *testing.T, filter, prefix string) string {
	t.Helper()
	sql, err := ToSQL(filter, prefix)
	if err != nil {
		t.Fatalf("ToSQL(%q): %v", filter, err)
	}
	return sql
}

func TestToSQL_Comparison(t *testing.T) {
	sql := compile(t, "name = 'Berlin'", "")
	if !strings.Contains(sql, "=") || !strings.Contains(sql, "Berlin") {
		t.Errorf("sql = %q, want equality with Berlin", sql)
	}

	sql = compile(t, "population > 1000000", "")
	if !strings.Contains(sql, ">") || !strings.Contains(sql, "1000000") {
		t.Errorf("sql = %q, want > with 1000000", sql)
	}
}

func TestToSQL_Logical(t *testing.T) {
	sql := compile(t, "name = 'Berlin' AND population > 1000000", "")
	if !strings.Contains(sql, " AND ") {
		t.Errorf("sql = %q, want conjunction", sql)
	}
	if !strings.Contains(sql, "Berlin") || !strings.Contains(sql, "1000000") {
		t.Errorf("sql = %q, want both sub-predicates", sql)
	}

	sql = compile(t, "type = 'city' OR type = 'town'", "")
	if !strings.Contains(sql, " OR ") {
		t.Errorf("sql = %q, want disjunction", sql)
	}
}

func TestToSQL_NaryAnd(t *testing.T) {
	sql := compile(t, "a = 1 AND b = 2 AND c = 3", "")
	if strings.Count(sql, " AND ") != 2 {
		t.Errorf("sql = %q, want two AND joins", sql)
	}
	if !strings.HasPrefix(sql, "(") || !strings.HasSuffix(sql, ")") {
		t.Errorf("sql = %q, want parenthesized", sql)
	}
}

func TestToSQL_Not(t *testing.T) {
	sql := compile(t, "NOT name = 'Berlin'", "")
	if !strings.HasPrefix(sql, "NOT (") {
		t.Errorf("sql = %q, want NOT (...)", sql)
	}
}

func TestToSQL_SpatialIntersects(t *testing.T) {
	sql := compile(t, "S_INTERSECTS(geometry, POLYGON((0 0, 1 0, 1 1, 0 1, 0 0)))", "")
	if !strings.Contains(sql, "ST_Intersects") {
		t.Errorf("sql = %q, want ST_Intersects", sql)
	}
	if !strings.Contains(sql, "POLYGON") {
		t.Errorf("sql = %q, want the polygon text", sql)
	}
	if !strings.Contains(sql, "ST_GeomFromText") || !strings.Contains(sql, "4326") {
		t.Errorf("sql = %q, want ST_GeomFromText with default srid", sql)
	}
}

func TestToSQL_SpatialMapping(t *testing.T) {
	cases := []struct {
		op   string
		want string
	}{
		{"S_CONTAINS", "ST_Contains"},
		{"S_WITHIN", "ST_Within"},
		{"S_CROSSES", "ST_Crosses"},
		{"S_OVERLAPS", "ST_Overlaps"},
		{"S_TOUCHES", "ST_Touches"},
		{"S_DISJOINT", "ST_Disjoint"},
		{"S_EQUALS", "ST_Equals"},
	}
	for _, c := range cases {
		sql := compile(t, c.op+"(geometry, POINT(1 2))", "")
		if !strings.Contains(sql, c.want) {
			t.Errorf("%s: sql = %q, want %s", c.op, sql, c.want)
		}
	}
}

func TestToSQL_DWithin(t *testing.T) {
	sql := compile(t, "S_DWITHIN(geometry, POINT(1 2), 1000)", "")
	if !strings.Contains(sql, "ST_DWithin") || !strings.Contains(sql, "1000") {
		t.Errorf("sql = %q, want ST_DWithin with distance", sql)
	}
}

func TestToSQL_TemporalIntersects(t *testing.T) {
	sql := compile(t, "T_INTERSECTS(datetime, INTERVAL('2024-01-01T00:00:00Z', '2024-12-31T23:59:59Z'))", "")
	if !strings.Contains(sql, "&&") {
		t.Errorf("sql = %q, want range overlap", sql)
	}
	if !strings.Contains(sql, "TSTZRANGE(") {
		t.Errorf("sql = %q, want TSTZRANGE", sql)
	}
}

func TestToSQL_ArrayContains(t *testing.T) {
	sql := compile(t, "A_CONTAINS(tags, ('roads', 'rail'))", "")
	if !strings.Contains(sql, "@>") {
		t.Errorf("sql = %q, want containment operator", sql)
	}
	if !strings.Contains(sql, "ARRAY['roads', 'rail']") {
		t.Errorf("sql = %q, want array literal", sql)
	}
}

func TestToSQL_Between(t *testing.T) {
	sql := compile(t, "population BETWEEN 1000 AND 2000", "")
	if !strings.Contains(sql, "BETWEEN") || !strings.Contains(sql, "1000") || !strings.Contains(sql, "2000") {
		t.Errorf("sql = %q", sql)
	}
}

func TestToSQL_In(t *testing.T) {
	sql := compile(t, "type IN ('city', 'town', 'village')", "")
	if !strings.Contains(sql, "IN (") || !strings.Contains(sql, "'village'") {
		t.Errorf("sql = %q", sql)
	}
}

func TestToSQL_LikeAndNull(t *testing.T) {
	sql := compile(t, "name LIKE 'Ber%'", "")
	if !strings.Contains(sql, "LIKE") {
		t.Errorf("sql = %q, want LIKE", sql)
	}

	sql = compile(t, "name ILIKE 'ber%'", "")
	if !strings.Contains(sql, "ILIKE") {
		t.Errorf("sql = %q, want ILIKE", sql)
	}

	sql = compile(t, "description IS NULL", "")
	if !strings.Contains(sql, "IS NULL") {
		t.Errorf("sql = %q, want IS NULL", sql)
	}

	sql = compile(t, "description IS NOT NULL", "")
	if !strings.Contains(sql, "NOT (") || !strings.Contains(sql, "IS NULL") {
		t.Errorf("sql = %q, want negated IS NULL", sql)
	}
}

func TestToSQL_StringEscaping(t *testing.T) {
	sql := compile(t, "name = 'O''Hare'", "")
	if !strings.Contains(sql, "'O''Hare'") {
		t.Errorf("sql = %q, want doubled quote preserved", sql)
	}
}

func TestToSQL_PropertyPrefix(t *testing.T) {
	sql := compile(t, "name = 'test'", "t.")
	if !strings.Contains(sql, `t."name"`) {
		t.Errorf("sql = %q, want prefixed property", sql)
	}
}

func TestToSQL_PropertyPath(t *testing.T) {
	sql := compile(t, "properties.surface = 'asphalt'", "")
	if !strings.Contains(sql, "properties->>'surface'") {
		t.Errorf("sql = %q, want JSONB accessor", sql)
	}

	sql = compile(t, "properties.address.city = 'Berlin'", "f.")
	if !strings.Contains(sql, "f.properties->>'address'->>'city'") {
		t.Errorf("sql = %q, want chained accessor", sql)
	}
}

func TestToSQL_GeometryColumn(t *testing.T) {
	sql := compile(t, "S_INTERSECTS(geometry, POINT(1 2))", "f.")
	if !strings.Contains(sql, "f.geometry") {
		t.Errorf("sql = %q, want bare geometry column with prefix", sql)
	}
}

func TestToSQL_BBox(t *testing.T) {
	sql := compile(t, "S_INTERSECTS(geometry, BBOX(5.8, 47.2, 15.1, 55.1))", "")
	if !strings.Contains(sql, "ST_MakeEnvelope(5.8, 47.2, 15.1, 55.1, 4326)") {
		t.Errorf("sql = %q, want envelope", sql)
	}
}

func TestToSQL_DateAndTimestamp(t *testing.T) {
	sql := compile(t, "created >= DATE('2024-06-01')", "")
	if !strings.Contains(sql, "DATE '2024-06-01'") {
		t.Errorf("sql = %q, want DATE literal", sql)
	}

	sql = compile(t, "created >= TIMESTAMP('2024-06-01T12:00:00Z')", "")
	if !strings.Contains(sql, "TIMESTAMP '2024-06-01T12:00:00Z'") {
		t.Errorf("sql = %q, want TIMESTAMP literal", sql)
	}
}

func TestToSQL_Arithmetic(t *testing.T) {
	sql := compile(t, "population / area > 1000", "")
	if !strings.Contains(sql, "/") || !strings.Contains(sql, ">") {
		t.Errorf("sql = %q", sql)
	}
}

func TestToSQL_GenericFunctionFallback(t *testing.T) {
	sql := compile(t, "st_area(geometry) > 100", "")
	if !strings.Contains(sql, "ST_AREA(geometry)") {
		t.Errorf("sql = %q, want uppercased generic call", sql)
	}
}

func TestCompile_ArityErrors(t *testing.T) {
	cases := []struct {
		name string
		expr Expr
		want string
	}{
		{
			name: "between with 2 args",
			expr: Call{Op: "between", Args: []Expr{Property{Name: "a"}, Number(1)}},
			want: "BETWEEN requires 3",
		},
		{
			name: "not with 2 args",
			expr: Call{Op: "not", Args: []Expr{Bool(true), Bool(false)}},
			want: "NOT requires 1",
		},
		{
			name: "in with 1 arg",
			expr: Call{Op: "in", Args: []Expr{Property{Name: "a"}}},
			want: "IN requires at least 2",
		},
		{
			name: "equality with 1 arg",
			expr: Call{Op: "=", Args: []Expr{Number(1)}},
			want: "= requires 2",
		},
		{
			name: "s_intersects with 1 arg",
			expr: Call{Op: "S_INTERSECTS", Args: []Expr{Property{Name: "geometry"}}},
			want: "S_INTERSECTS requires 2",
		},
		{
			name: "s_dwithin with 2 args",
			expr: Call{Op: "s_dwithin", Args: []Expr{Property{Name: "geometry"}, Number(1)}},
			want: "S_DWITHIN requires 3",
		},
		{
			name: "t_intersects with 1 arg",
			expr: Call{Op: "t_intersects", Args: []Expr{Property{Name: "datetime"}}},
			want: "T_INTERSECTS requires 2",
		},
		{
			name: "a_contains with 3 args",
			expr: Call{Op: "a_contains", Args: []Expr{Property{Name: "tags"}, String("a"), String("b")}},
			want: "A_CONTAINS requires 2",
		},
		{
			name: "interval with 1 element",
			expr: Interval{Elems: []Expr{String("2024-01-01")}},
			want: "interval must have 2",
		},
		{
			name: "bbox with 3 coords",
			expr: BBox{Coords: []Expr{Number(1), Number(2), Number(3)}},
			want: "bbox must have at least 4",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Compile(c.expr, "")
			if err == nil {
				t.Fatal("expected compile error")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Errorf("error = %q, want substring %q", err, c.want)
			}
		})
	}
}

func TestCompile_GeoJSONGeometry(t *testing.T) {
	g := GeometryGeoJSON{JSON: `{"type":"Point","coordinates":[1,2]}`}
	sql, err := Compile(g, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sql, "ST_GeomFromGeoJSON") {
		t.Errorf("sql = %q", sql)
	}
}
