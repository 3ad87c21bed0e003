package cql

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultSRID is assumed for geometry literals without an explicit
// spatial reference.
const DefaultSRID = 4326

// spatialOps maps CQL2 spatial predicates onto PostGIS functions.
var spatialOps = map[string]string{
	"s_intersects": "ST_Intersects",
	"s_contains":   "ST_Contains",
	"s_within":     "ST_Within",
	"s_crosses":    "ST_Crosses",
	"s_overlaps":   "ST_Overlaps",
	"s_touches":    "ST_Touches",
	"s_disjoint":   "ST_Disjoint",
	"s_equals":     "ST_Equals",
}

// ToSQL parses a CQL2 text filter and compiles it into a SQL predicate.
// Column and property references are prefixed with prefix (a table alias
// like "t." or the empty string).
func ToSQL(filter, prefix string) (string, error) {
	expr, err := Parse(strings.TrimSpace(filter))
	if err != nil {
		return "", err
	}
	return Compile(expr, prefix)
}

// Compile turns an expression tree into a SQL predicate string.
func Compile(expr Expr, prefix string) (string, error) {
	switch e := expr.(type) {
	case Bool:
		if e {
			return "TRUE", nil
		}
		return "FALSE", nil
	case Number:
		return strconv.FormatFloat(float64(e), 'f', -1, 64), nil
	case String:
		return quoteString(string(e)), nil
	case Null:
		return "NULL", nil
	case Property:
		return propertyToSQL(e.Name, prefix), nil
	case Date:
		return "DATE " + quoteString(e.Value), nil
	case Timestamp:
		return "TIMESTAMP " + quoteString(e.Value), nil
	case Interval:
		if len(e.Elems) != 2 {
			return "", fmt.Errorf("interval must have 2 elements, got %d", len(e.Elems))
		}
		start, err := Compile(e.Elems[0], prefix)
		if err != nil {
			return "", err
		}
		end, err := Compile(e.Elems[1], prefix)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("TSTZRANGE(%s, %s)", start, end), nil
	case BBox:
		if len(e.Coords) < 4 {
			return "", fmt.Errorf("bbox must have at least 4 elements, got %d", len(e.Coords))
		}
		coords, err := compileAll(e.Coords, prefix)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ST_MakeEnvelope(%s, %s, %s, %s, %d)",
			coords[0], coords[1], coords[2], coords[3], DefaultSRID), nil
	case GeometryWKT:
		return fmt.Sprintf("ST_GeomFromText(%s, %d)", quoteString(e.WKT), DefaultSRID), nil
	case GeometryGeoJSON:
		return fmt.Sprintf("ST_GeomFromGeoJSON(%s)", quoteString(e.JSON)), nil
	case Array:
		items, err := compileAll(e.Items, prefix)
		if err != nil {
			return "", err
		}
		return "ARRAY[" + strings.Join(items, ", ") + "]", nil
	case Call:
		return callToSQL(e, prefix)
	default:
		return "", fmt.Errorf("unsupported expression %T", expr)
	}
}

func callToSQL(c Call, prefix string) (string, error) {
	op := strings.ToLower(c.Op)

	switch op {
	case "and", "or":
		parts, err := compileAll(c.Args, prefix)
		if err != nil {
			return "", err
		}
		return "(" + strings.Join(parts, " "+strings.ToUpper(op)+" ") + ")", nil
	case "not":
		if len(c.Args) != 1 {
			return "", fmt.Errorf("NOT requires 1 argument, got %d", len(c.Args))
		}
		inner, err := Compile(c.Args[0], prefix)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case "=", "eq":
		return binaryOp(c.Args, "=", prefix)
	case "<>", "!=", "neq":
		return binaryOp(c.Args, "<>", prefix)
	case "<", "lt":
		return binaryOp(c.Args, "<", prefix)
	case ">", "gt":
		return binaryOp(c.Args, ">", prefix)
	case "<=", "lte":
		return binaryOp(c.Args, "<=", prefix)
	case ">=", "gte":
		return binaryOp(c.Args, ">=", prefix)
	case "+", "-", "*", "/", "%":
		return binaryOp(c.Args, op, prefix)
	case "like":
		return binaryOp(c.Args, "LIKE", prefix)
	case "ilike":
		return binaryOp(c.Args, "ILIKE", prefix)
	case "between":
		if len(c.Args) != 3 {
			return "", fmt.Errorf("BETWEEN requires 3 arguments, got %d", len(c.Args))
		}
		parts, err := compileAll(c.Args, prefix)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", parts[0], parts[1], parts[2]), nil
	case "in":
		if len(c.Args) < 2 {
			return "", fmt.Errorf("IN requires at least 2 arguments, got %d", len(c.Args))
		}
		val, err := Compile(c.Args[0], prefix)
		if err != nil {
			return "", err
		}
		list, err := compileAll(c.Args[1:], prefix)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s IN (%s)", val, strings.Join(list, ", ")), nil
	case "isnull", "is null":
		if len(c.Args) != 1 {
			return "", fmt.Errorf("IS NULL requires 1 argument, got %d", len(c.Args))
		}
		inner, err := Compile(c.Args[0], prefix)
		if err != nil {
			return "", err
		}
		return inner + " IS NULL", nil
	case "s_dwithin":
		if len(c.Args) != 3 {
			return "", fmt.Errorf("S_DWITHIN requires 3 arguments, got %d", len(c.Args))
		}
		parts, err := compileAll(c.Args, prefix)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ST_DWithin(%s, %s, %s)", parts[0], parts[1], parts[2]), nil
	case "t_intersects":
		if len(c.Args) != 2 {
			return "", fmt.Errorf("T_INTERSECTS requires 2 arguments, got %d", len(c.Args))
		}
		parts, err := compileAll(c.Args, prefix)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s && %s)", parts[0], parts[1]), nil
	case "a_contains":
		if len(c.Args) != 2 {
			return "", fmt.Errorf("A_CONTAINS requires 2 arguments, got %d", len(c.Args))
		}
		parts, err := compileAll(c.Args, prefix)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s @> %s)", parts[0], parts[1]), nil
	}

	if pg, ok := spatialOps[op]; ok {
		if len(c.Args) != 2 {
			return "", fmt.Errorf("%s requires 2 arguments, got %d", c.Op, len(c.Args))
		}
		parts, err := compileAll(c.Args, prefix)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%s, %s)", pg, parts[0], parts[1]), nil
	}

	// Escape hatch: any other operator compiles as a backend function call.
	parts, err := compileAll(c.Args, prefix)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(c.Op) + "(" + strings.Join(parts, ", ") + ")", nil
}

func binaryOp(args []Expr, sqlOp, prefix string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%s requires 2 arguments, got %d", sqlOp, len(args))
	}
	left, err := Compile(args[0], prefix)
	if err != nil {
		return "", err
	}
	right, err := Compile(args[1], prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s %s)", left, sqlOp, right), nil
}

func compileAll(args []Expr, prefix string) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		s, err := Compile(a, prefix)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// propertyToSQL resolves a property reference. A dotted name whose first
// segment is the properties document accesses into the JSONB column, a
// bare geometry resolves to the spatial column, anything else is a quoted
// column reference.
func propertyToSQL(name, prefix string) string {
	if strings.Contains(name, ".") {
		parts := strings.Split(name, ".")
		if parts[0] == "properties" {
			return prefix + "properties->>'" + strings.Join(parts[1:], "'->>'") + "'"
		}
		return prefix + `"` + parts[0] + `"`
	}
	if name == "geometry" {
		return prefix + "geometry"
	}
	return prefix + `"` + name + `"`
}
