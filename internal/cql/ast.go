// Package cql parses CQL2 text filter expressions and compiles them into
// PostGIS-compatible SQL predicates.
package cql

// Expr is a node of the filter expression tree.
type Expr interface {
	isExpr()
}

// Bool is a boolean literal.
type Bool bool

// Number is a numeric literal.
type Number float64

// String is a string literal.
type String string

// Null is the NULL literal.
type Null struct{}

// Property is a reference to a column or a path into the properties document.
type Property struct {
	Name string
}

// Date is a date literal, e.g. DATE('2024-06-01').
type Date struct {
	Value string
}

// Timestamp is a timestamp literal, e.g. TIMESTAMP('2024-06-01T12:00:00Z').
type Timestamp struct {
	Value string
}

// Interval is a temporal interval literal with start and end expressions.
type Interval struct {
	Elems []Expr
}

// BBox is a bounding box literal with at least four coordinates.
type BBox struct {
	Coords []Expr
}

// GeometryWKT is a geometry literal in well-known-text form.
type GeometryWKT struct {
	WKT string
}

// GeometryGeoJSON is a geometry literal in embedded GeoJSON form.
type GeometryGeoJSON struct {
	JSON string
}

// Array is an array literal.
type Array struct {
	Items []Expr
}

// Call is an operator or function application. Op keeps the source
// spelling; compilation matches it case-insensitively.
type Call struct {
	Op   string
	Args []Expr
}

func (Bool) isExpr()            {}
func (Number) isExpr()          {}
func (String) isExpr()          {}
func (Null) isExpr()            {}
func (Property) isExpr()        {}
func (Date) isExpr()            {}
func (Timestamp) isExpr()       {}
func (Interval) isExpr()        {}
func (BBox) isExpr()            {}
func (GeometryWKT) isExpr()     {}
func (GeometryGeoJSON) isExpr() {}
func (Array) isExpr()           {}
func (Call) isExpr()            {}
