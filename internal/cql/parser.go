package cql

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Parse parses a CQL2 text filter expression into its expression tree.
func Parse(input string) (Expr, error) {
	p := &parser{src: input}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", p.cur.text, p.cur.off)
	}
	return expr, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokQuotedIdent
	tokString
	tokNumber
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokKind
	text string
	off  int
}

type parser struct {
	src   string
	pos   int
	cur   token
	ahead token
}

var wktTypes = map[string]bool{
	"POINT":              true,
	"LINESTRING":         true,
	"POLYGON":            true,
	"MULTIPOINT":         true,
	"MULTILINESTRING":    true,
	"MULTIPOLYGON":       true,
	"GEOMETRYCOLLECTION": true,
	"ENVELOPE":           true,
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	args := []Expr{left}
	for p.isKeyword("OR") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		args = append(args, right)
	}
	if len(args) == 1 {
		return left, nil
	}
	return Call{Op: "or", Args: args}, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	args := []Expr{left}
	for p.isKeyword("AND") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		args = append(args, right)
	}
	if len(args) == 1 {
		return left, nil
	}
	return Call{Op: "and", Args: args}, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.isKeyword("NOT") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Call{Op: "not", Args: []Expr{inner}}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseArith()
	if err != nil {
		return nil, err
	}

	if p.cur.kind == tokOp {
		switch p.cur.text {
		case "=", "<>", "!=", "<", "<=", ">", ">=":
			op := p.cur.text
			if err := p.advance(); err != nil {
				return nil, err
			}
			right, err := p.parseArith()
			if err != nil {
				return nil, err
			}
			return Call{Op: op, Args: []Expr{left, right}}, nil
		}
		return left, nil
	}

	negated := false
	if p.isKeyword("NOT") && (p.aheadKeyword("BETWEEN") || p.aheadKeyword("IN") || p.aheadKeyword("LIKE") || p.aheadKeyword("ILIKE")) {
		negated = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	var expr Expr
	switch {
	case p.isKeyword("BETWEEN"):
		expr, err = p.parseBetween(left)
	case p.isKeyword("IN"):
		expr, err = p.parseIn(left)
	case p.isKeyword("LIKE"):
		expr, err = p.parseLike(left, "like")
	case p.isKeyword("ILIKE"):
		expr, err = p.parseLike(left, "ilike")
	case p.isKeyword("IS"):
		expr, err = p.parseIsNull(left)
	default:
		if negated {
			return nil, fmt.Errorf("expected BETWEEN, IN, LIKE or ILIKE after NOT at position %d", p.cur.off)
		}
		return left, nil
	}
	if err != nil {
		return nil, err
	}
	if negated {
		return Call{Op: "not", Args: []Expr{expr}}, nil
	}
	return expr, nil
}

func (p *parser) parseBetween(val Expr) (Expr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	low, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("AND") {
		return nil, fmt.Errorf("expected AND in BETWEEN at position %d", p.cur.off)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	high, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	return Call{Op: "between", Args: []Expr{val, low, high}}, nil
}

func (p *parser) parseIn(val Expr) (Expr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.kind != tokLParen {
		return nil, fmt.Errorf("expected ( after IN at position %d", p.cur.off)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	args := []Expr{val}
	for {
		item, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		args = append(args, item)
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.kind != tokRParen {
		return nil, fmt.Errorf("expected ) to close IN list at position %d", p.cur.off)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return Call{Op: "in", Args: args}, nil
}

func (p *parser) parseLike(val Expr, op string) (Expr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	pattern, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	return Call{Op: op, Args: []Expr{val, pattern}}, nil
}

func (p *parser) parseIsNull(val Expr) (Expr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	negated := false
	if p.isKeyword("NOT") {
		negated = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if !p.isKeyword("NULL") {
		return nil, fmt.Errorf("expected NULL after IS at position %d", p.cur.off)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var expr Expr = Call{Op: "isnull", Args: []Expr{val}}
	if negated {
		expr = Call{Op: "not", Args: []Expr{expr}}
	}
	return expr, nil
}

func (p *parser) parseArith() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokOp && (p.cur.text == "+" || p.cur.text == "-") {
		op := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = Call{Op: op, Args: []Expr{left, right}}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokOp && (p.cur.text == "*" || p.cur.text == "/" || p.cur.text == "%") {
		op := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = Call{Op: op, Args: []Expr{left, right}}
	}
	return left, nil
}

func (p *parser) parseFactor() (Expr, error) {
	if p.cur.kind == tokOp && p.cur.text == "-" {
		off := p.cur.off
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind != tokNumber {
			return nil, fmt.Errorf("unexpected unary - at position %d", off)
		}
		n, err := p.parseNumber()
		if err != nil {
			return nil, err
		}
		return Number(-float64(n.(Number))), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	switch p.cur.kind {
	case tokNumber:
		return p.parseNumber()
	case tokString:
		s := String(p.cur.text)
		if err := p.advance(); err != nil {
			return nil, err
		}
		return s, nil
	case tokQuotedIdent:
		prop := Property{Name: p.cur.text}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return prop, nil
	case tokLParen:
		return p.parseParenGroup()
	case tokIdent:
		return p.parseIdent()
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of filter")
	default:
		return nil, fmt.Errorf("unexpected %q at position %d", p.cur.text, p.cur.off)
	}
}

func (p *parser) parseNumber() (Expr, error) {
	v, err := strconv.ParseFloat(p.cur.text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q at position %d", p.cur.text, p.cur.off)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return Number(v), nil
}

// parseParenGroup handles both grouping and array literals: a single
// element is a grouped expression, several comma-separated elements form
// an array.
func (p *parser) parseParenGroup() (Expr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	var items []Expr
	for {
		item, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.kind != tokRParen {
		return nil, fmt.Errorf("expected ) at position %d", p.cur.off)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return Array{Items: items}, nil
}

func (p *parser) parseIdent() (Expr, error) {
	name := p.cur.text
	upper := strings.ToUpper(name)

	switch upper {
	case "TRUE":
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Bool(true), nil
	case "FALSE":
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Bool(false), nil
	case "NULL":
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Null{}, nil
	}

	if wktTypes[upper] && p.ahead.kind == tokLParen {
		return p.parseWKT()
	}

	if p.ahead.kind != tokLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Property{Name: name}, nil
	}

	// Consume the name and the opening paren.
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	switch upper {
	case "DATE":
		s, err := p.parseStringArgs(1)
		if err != nil {
			return nil, fmt.Errorf("DATE: %w", err)
		}
		return Date{Value: s[0]}, nil
	case "TIMESTAMP":
		s, err := p.parseStringArgs(1)
		if err != nil {
			return nil, fmt.Errorf("TIMESTAMP: %w", err)
		}
		return Timestamp{Value: s[0]}, nil
	case "INTERVAL":
		s, err := p.parseStringArgs(2)
		if err != nil {
			return nil, fmt.Errorf("INTERVAL: %w", err)
		}
		return Interval{Elems: []Expr{String(s[0]), String(s[1])}}, nil
	case "BBOX":
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return BBox{Coords: args}, nil
	default:
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return Call{Op: name, Args: args}, nil
	}
}

// parseWKT captures a well-known-text geometry literal verbatim from the
// source, balancing parentheses.
func (p *parser) parseWKT() (Expr, error) {
	start := p.cur.off
	openOff := p.ahead.off
	depth := 0
	end := -1
	for i := openOff; i < len(p.src); i++ {
		switch p.src[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return nil, fmt.Errorf("unterminated geometry at position %d", start)
	}
	wkt := p.src[start:end]
	p.pos = end
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return GeometryWKT{WKT: wkt}, nil
}

// parseArgs parses a comma-separated argument list, the opening paren
// already consumed.
func (p *parser) parseArgs() ([]Expr, error) {
	var args []Expr
	if p.cur.kind == tokRParen {
		return args, p.advance()
	}
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.kind != tokRParen {
		return nil, fmt.Errorf("expected ) at position %d", p.cur.off)
	}
	return args, p.advance()
}

// parseStringArgs parses exactly n string literal arguments and the
// closing paren, the opening paren already consumed.
func (p *parser) parseStringArgs(n int) ([]string, error) {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			if p.cur.kind != tokComma {
				return nil, fmt.Errorf("expected , at position %d", p.cur.off)
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if p.cur.kind != tokString {
			return nil, fmt.Errorf("expected string literal at position %d", p.cur.off)
		}
		out = append(out, p.cur.text)
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.cur.kind != tokRParen {
		return nil, fmt.Errorf("expected ) at position %d", p.cur.off)
	}
	return out, p.advance()
}

func (p *parser) isKeyword(kw string) bool {
	return p.cur.kind == tokIdent && strings.EqualFold(p.cur.text, kw)
}

func (p *parser) aheadKeyword(kw string) bool {
	return p.ahead.kind == tokIdent && strings.EqualFold(p.ahead.text, kw)
}

func (p *parser) advance() error {
	p.cur = p.ahead
	tok, err := p.scan()
	if err != nil {
		return err
	}
	p.ahead = tok
	return nil
}

func (p *parser) scan() (token, error) {
	for p.pos < len(p.src) && isSpace(p.src[p.pos]) {
		p.pos++
	}
	if p.pos >= len(p.src) {
		return token{kind: tokEOF, off: p.pos}, nil
	}

	off := p.pos
	c := p.src[p.pos]

	switch {
	case c == '(':
		p.pos++
		return token{kind: tokLParen, text: "(", off: off}, nil
	case c == ')':
		p.pos++
		return token{kind: tokRParen, text: ")", off: off}, nil
	case c == ',':
		p.pos++
		return token{kind: tokComma, text: ",", off: off}, nil
	case c == '\'':
		return p.scanString(off)
	case c == '"':
		return p.scanQuotedIdent(off)
	case c >= '0' && c <= '9':
		return p.scanNumber(off)
	case c == '.' && p.pos+1 < len(p.src) && p.src[p.pos+1] >= '0' && p.src[p.pos+1] <= '9':
		return p.scanNumber(off)
	case isIdentStart(rune(c)):
		return p.scanIdent(off)
	}

	switch c {
	case '<':
		if p.pos+1 < len(p.src) && (p.src[p.pos+1] == '>' || p.src[p.pos+1] == '=') {
			p.pos += 2
			return token{kind: tokOp, text: p.src[off:p.pos], off: off}, nil
		}
		p.pos++
		return token{kind: tokOp, text: "<", off: off}, nil
	case '>':
		if p.pos+1 < len(p.src) && p.src[p.pos+1] == '=' {
			p.pos += 2
			return token{kind: tokOp, text: ">=", off: off}, nil
		}
		p.pos++
		return token{kind: tokOp, text: ">", off: off}, nil
	case '!':
		if p.pos+1 < len(p.src) && p.src[p.pos+1] == '=' {
			p.pos += 2
			return token{kind: tokOp, text: "!=", off: off}, nil
		}
	case '=', '+', '-', '*', '/', '%':
		p.pos++
		return token{kind: tokOp, text: string(c), off: off}, nil
	}
	return token{}, fmt.Errorf("unexpected character %q at position %d", c, off)
}

func (p *parser) scanString(off int) (token, error) {
	p.pos++ // opening quote
	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '\'' {
			if p.pos+1 < len(p.src) && p.src[p.pos+1] == '\'' {
				sb.WriteByte('\'')
				p.pos += 2
				continue
			}
			p.pos++
			return token{kind: tokString, text: sb.String(), off: off}, nil
		}
		sb.WriteByte(c)
		p.pos++
	}
	return token{}, fmt.Errorf("unterminated string at position %d", off)
}

func (p *parser) scanQuotedIdent(off int) (token, error) {
	p.pos++ // opening quote
	start := p.pos
	for p.pos < len(p.src) {
		if p.src[p.pos] == '"' {
			text := p.src[start:p.pos]
			p.pos++
			return token{kind: tokQuotedIdent, text: text, off: off}, nil
		}
		p.pos++
	}
	return token{}, fmt.Errorf("unterminated quoted identifier at position %d", off)
}

func (p *parser) scanNumber(off int) (token, error) {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		if (c == 'e' || c == 'E') && p.pos+1 < len(p.src) {
			next := p.src[p.pos+1]
			if next == '+' || next == '-' || (next >= '0' && next <= '9') {
				p.pos += 2
				continue
			}
		}
		break
	}
	return token{kind: tokNumber, text: p.src[off:p.pos], off: off}, nil
}

func (p *parser) scanIdent(off int) (token, error) {
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if isIdentStart(r) || unicode.IsDigit(r) || r == '.' {
			p.pos++
			continue
		}
		break
	}
	return token{kind: tokIdent, text: p.src[off:p.pos], off: off}, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
