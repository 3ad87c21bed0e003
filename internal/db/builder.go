package db

import (
	"fmt"
	"strconv"
	"strings"
)

// Where accumulates WHERE conditions with positional bind tracking, so
// callers can mix parameterized conditions with pre-compiled predicate
// strings and still hand the backend one consistent argument list.
type Where struct {
	conds []string
	args  []any
	next  int
}

// NewWhere starts a builder with binds numbered from $1.
func NewWhere() *Where { return NewWhereAt(1) }

// NewWhereAt starts a builder with binds numbered from $start, for
// embedding into a statement that already consumes earlier positions.
func NewWhereAt(start int) *Where {
	return &Where{next: start}
}

// Add appends a condition, replacing each ? with the next bind position.
// The number of ? markers must match the number of args.
func (w *Where) Add(cond string, args ...any) *Where {
	if strings.Count(cond, "?") != len(args) {
		panic(fmt.Sprintf("db: condition %q has %d markers for %d args", cond, strings.Count(cond, "?"), len(args)))
	}
	var sb strings.Builder
	for _, r := range cond {
		if r == '?' {
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(w.next))
			w.next++
			continue
		}
		sb.WriteRune(r)
	}
	w.conds = append(w.conds, sb.String())
	w.args = append(w.args, args...)
	return w
}

// AddRaw appends a pre-built predicate that consumes no bind positions.
func (w *Where) AddRaw(pred string) *Where {
	if pred != "" {
		w.conds = append(w.conds, pred)
	}
	return w
}

// Bind registers an argument outside a condition (LIMIT, OFFSET) and
// returns its placeholder.
func (w *Where) Bind(arg any) string {
	w.args = append(w.args, arg)
	p := "$" + strconv.Itoa(w.next)
	w.next++
	return p
}

// SQL returns the WHERE clause, or the empty string when no condition
// was added.
func (w *Where) SQL() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

// Args returns the collected bind arguments in positional order.
func (w *Where) Args() []any { return w.args }
