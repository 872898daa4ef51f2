// Package query compiles list/count requests into predicates and orderings.
//
// Pagination is keyset based: a Cursor is the sort-key tuple of a row, and
// the bound it expresses is compiled to a lexicographic tuple comparison so
// pages stay stable under concurrent inserts.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/queryir"
	"github.com/roach88/kiosk/internal/vql"
)

// Order is the sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// DefaultSort is used when neither SortBy nor a cursor names the keys.
var DefaultSort = []string{"updated_at", "id"}

// Pair is one (sort key, value) element of a Cursor.
type Pair struct {
	Key   string
	Value any
}

// Cursor marks a position in a sort order.
type Cursor []Pair

// Keys returns the cursor's key names in order.
func (c Cursor) Keys() []string {
	keys := make([]string, len(c))
	for i, p := range c {
		keys[i] = p.Key
	}
	return keys
}

// ApiQuery is the abstract list/count request.
type ApiQuery struct {
	SortBy      []string
	Order       Order
	Limit       int
	LimitToLast int
	StartAt     Cursor
	StartAfter  Cursor
	EndAt       Cursor
	EndBefore   Cursor
	VQL         string
	Expand      []string

	parsed    *vql.Node
	parsedSrc string
	hasParsed bool
}

// VQLTree returns the parsed VQL expression, parsing at most once per
// distinct VQL string so a list/count pair shares the work.
func (q *ApiQuery) VQLTree() (*vql.Node, error) {
	if q.hasParsed && q.parsedSrc == q.VQL {
		return q.parsed, nil
	}
	n, err := vql.Parse(q.VQL)
	if err != nil {
		return nil, err
	}
	q.parsed, q.parsedSrc, q.hasParsed = n, q.VQL, true
	return n, nil
}

// Compiled is the dialect-neutral outcome of compiling an ApiQuery.
type Compiled struct {
	// Where is the conjunction of cursor bounds and VQL (nil = no filter).
	Where queryir.Predicate

	// OrderBy is the SQL ordering. It is reversed from the logical order
	// when Reverse is set.
	OrderBy []queryir.Order

	// Limit is the SQL limit (0 = none).
	Limit int

	// Reverse tells the caller to reverse the fetched rows to restore the
	// logical order (limitToLast).
	Reverse bool
}

// Compile compiles q against table. columns lists the sortable columns of
// the resource; sort and cursor keys outside it are rejected.
func Compile(q *ApiQuery, table string, columns []string) (Compiled, error) {
	if q == nil {
		q = &ApiQuery{}
	}
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}

	order := q.Order
	switch order {
	case "":
		order = Asc
	case Asc, Desc:
	default:
		return Compiled{}, ir.NewQueryCompileError("unknown order %q", q.Order)
	}
	if q.Limit < 0 || q.LimitToLast < 0 {
		return Compiled{}, ir.NewQueryCompileError("negative limit")
	}

	keys := sortKeys(q)
	for _, k := range keys {
		if !known[k] {
			return Compiled{}, ir.NewQueryCompileError("unknown sort key %q for %s", k, table)
		}
	}

	var preds []queryir.Predicate
	bounds := []struct {
		cursor Cursor
		lower  bool
		strict bool
	}{
		{q.StartAt, true, false},
		{q.StartAfter, true, true},
		{q.EndAt, false, false},
		{q.EndBefore, false, true},
	}
	for _, b := range bounds {
		if len(b.cursor) == 0 {
			continue
		}
		if err := checkCursor(b.cursor, keys); err != nil {
			return Compiled{}, err
		}
		preds = append(preds, TupleBound(table, b.cursor, relation(order, b.lower, b.strict)))
	}

	tree, err := q.VQLTree()
	if err != nil {
		return Compiled{}, err
	}
	search, err := vql.Compile(tree, table)
	if err != nil {
		return Compiled{}, err
	}
	preds = append(preds, search)

	out := Compiled{Where: queryir.AllOf(preds...), Limit: q.Limit}
	desc := order == Desc
	if q.Limit == 0 && q.LimitToLast > 0 {
		desc = !desc
		out.Limit = q.LimitToLast
		out.Reverse = true
	}
	for _, k := range keys {
		out.OrderBy = append(out.OrderBy, queryir.Order{Expr: queryir.C(table, k), Desc: desc})
	}
	return out, nil
}

// sortKeys resolves the effective sort keys: SortBy, else the keys of the
// first cursor, else DefaultSort; "id" is appended as the final tiebreaker.
func sortKeys(q *ApiQuery) []string {
	keys := q.SortBy
	if len(keys) == 0 {
		for _, c := range []Cursor{q.StartAt, q.StartAfter, q.EndAt, q.EndBefore} {
			if len(c) > 0 {
				keys = c.Keys()
				break
			}
		}
	}
	if len(keys) == 0 {
		keys = DefaultSort
	}
	out := append([]string(nil), keys...)
	for _, k := range out {
		if k == "id" {
			return out
		}
	}
	return append(out, "id")
}

// checkCursor requires the cursor keys to be a prefix of the sort keys.
func checkCursor(c Cursor, keys []string) error {
	if len(c) > len(keys) {
		return ir.NewQueryCompileError("cursor has %d keys, sort has %d", len(c), len(keys))
	}
	for i, p := range c {
		if p.Key != keys[i] {
			return ir.NewQueryCompileError("cursor key %d is %q, sort key is %q", i, p.Key, keys[i])
		}
	}
	return nil
}

// relation picks the comparison for a bound. Lower bounds look forward in
// the sort direction, upper bounds backward.
func relation(order Order, lower, strict bool) queryir.CmpOp {
	forward := lower == (order == Asc)
	switch {
	case forward && strict:
		return queryir.OpGt
	case forward:
		return queryir.OpGe
	case strict:
		return queryir.OpLt
	default:
		return queryir.OpLe
	}
}

// TupleBound compiles (k1..kn) <op> (v1..vn) into the disjunction over i of
// "keys before i are equal and key i satisfies op", where every term except
// the last uses the strict form of op.
//
// For two keys and >=:  (k1 > v1) OR (k1 = v1 AND k2 >= v2)
//
// NULL sorts before every value (see dialect.NullsOrder), and a nil cursor
// value is a NULL position, so each term is rendered with explicit NULL
// tests instead of comparisons that would evaluate to NULL.
func TupleBound(table string, c Cursor, op queryir.CmpOp) queryir.Predicate {
	strict := op
	switch op {
	case queryir.OpGe:
		strict = queryir.OpGt
	case queryir.OpLe:
		strict = queryir.OpLt
	}

	terms := make([]queryir.Predicate, 0, len(c))
	for i := range c {
		conj := make([]queryir.Predicate, 0, i+1)
		for j := 0; j < i; j++ {
			conj = append(conj, compare(queryir.C(table, c[j].Key), queryir.OpEq, c[j].Value))
		}
		rel := strict
		if i == len(c)-1 {
			rel = op
		}
		conj = append(conj, compare(queryir.C(table, c[i].Key), rel, c[i].Value))
		term := queryir.AllOf(conj...)
		if term == nil {
			term = queryir.And{}
		}
		terms = append(terms, term)
	}
	if len(terms) == 1 {
		return terms[0]
	}
	return queryir.Or{Predicates: terms}
}

// compare renders col <op> v with NULL as the least value.
func compare(col queryir.Col, op queryir.CmpOp, v any) queryir.Predicate {
	isNull := queryir.IsNull{Expr: col}
	if v == nil {
		switch op {
		case queryir.OpEq, queryir.OpLe:
			return isNull
		case queryir.OpGt:
			return queryir.IsNull{Expr: col, Negate: true}
		case queryir.OpGe:
			return queryir.And{}
		default:
			return queryir.Or{}
		}
	}
	cmp := queryir.Cmp{Left: col, Op: op, Right: queryir.V(v)}
	switch op {
	case queryir.OpLt, queryir.OpLe:
		return queryir.Or{Predicates: []queryir.Predicate{cmp, isNull}}
	default:
		return cmp
	}
}

// ParseCursor parses "key:value,key:value". Values that parse as numbers or
// booleans are typed accordingly, "null" is a NULL position and everything
// else is a string. Colons after
// the first belong to the value, so timestamps survive.
func ParseCursor(s string) (Cursor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var c Cursor
	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(part, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, ir.NewQueryCompileError("cursor element %q is not key:value", part)
		}
		c = append(c, Pair{Key: key, Value: parseScalar(strings.TrimSpace(value))})
	}
	return c, nil
}

func parseScalar(s string) any {
	switch s {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// CursorOf builds the cursor of row for the given keys.
func CursorOf(row ir.Document, keys []string) Cursor {
	c := make(Cursor, 0, len(keys))
	for _, k := range keys {
		c = append(c, Pair{Key: k, Value: row[k]})
	}
	return c
}

// String renders a cursor in ParseCursor form.
func (c Cursor) String() string {
	parts := make([]string, len(c))
	for i, p := range c {
		if p.Value == nil {
			parts[i] = p.Key + ":null"
			continue
		}
		parts[i] = fmt.Sprintf("%s:%v", p.Key, p.Value)
	}
	return strings.Join(parts, ",")
}
