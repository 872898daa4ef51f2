// Package querysql compiles queryir statements to parameterized SQL for one dialect.
package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/kiosk/internal/dialect"
	"github.com/roach88/kiosk/internal/queryir"
)

// Compiler compiles queryir statements to SQL for a fixed dialect.
//
// CRITICAL: All values are parameterized (never interpolated).
// CRITICAL: Statements are validated before rendering, so malformed
// identifiers and wildcard JSON subqueries fail as QueryCompile errors
// instead of producing broken SQL.
type Compiler struct {
	d dialect.Dialect
}

// New creates a Compiler for d.
func New(d dialect.Dialect) *Compiler {
	return &Compiler{d: d}
}

// Dialect returns the compiler's dialect.
func (c *Compiler) Dialect() dialect.Dialect {
	return c.d
}

// Compile converts a statement to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *Compiler) Compile(stmt queryir.Statement) (string, []any, error) {
	if err := queryir.Validate(stmt); err != nil {
		return "", nil, err
	}

	w := &writer{d: c.d}
	switch s := stmt.(type) {
	case queryir.Select:
		w.selectStmt(&w.buf, s)
	case *queryir.Select:
		w.selectStmt(&w.buf, *s)
	case queryir.Insert:
		w.insert(s)
	case *queryir.Insert:
		w.insert(*s)
	case queryir.Delete:
		w.delete(s)
	case *queryir.Delete:
		w.delete(*s)
	default:
		return "", nil, fmt.Errorf("unsupported statement type: %T", stmt)
	}
	return w.buf.String(), w.args, nil
}

// writer accumulates SQL text and parameters. Subqueries render into their
// own builder but share args, so placeholder numbering follows text order.
type writer struct {
	d    dialect.Dialect
	buf  strings.Builder
	args []any
}

func (w *writer) bind(b *strings.Builder, v any) {
	w.args = append(w.args, bindValue(v))
	b.WriteString(w.d.Placeholder(len(w.args)))
}

// bindValue maps Go values to what every driver accepts for our columns.
func bindValue(v any) any {
	switch val := v.(type) {
	case bool:
		if val {
			return 1
		}
		return 0
	default:
		return v
	}
}

func (w *writer) quote(s string) string {
	return w.d.Quote(s)
}

func (w *writer) selectStmt(b *strings.Builder, s queryir.Select) {
	b.WriteString("SELECT ")
	if s.Star {
		b.WriteString("*")
	}
	for i, col := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		w.expr(b, col.Expr)
		if col.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(w.quote(col.Alias))
		}
	}

	b.WriteString(" FROM ")
	b.WriteString(w.quote(s.From))
	if s.As != "" {
		b.WriteString(" AS ")
		b.WriteString(w.quote(s.As))
	}

	for _, j := range s.Joins {
		b.WriteString(" INNER JOIN ")
		b.WriteString(w.quote(j.Table))
		if j.As != "" {
			b.WriteString(" AS ")
			b.WriteString(w.quote(j.As))
		}
		b.WriteString(" ON ")
		w.predicate(b, j.On)
	}

	if s.Where != nil {
		b.WriteString(" WHERE ")
		w.predicate(b, s.Where)
	}

	if len(s.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			w.expr(b, o.Expr)
			if o.Desc {
				b.WriteString(" DESC")
			} else {
				b.WriteString(" ASC")
			}
			b.WriteString(w.d.NullsOrder(o.Desc))
		}
	}

	if s.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(s.Limit))
	}
}

func (w *writer) subquery(s queryir.Select) string {
	var sub strings.Builder
	w.selectStmt(&sub, s)
	return sub.String()
}

// aggregated renders a subquery whose rows are folded into a JSON array.
// An ordered subquery gets the dialect's LIMIT so its order reaches the
// aggregate.
func (w *writer) aggregated(s queryir.Select) string {
	if len(s.OrderBy) > 0 && s.Limit == 0 {
		s.Limit = w.d.OrderedSubLimit()
	}
	return w.subquery(s)
}

func (w *writer) insert(s queryir.Insert) {
	b := &w.buf
	b.WriteString("INSERT INTO ")
	b.WriteString(w.quote(s.Table))
	b.WriteString(" (")
	for i, c := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(w.quote(c))
	}
	b.WriteString(")")

	if s.Query != nil {
		b.WriteString(" ")
		w.selectStmt(b, *s.Query)
		return
	}

	b.WriteString(" VALUES ")
	for i, row := range s.Rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			w.bind(b, v)
		}
		b.WriteString(")")
	}
}

func (w *writer) delete(s queryir.Delete) {
	b := &w.buf
	b.WriteString("DELETE FROM ")
	b.WriteString(w.quote(s.Table))
	if s.Where != nil {
		b.WriteString(" WHERE ")
		w.predicate(b, s.Where)
	}
}

func (w *writer) expr(b *strings.Builder, e queryir.Expr) {
	switch x := e.(type) {
	case queryir.Col:
		if x.Table != "" {
			b.WriteString(w.quote(x.Table))
			b.WriteString(".")
		}
		b.WriteString(w.quote(x.Name))
	case queryir.Lit:
		w.bind(b, x.Value)
	case queryir.CountAll:
		b.WriteString("count(*)")
	case queryir.JSONArray:
		b.WriteString(w.d.JSONArrayFrom(w.aggregated(x.Sub), x.Sub.Keys()))
	case queryir.JSONObject:
		b.WriteString(w.d.JSONObjectFrom(w.subquery(x.Sub), x.Sub.Keys()))
	case queryir.StringArray:
		b.WriteString(w.d.StringArrayFrom(w.aggregated(x.Sub), x.Sub.Columns[0].Key()))
	}
}

func (w *writer) predicate(b *strings.Builder, p queryir.Predicate) {
	switch x := p.(type) {
	case queryir.Cmp:
		w.expr(b, x.Left)
		b.WriteString(" ")
		b.WriteString(string(x.Op))
		b.WriteString(" ")
		w.expr(b, x.Right)
		if x.Op == queryir.OpLike {
			b.WriteString(" ESCAPE '" + string(queryir.LikeEscape) + "'")
		}
	case queryir.IsNull:
		w.expr(b, x.Expr)
		if x.Negate {
			b.WriteString(" IS NOT NULL")
		} else {
			b.WriteString(" IS NULL")
		}
	case queryir.In:
		if len(x.Values) == 0 {
			if x.Negate {
				b.WriteString("1 = 1")
			} else {
				b.WriteString("1 = 0")
			}
			return
		}
		w.expr(b, x.Left)
		if x.Negate {
			b.WriteString(" NOT IN (")
		} else {
			b.WriteString(" IN (")
		}
		for i, v := range x.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			w.bind(b, v)
		}
		b.WriteString(")")
	case queryir.InSelect:
		w.expr(b, x.Left)
		if x.Negate {
			b.WriteString(" NOT IN (")
		} else {
			b.WriteString(" IN (")
		}
		b.WriteString(w.subquery(x.Sub))
		b.WriteString(")")
	case queryir.Exists:
		b.WriteString("EXISTS (")
		b.WriteString(w.subquery(x.Sub))
		b.WriteString(")")
	case queryir.And:
		w.junction(b, x.Predicates, " AND ", "1 = 1")
	case queryir.Or:
		w.junction(b, x.Predicates, " OR ", "1 = 0")
	case queryir.Not:
		b.WriteString("NOT (")
		w.predicate(b, x.Predicate)
		b.WriteString(")")
	}
}

// junction renders an AND/OR list. Compound children are parenthesized;
// an empty list renders its identity element.
func (w *writer) junction(b *strings.Builder, preds []queryir.Predicate, sep, empty string) {
	switch len(preds) {
	case 0:
		b.WriteString(empty)
		return
	case 1:
		w.predicate(b, preds[0])
		return
	}
	for i, p := range preds {
		if i > 0 {
			b.WriteString(sep)
		}
		if compound(p) {
			b.WriteString("(")
			w.predicate(b, p)
			b.WriteString(")")
		} else {
			w.predicate(b, p)
		}
	}
}

func compound(p queryir.Predicate) bool {
	switch x := p.(type) {
	case queryir.And:
		return len(x.Predicates) > 1
	case queryir.Or:
		return len(x.Predicates) > 1
	default:
		return false
	}
}
