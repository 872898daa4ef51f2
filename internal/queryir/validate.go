package queryir

import (
	"fmt"
	"regexp"

	"github.com/roach88/kiosk/internal/ir"
)

// identifierPattern is the only identifier shape the compiler will render.
// Table names, aliases, columns and JSON keys all pass through it, which is
// what makes quoting a formality rather than a security boundary.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s can be used as a table, alias or column name.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Validate checks a statement before compilation.
//
// Rules:
//  1. Every identifier matches ValidIdentifier
//  2. JSONArray and JSONObject subqueries select explicit, named columns
//  3. StringArray subqueries select exactly one named column
//  4. Predicates and expressions are never nil where required
//  5. Insert rows match the column count; Insert has rows xor a query
//
// Violations are programmer errors and are reported as QueryCompile
// storage errors. Validate is a pure function with no side effects.
func Validate(stmt Statement) error {
	v := &validator{}
	v.statement(stmt)
	return v.err
}

type validator struct {
	err error
}

func (v *validator) fail(format string, args ...any) {
	if v.err == nil {
		v.err = ir.NewQueryCompileError(format, args...)
	}
}

func (v *validator) ident(what, s string) {
	if !ValidIdentifier(s) {
		v.fail("invalid %s %q", what, s)
	}
}

func (v *validator) statement(stmt Statement) {
	switch s := stmt.(type) {
	case Select:
		v.selectStmt(s)
	case *Select:
		v.selectStmt(*s)
	case Insert:
		v.insert(s)
	case *Insert:
		v.insert(*s)
	case Delete:
		v.delete(s)
	case *Delete:
		v.delete(*s)
	case nil:
		v.fail("nil statement")
	default:
		v.fail("unknown statement type %T", stmt)
	}
}

func (v *validator) selectStmt(s Select) {
	v.ident("table", s.From)
	if s.As != "" {
		v.ident("alias", s.As)
	}
	if !s.Star && len(s.Columns) == 0 {
		v.fail("select from %q has no columns", s.From)
	}
	if s.Star && len(s.Columns) > 0 {
		v.fail("select from %q mixes * with explicit columns", s.From)
	}
	for _, c := range s.Columns {
		v.expr(c.Expr)
		if c.Alias != "" {
			v.ident("column alias", c.Alias)
		}
	}
	for _, j := range s.Joins {
		v.ident("join table", j.Table)
		if j.As != "" {
			v.ident("join alias", j.As)
		}
		if j.On == nil {
			v.fail("join of %q has no condition", j.Table)
		}
		v.predicate(j.On)
	}
	if s.Where != nil {
		v.predicate(s.Where)
	}
	for _, o := range s.OrderBy {
		v.expr(o.Expr)
	}
	if s.Limit < 0 {
		v.fail("negative limit %d", s.Limit)
	}
}

// keyed requires explicit columns that all have a usable output name.
func (v *validator) keyed(helper string, s Select) {
	if s.Star {
		v.fail("%s over select * from %q: explicit columns are required", helper, s.From)
		return
	}
	for i, c := range s.Columns {
		if c.Key() == "" {
			v.fail("%s column %d of %q has no name", helper, i, s.From)
		}
	}
}

func (v *validator) insert(s Insert) {
	v.ident("table", s.Table)
	if len(s.Columns) == 0 {
		v.fail("insert into %q has no columns", s.Table)
	}
	for _, c := range s.Columns {
		v.ident("column", c)
	}
	switch {
	case s.Query != nil && len(s.Rows) > 0:
		v.fail("insert into %q has both rows and a query", s.Table)
	case s.Query != nil:
		v.selectStmt(*s.Query)
		if !s.Query.Star && len(s.Query.Columns) != len(s.Columns) {
			v.fail("insert into %q selects %d columns for %d targets", s.Table, len(s.Query.Columns), len(s.Columns))
		}
	case len(s.Rows) == 0:
		v.fail("insert into %q has no rows", s.Table)
	}
	for i, row := range s.Rows {
		if len(row) != len(s.Columns) {
			v.fail("insert into %q row %d has %d values for %d columns", s.Table, i, len(row), len(s.Columns))
		}
	}
}

func (v *validator) delete(s Delete) {
	v.ident("table", s.Table)
	if s.Where != nil {
		v.predicate(s.Where)
	}
}

func (v *validator) expr(e Expr) {
	switch x := e.(type) {
	case Col:
		if x.Table != "" {
			v.ident("table", x.Table)
		}
		v.ident("column", x.Name)
	case Lit, CountAll:
	case JSONArray:
		v.keyed("json array", x.Sub)
		v.selectStmt(x.Sub)
	case JSONObject:
		v.keyed("json object", x.Sub)
		v.selectStmt(x.Sub)
	case StringArray:
		if x.Sub.Star || len(x.Sub.Columns) != 1 {
			v.fail("string array over %q must select exactly one column", x.Sub.From)
			return
		}
		v.keyed("string array", x.Sub)
		v.selectStmt(x.Sub)
	case nil:
		v.fail("nil expression")
	default:
		v.fail("unknown expression type %T", e)
	}
}

func (v *validator) predicate(p Predicate) {
	switch x := p.(type) {
	case Cmp:
		switch x.Op {
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLike:
		default:
			v.fail("unknown comparison operator %q", x.Op)
		}
		v.expr(x.Left)
		v.expr(x.Right)
	case IsNull:
		v.expr(x.Expr)
	case In:
		v.expr(x.Left)
	case InSelect:
		v.expr(x.Left)
		v.selectStmt(x.Sub)
	case Exists:
		v.selectStmt(x.Sub)
	case And:
		for _, c := range x.Predicates {
			v.predicate(c)
		}
	case Or:
		for _, c := range x.Predicates {
			v.predicate(c)
		}
	case Not:
		if x.Predicate == nil {
			v.fail("NOT without operand")
			return
		}
		v.predicate(x.Predicate)
	case nil:
		v.fail("nil predicate")
	default:
		v.fail("unknown predicate type %T", p)
	}
}

// String renders a short description of a statement for logs.
func String(stmt Statement) string {
	switch s := stmt.(type) {
	case Select:
		return fmt.Sprintf("select %s", s.From)
	case Insert:
		return fmt.Sprintf("insert %s", s.Table)
	case Delete:
		return fmt.Sprintf("delete %s", s.Table)
	default:
		return fmt.Sprintf("%T", stmt)
	}
}
