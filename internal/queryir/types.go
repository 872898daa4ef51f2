package queryir

import "strings"

// Statement is a complete SQL statement.
//
// This is a sealed interface - only types in this package implement it.
//
// Statement types:
//   - Select: a query, also used as a subquery inside expressions
//   - Insert: literal rows or INSERT ... SELECT
//   - Delete: filtered delete
type Statement interface {
	statementNode() // Marker method - seals interface to this package
}

// Expr is a scalar SQL expression.
//
// Expr types:
//   - Col: a (possibly table-qualified) column reference
//   - Lit: a bound parameter
//   - CountAll: count(*)
//   - JSONArray, JSONObject, StringArray: dialect JSON aggregation of a subquery
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Predicate is a boolean SQL expression.
//
// Predicate types:
//   - Cmp: binary comparison
//   - In: membership in a literal list
//   - InSelect: membership in a subquery
//   - Exists: correlated existence test
//   - IsNull: NULL test
//   - And, Or, Not: boolean composition
//
// An empty And is true and an empty Or is false, so callers can build
// conjunctions incrementally without special cases.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Col references a column. Table may be a table name or an alias; an empty
// Table renders an unqualified column.
type Col struct {
	Table string
	Name  string
}

func (Col) exprNode() {}

// C is shorthand for a qualified column.
func C(table, name string) Col {
	return Col{Table: table, Name: name}
}

// Lit is a literal bound as a parameter. Booleans are bound as 0/1 because
// every boolean column is stored as an integer.
type Lit struct {
	Value any
}

func (Lit) exprNode() {}

// V is shorthand for a literal.
func V(v any) Lit {
	return Lit{Value: v}
}

// CountAll renders count(*).
type CountAll struct{}

func (CountAll) exprNode() {}

// JSONArray aggregates the rows of Sub into a JSON array of objects keyed by
// the selected column names. Sub must select explicit columns.
type JSONArray struct {
	Sub Select
}

func (JSONArray) exprNode() {}

// JSONObject turns the single row of Sub into a JSON object (NULL when no
// row matches). Sub must select explicit columns.
type JSONObject struct {
	Sub Select
}

func (JSONObject) exprNode() {}

// StringArray aggregates the only selected column of Sub into a JSON array
// of scalars, in Sub's order.
type StringArray struct {
	Sub Select
}

func (StringArray) exprNode() {}

// Column is one entry of a select list.
//
// Alias names the output column. When empty, the name of a Col expression
// is used; every other expression needs an alias to be addressable by the
// JSON helpers.
type Column struct {
	Expr  Expr
	Alias string
}

// Key returns the output column name, or "" if it has none.
func (c Column) Key() string {
	if c.Alias != "" {
		return c.Alias
	}
	if col, ok := c.Expr.(Col); ok {
		return col.Name
	}
	return ""
}

// Join is an INNER JOIN of a table under an optional alias.
type Join struct {
	Table string
	As    string
	On    Predicate
}

// Order is one ORDER BY term.
type Order struct {
	Expr Expr
	Desc bool
}

// Select represents a SELECT statement.
//
// Semantics:
//
//	SELECT <columns | *> FROM <from> [AS <as>] [INNER JOIN ...]
//	[WHERE <where>] [ORDER BY <order>] [LIMIT <limit>]
//
// Example:
//
//	Select{
//	  Columns: []Column{{Expr: C("products", "id")}},
//	  From:    "products",
//	  Where:   Cmp{Left: C("products", "active"), Op: OpEq, Right: V(true)},
//	  OrderBy: []Order{{Expr: C("products", "id")}},
//	  Limit:   10,
//	}
//
// Star selects every column and is rejected wherever named keys are needed
// (JSONArray, JSONObject).
type Select struct {
	Columns []Column
	Star    bool
	From    string
	As      string
	Joins   []Join
	Where   Predicate // nil = no filter
	OrderBy []Order
	Limit   int // 0 = no limit
}

func (Select) statementNode() {}

// Keys returns the output column names of s in order.
func (s Select) Keys() []string {
	keys := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		keys[i] = c.Key()
	}
	return keys
}

// Insert represents INSERT INTO <table> (<columns>) VALUES ... or, when
// Query is set, INSERT INTO <table> (<columns>) <query>.
type Insert struct {
	Table   string
	Columns []string
	Rows    [][]any
	Query   *Select
}

func (Insert) statementNode() {}

// Delete represents DELETE FROM <table> [WHERE <where>].
type Delete struct {
	Table string
	Where Predicate
}

func (Delete) statementNode() {}

// CmpOp is a binary comparison operator.
type CmpOp string

const (
	OpEq   CmpOp = "="
	OpNe   CmpOp = "<>"
	OpLt   CmpOp = "<"
	OpLe   CmpOp = "<="
	OpGt   CmpOp = ">"
	OpGe   CmpOp = ">="
	OpLike CmpOp = "LIKE"
)

// LikeEscape is the escape character rendered after every LIKE. It is not a
// backslash because MySQL treats backslashes in string literals specially.
const LikeEscape = '!'

// EscapeLike escapes the LIKE wildcards in s so it matches literally.
func EscapeLike(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '%' || r == '_' || r == LikeEscape {
			b.WriteRune(LikeEscape)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Cmp compares two expressions.
type Cmp struct {
	Left  Expr
	Op    CmpOp
	Right Expr
}

func (Cmp) predicateNode() {}

// Eq is shorthand for Left = Right.
func Eq(left, right Expr) Cmp {
	return Cmp{Left: left, Op: OpEq, Right: right}
}

// IsNull tests Expr for NULL, or for NOT NULL when negated.
type IsNull struct {
	Expr   Expr
	Negate bool
}

func (IsNull) predicateNode() {}

// In tests membership of Left in a literal list. An empty list is false
// (true when negated).
type In struct {
	Left   Expr
	Values []any
	Negate bool
}

func (In) predicateNode() {}

// InSelect tests membership of Left in the rows of a subquery.
type InSelect struct {
	Left   Expr
	Sub    Select
	Negate bool
}

func (InSelect) predicateNode() {}

// Exists tests whether Sub returns at least one row.
type Exists struct {
	Sub Select
}

func (Exists) predicateNode() {}

// And is true when every predicate is true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is true when any predicate is true.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// AllOf builds an And, dropping nil predicates and flattening nested Ands.
// It returns nil when nothing remains.
func AllOf(preds ...Predicate) Predicate {
	var out []Predicate
	for _, p := range preds {
		switch v := p.(type) {
		case nil:
			continue
		case And:
			out = append(out, v.Predicates...)
		default:
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return And{Predicates: out}
	}
}
