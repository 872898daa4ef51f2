// Package dialect renders the SQL that differs between backends.
//
// A Dialect is selected once per connection by ForName and then passed
// explicitly to the compiler. Call sites never branch on dialect strings.
package dialect

import (
	"strings"

	"github.com/roach88/kiosk/internal/ir"
)

// Dialect names.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
	MySQL    = "mysql"
)

// Dialect is the capability set that varies per SQL backend.
//
// The JSON helpers wrap an already rendered correlated subquery. keys are the
// subquery's selected column names in order; the compiler guarantees they are
// explicit (never a wildcard) and valid identifiers.
type Dialect interface {
	// Name returns the canonical dialect name.
	Name() string

	// DriverName returns the database/sql driver name.
	DriverName() string

	// Placeholder returns the bind parameter marker for the n-th (1-based) argument.
	Placeholder(n int) string

	// Quote quotes an identifier.
	Quote(ident string) string

	// JSONArrayFrom aggregates the rows of sub into a JSON array of objects.
	// Zero rows produce an empty array, never NULL.
	JSONArrayFrom(sub string, keys []string) string

	// JSONObjectFrom turns the at-most-one row of sub into a JSON object or NULL.
	JSONObjectFrom(sub string, keys []string) string

	// StringArrayFrom aggregates the single column key of sub into a JSON array of scalars.
	StringArrayFrom(sub string, key string) string
	// NullsOrder returns the suffix that puts NULLs before every value in
	// ascending order and after every value in descending order.
	NullsOrder(desc bool) string
	// OrderedSubLimit returns the LIMIT that stops an ordered subquery from
	// being merged into an aggregating outer query, or 0 when aggregates
	// already see subquery rows in order.
	OrderedSubLimit() int
}

// ForName selects a dialect by tag. Tags are case-insensitive and accept the
// common driver aliases "sqlite3" and "postgresql".
func ForName(tag string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case SQLite, "sqlite3":
		return sqliteDialect{}, nil
	case Postgres, "postgresql", "pg":
		return postgresDialect{}, nil
	case MySQL:
		return mysqlDialect{}, nil
	default:
		return nil, ir.NewDialectUnsupportedError(tag)
	}
}

// MustForName is ForName for static tags. It panics on unknown tags.
func MustForName(tag string) Dialect {
	d, err := ForName(tag)
	if err != nil {
		panic(err)
	}
	return d
}

// objectPairs renders "'k1', alias.k1, 'k2', alias.k2" for object constructors.
func objectPairs(d Dialect, alias string, keys []string) string {
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("'")
		b.WriteString(k)
		b.WriteString("', ")
		b.WriteString(d.Quote(alias))
		b.WriteString(".")
		b.WriteString(d.Quote(k))
	}
	return b.String()
}

func quoteWith(ident string, q string) string {
	return q + strings.ReplaceAll(ident, q, q+q) + q
}
