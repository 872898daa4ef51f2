package dialect

import "math"

// mysqlDialect needs MySQL 8.0.14+ for outer references inside derived tables.
//
// MySQL drops the ORDER BY of a derived table read by a grouped or
// aggregating query unless the derived table also has a LIMIT, so ordered
// aggregation subqueries are given one (OrderedSubLimit).
type mysqlDialect struct{}

func (mysqlDialect) Name() string { return MySQL }

func (mysqlDialect) DriverName() string { return "mysql" }

func (mysqlDialect) Placeholder(int) string { return "?" }

func (mysqlDialect) Quote(ident string) string { return quoteWith(ident, "`") }

func (d mysqlDialect) JSONArrayFrom(sub string, keys []string) string {
	return "(SELECT cast(coalesce(json_arrayagg(json_object(" + objectPairs(d, "agg", keys) +
		")), '[]') AS json) FROM (" + sub + ") AS " + d.Quote("agg") + ")"
}

func (d mysqlDialect) JSONObjectFrom(sub string, keys []string) string {
	return "(SELECT json_object(" + objectPairs(d, "obj", keys) +
		") FROM (" + sub + ") AS " + d.Quote("obj") + ")"
}

func (d mysqlDialect) StringArrayFrom(sub string, key string) string {
	return "(SELECT cast(coalesce(json_arrayagg(" + d.Quote("agg") + "." + d.Quote(key) +
		"), '[]') AS json) FROM (" + sub + ") AS " + d.Quote("agg") + ")"
}

// NullsOrder is empty: NULL already compares below every value.
func (mysqlDialect) NullsOrder(bool) string { return "" }

func (mysqlDialect) OrderedSubLimit() int { return math.MaxInt64 }
