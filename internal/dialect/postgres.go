package dialect

import "strconv"

// postgresDialect aggregates whole rows with json_agg/to_json, so the keys
// are taken from the subquery's column names by the server.
type postgresDialect struct{}

func (postgresDialect) Name() string { return Postgres }

func (postgresDialect) DriverName() string { return "postgres" }

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) Quote(ident string) string { return quoteWith(ident, `"`) }

func (d postgresDialect) JSONArrayFrom(sub string, _ []string) string {
	return "(SELECT coalesce(json_agg(" + d.Quote("agg") + "), '[]') FROM (" + sub + ") AS " + d.Quote("agg") + ")"
}

func (d postgresDialect) JSONObjectFrom(sub string, _ []string) string {
	return "(SELECT to_json(" + d.Quote("obj") + ") FROM (" + sub + ") AS " + d.Quote("obj") + ")"
}

func (d postgresDialect) StringArrayFrom(sub string, key string) string {
	return "(SELECT coalesce(json_agg(" + d.Quote("agg") + "." + d.Quote(key) +
		"), '[]') FROM (" + sub + ") AS " + d.Quote("agg") + ")"
}

func (postgresDialect) NullsOrder(desc bool) string {
	if desc {
		return " NULLS LAST"
	}
	return " NULLS FIRST"
}

func (postgresDialect) OrderedSubLimit() int { return 0 }
