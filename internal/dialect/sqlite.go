package dialect

// sqliteDialect uses the JSON1 functions bundled with SQLite.
type sqliteDialect struct{}

func (sqliteDialect) Name() string { return SQLite }

func (sqliteDialect) DriverName() string { return "sqlite3" }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) Quote(ident string) string { return quoteWith(ident, `"`) }

func (d sqliteDialect) JSONArrayFrom(sub string, keys []string) string {
	return "(SELECT coalesce(json_group_array(json_object(" + objectPairs(d, "agg", keys) +
		")), '[]') FROM (" + sub + ") AS " + d.Quote("agg") + ")"
}

func (d sqliteDialect) JSONObjectFrom(sub string, keys []string) string {
	return "(SELECT json_object(" + objectPairs(d, "obj", keys) +
		") FROM (" + sub + ") AS " + d.Quote("obj") + ")"
}

func (d sqliteDialect) StringArrayFrom(sub string, key string) string {
	return "(SELECT coalesce(json_group_array(" + d.Quote("agg") + "." + d.Quote(key) +
		"), '[]') FROM (" + sub + ") AS " + d.Quote("agg") + ")"
}

// NullsOrder is empty: NULL already compares below every value.
func (sqliteDialect) NullsOrder(bool) string { return "" }

func (sqliteDialect) OrderedSubLimit() int { return 0 }
