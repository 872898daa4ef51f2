package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kiosk/internal/dialect"
	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/queryir"
	"github.com/roach88/kiosk/internal/querysql"
)

var productColumns = []string{"id", "handle", "updated_at", "created_at", "price", "active", "title"}

func render(t *testing.T, c Compiled) (string, []any) {
	t.Helper()
	sql, args, err := querysql.New(dialect.MustForName(dialect.SQLite)).Compile(queryir.Select{
		Columns: []queryir.Column{{Expr: queryir.C("products", "id")}},
		From:    "products",
		Where:   c.Where,
		OrderBy: c.OrderBy,
		Limit:   c.Limit,
	})
	require.NoError(t, err)
	return sql, args
}

func TestCompileDefaults(t *testing.T) {
	c, err := Compile(&ApiQuery{}, "products", productColumns)
	require.NoError(t, err)

	sql, args := render(t, c)
	assert.Equal(t, `SELECT "products"."id" FROM "products" ORDER BY "products"."updated_at" ASC, "products"."id" ASC`, sql)
	assert.Empty(t, args)
	assert.False(t, c.Reverse)

	c, err = Compile(nil, "products", productColumns)
	require.NoError(t, err)
	assert.Len(t, c.OrderBy, 2)
}

func TestCompileAppendsIDTiebreaker(t *testing.T) {
	c, err := Compile(&ApiQuery{SortBy: []string{"price"}, Order: Desc, Limit: 3}, "products", productColumns)
	require.NoError(t, err)

	sql, _ := render(t, c)
	assert.Equal(t, `SELECT "products"."id" FROM "products" ORDER BY "products"."price" DESC, "products"."id" DESC LIMIT 3`, sql)

	c, err = Compile(&ApiQuery{SortBy: []string{"id", "price"}}, "products", productColumns)
	require.NoError(t, err)
	assert.Len(t, c.OrderBy, 2)
}

func TestCompileTwoKeyInclusiveLowerBound(t *testing.T) {
	q := &ApiQuery{
		SortBy:  []string{"updated_at", "id"},
		StartAt: Cursor{{Key: "updated_at", Value: "2024-01-01"}, {Key: "id", Value: "prod_1"}},
	}
	c, err := Compile(q, "products", productColumns)
	require.NoError(t, err)

	sql, args := render(t, c)
	assert.Equal(t, `SELECT "products"."id" FROM "products" WHERE "products"."updated_at" > ? OR ("products"."updated_at" = ? AND "products"."id" >= ?) ORDER BY "products"."updated_at" ASC, "products"."id" ASC`, sql)
	assert.Equal(t, []any{"2024-01-01", "2024-01-01", "prod_1"}, args)
}

func TestRelationFlipsWithOrder(t *testing.T) {
	tests := []struct {
		name   string
		order  Order
		lower  bool
		strict bool
		want   queryir.CmpOp
	}{
		{"asc startAt", Asc, true, false, queryir.OpGe},
		{"asc startAfter", Asc, true, true, queryir.OpGt},
		{"asc endAt", Asc, false, false, queryir.OpLe},
		{"asc endBefore", Asc, false, true, queryir.OpLt},
		{"desc startAt", Desc, true, false, queryir.OpLe},
		{"desc startAfter", Desc, true, true, queryir.OpLt},
		{"desc endAt", Desc, false, false, queryir.OpGe},
		{"desc endBefore", Desc, false, true, queryir.OpGt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relation(tt.order, tt.lower, tt.strict))
		})
	}
}

func TestTupleBoundThreeKeys(t *testing.T) {
	c := Cursor{{Key: "a", Value: 1}, {Key: "b", Value: 2}, {Key: "c", Value: 3}}
	pred := TupleBound("t", c, queryir.OpLe)

	or, ok := pred.(queryir.Or)
	require.True(t, ok)
	require.Len(t, or.Predicates, 3)
	assert.Equal(t, queryir.Or{Predicates: []queryir.Predicate{
		queryir.Cmp{Left: queryir.C("t", "a"), Op: queryir.OpLt, Right: queryir.V(1)},
		queryir.IsNull{Expr: queryir.C("t", "a")},
	}}, or.Predicates[0])

	last, ok := or.Predicates[2].(queryir.And)
	require.True(t, ok)
	assert.Equal(t, queryir.Eq(queryir.C("t", "a"), queryir.V(1)), last.Predicates[0])
	assert.Equal(t, queryir.Or{Predicates: []queryir.Predicate{
		queryir.Cmp{Left: queryir.C("t", "c"), Op: queryir.OpLe, Right: queryir.V(3)},
		queryir.IsNull{Expr: queryir.C("t", "c")},
	}}, last.Predicates[2])
}

func TestTupleBoundNullCursorValues(t *testing.T) {
	tests := []struct {
		name string
		op   queryir.CmpOp
		want string
	}{
		{"after null asc", queryir.OpGt, `"t"."price" IS NOT NULL OR ("t"."price" IS NULL AND "t"."id" > ?)`},
		{"at null asc", queryir.OpGe, `"t"."price" IS NOT NULL OR ("t"."price" IS NULL AND "t"."id" >= ?)`},
		{"before null", queryir.OpLt, `1 = 0 OR ("t"."price" IS NULL AND ("t"."id" < ? OR "t"."id" IS NULL))`},
		{"at or before null", queryir.OpLe, `1 = 0 OR ("t"."price" IS NULL AND ("t"."id" <= ? OR "t"."id" IS NULL))`},
	}
	c := Cursor{{Key: "price", Value: nil}, {Key: "id", Value: "prod_b"}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := querysql.New(dialect.MustForName(dialect.SQLite)).Compile(queryir.Select{
				Star:  true,
				From:  "t",
				Where: TupleBound("t", c, tt.op),
			})
			require.NoError(t, err)
			assert.Equal(t, `SELECT * FROM "t" WHERE `+tt.want, sql)
			assert.Equal(t, []any{"prod_b"}, args)
		})
	}
}

func TestTupleBoundSingleNullKey(t *testing.T) {
	c := Cursor{{Key: "price", Value: nil}}
	assert.Equal(t, queryir.And{}, TupleBound("t", c, queryir.OpGe))
	assert.Equal(t, queryir.Or{}, TupleBound("t", c, queryir.OpLt))
	assert.Equal(t, queryir.IsNull{Expr: queryir.C("t", "price"), Negate: true}, TupleBound("t", c, queryir.OpGt))
}

func TestNullCursorRoundTrip(t *testing.T) {
	c, err := ParseCursor("price:null,id:prod_1")
	require.NoError(t, err)
	assert.Equal(t, Cursor{{Key: "price", Value: nil}, {Key: "id", Value: "prod_1"}}, c)
	assert.Equal(t, "price:null,id:prod_1", c.String())
}

func TestCompileBooleanCursorCoercedToInteger(t *testing.T) {
	q := &ApiQuery{SortBy: []string{"active"}, StartAfter: Cursor{{Key: "active", Value: true}}}
	c, err := Compile(q, "products", productColumns)
	require.NoError(t, err)

	_, args := render(t, c)
	assert.Equal(t, []any{1}, args)
}

func TestCompileCursorKeysDefineSort(t *testing.T) {
	q := &ApiQuery{EndBefore: Cursor{{Key: "price", Value: 10.0}}}
	c, err := Compile(q, "products", productColumns)
	require.NoError(t, err)

	sql, _ := render(t, c)
	assert.Equal(t, `SELECT "products"."id" FROM "products" WHERE "products"."price" < ? OR "products"."price" IS NULL ORDER BY "products"."price" ASC, "products"."id" ASC`, sql)
}

func TestCompileLimitToLastReverses(t *testing.T) {
	c, err := Compile(&ApiQuery{LimitToLast: 2}, "products", productColumns)
	require.NoError(t, err)
	assert.True(t, c.Reverse)
	assert.Equal(t, 2, c.Limit)

	sql, _ := render(t, c)
	assert.Equal(t, `SELECT "products"."id" FROM "products" ORDER BY "products"."updated_at" DESC, "products"."id" DESC LIMIT 2`, sql)

	// An explicit limit wins over limitToLast.
	c, err = Compile(&ApiQuery{Limit: 5, LimitToLast: 2}, "products", productColumns)
	require.NoError(t, err)
	assert.False(t, c.Reverse)
	assert.Equal(t, 5, c.Limit)
}

func TestCompileAndsVQL(t *testing.T) {
	q := &ApiQuery{VQL: "red", StartAt: Cursor{{Key: "updated_at", Value: "x"}}}
	c, err := Compile(q, "products", productColumns)
	require.NoError(t, err)

	and, ok := c.Where.(queryir.And)
	require.True(t, ok)
	assert.Len(t, and.Predicates, 2)
	_, ok = and.Predicates[1].(queryir.Exists)
	assert.True(t, ok)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		q    *ApiQuery
	}{
		{"unknown order", &ApiQuery{Order: "sideways"}},
		{"unknown sort key", &ApiQuery{SortBy: []string{"secret"}}},
		{"cursor mismatch", &ApiQuery{SortBy: []string{"price"}, StartAt: Cursor{{Key: "updated_at", Value: "x"}}}},
		{"cursor too long", &ApiQuery{SortBy: []string{"id"}, StartAt: Cursor{{Key: "id", Value: "a"}, {Key: "price", Value: 1}}}},
		{"negative limit", &ApiQuery{Limit: -1}},
		{"malformed vql", &ApiQuery{VQL: "red &"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.q, "products", productColumns)
			require.Error(t, err)
			assert.True(t, ir.IsQueryCompileError(err))
		})
	}
}

func TestVQLTreeIsCached(t *testing.T) {
	q := &ApiQuery{VQL: "a & b"}
	first, err := q.VQLTree()
	require.NoError(t, err)
	second, err := q.VQLTree()
	require.NoError(t, err)
	assert.Same(t, first, second)

	q.VQL = "c"
	third, err := q.VQLTree()
	require.NoError(t, err)
	assert.Equal(t, "c", third.Value)
}

func TestParseCursor(t *testing.T) {
	c, err := ParseCursor("updated_at:2024-01-01T00:00:00Z, id:prod_1,price:9.5,qty:3,active:true")
	require.NoError(t, err)
	assert.Equal(t, Cursor{
		{Key: "updated_at", Value: "2024-01-01T00:00:00Z"},
		{Key: "id", Value: "prod_1"},
		{Key: "price", Value: 9.5},
		{Key: "qty", Value: int64(3)},
		{Key: "active", Value: true},
	}, c)
	assert.Equal(t, "updated_at:2024-01-01T00:00:00Z,id:prod_1,price:9.5,qty:3,active:true", c.String())

	empty, err := ParseCursor("")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = ParseCursor("nokey")
	assert.True(t, ir.IsQueryCompileError(err))
}

func TestCursorOf(t *testing.T) {
	row := ir.Document{"id": "prod_1", "updated_at": "t1"}
	assert.Equal(t, Cursor{{Key: "updated_at", Value: "t1"}, {Key: "id", Value: "prod_1"}}, CursorOf(row, DefaultSort))
}
