package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kiosk/internal/entity"
	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/query"
	"github.com/roach88/kiosk/internal/schema"
	"github.com/roach88/kiosk/internal/testutil"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewSequentialIDs()),
	}, opts...)
	s, err := Open(context.Background(), Options{
		Dialect: "sqlite",
		DSN:     filepath.Join(t.TempDir(), "kiosk.db"),
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func handles(docs []ir.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Handle()
	}
	return out
}

func ids(docs []ir.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}

func TestOpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kiosk.db")

	s, err := Open(ctx, Options{Dialect: "sqlite", DSN: path})
	require.NoError(t, err)
	_, err = s.Products().Upsert(ctx, ir.Document{"handle": "shirt"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, Options{Dialect: "sqlite3", DSN: path})
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Products().Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpenUnknownDialect(t *testing.T) {
	_, err := Open(context.Background(), Options{Dialect: "oracle"})
	require.Error(t, err)
	assert.True(t, ir.IsDialectUnsupported(err))
}

func TestUpsertGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := ir.Document{
		"handle":      "shirt",
		"title":       "Blue Shirt",
		"price":       20,
		"qty":         3,
		"active":      1,
		"tags":        []string{"apparel", "summer", "apparel"},
		"search":      []string{"Cotton"},
		"attributes":  []any{ir.Document{"key": "fabric", "value": "cotton"}},
		"description": "soft",
	}
	stored, err := s.Products().Upsert(ctx, in, "extra")
	require.NoError(t, err)

	assert.Equal(t, "prod_0001", stored.ID())
	assert.Equal(t, "2024-01-01T00:00:00.000Z", stored["created_at"])
	assert.Equal(t, true, stored["active"])
	assert.Equal(t, []string{"apparel", "summer"}, stored["tags"])
	assert.Equal(t, []string{"cotton", "extra"}, stored["search"])

	for _, key := range []string{"prod_0001", "shirt"} {
		got, err := s.Products().Get(ctx, key, ExpandSearch)
		require.NoError(t, err)

		assert.Equal(t, "prod_0001", got.ID())
		assert.Equal(t, "shirt", got.Handle())
		assert.Equal(t, "Blue Shirt", got["title"])
		assert.Equal(t, 20.0, got["price"])
		assert.Equal(t, int64(3), got["qty"])
		assert.Equal(t, true, got["active"])
		assert.Equal(t, "soft", got["description"])
		assert.Equal(t, []any{ir.Document{"key": "fabric", "value": "cotton"}}, got["attributes"])
		assert.ElementsMatch(t, []string{"apparel", "summer"}, got["tags"])
		assert.ElementsMatch(t, []string{"cotton", "extra"}, got["search"])
		assert.Equal(t, []string{}, got["media"])
		assert.NotContains(t, got, "video", "null columns are dropped")
	}

	// Search terms are opt-in.
	got, err := s.Products().Get(ctx, "shirt")
	require.NoError(t, err)
	assert.NotContains(t, got, "search")
}

func TestUpsertReplacesProjections(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	doc := ir.Document{"id": "prod_a", "handle": "a", "tags": []string{"red", "blue"}}
	for i := 0; i < 3; i++ {
		_, err := s.Products().Upsert(ctx, doc)
		require.NoError(t, err)
	}
	got, err := s.Products().Get(ctx, "prod_a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"red", "blue"}, got["tags"])

	doc["tags"] = []string{"green"}
	_, err = s.Products().Upsert(ctx, doc)
	require.NoError(t, err)
	got, err = s.Products().Get(ctx, "prod_a")
	require.NoError(t, err)
	assert.Equal(t, []string{"green"}, got["tags"])
}

func TestUpsertKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.Products().Upsert(ctx, ir.Document{"handle": "a"})
	require.NoError(t, err)

	first["title"] = "renamed"
	delete(first, "updated_at")
	second, err := s.Products().Upsert(ctx, first)
	require.NoError(t, err)

	assert.Equal(t, first["created_at"], second["created_at"])
	assert.Greater(t, second["updated_at"], first["created_at"])
}

func TestUpsertMissingActiveIsFalse(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Collections().Upsert(ctx, ir.Document{"handle": "summer"})
	require.NoError(t, err)

	got, err := s.Collections().Get(ctx, "summer")
	require.NoError(t, err)
	assert.Equal(t, false, got["active"])
}

func TestUpsertDuplicateHandle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Products().Upsert(ctx, ir.Document{"id": "prod_a", "handle": "shirt", "tags": []string{"x"}})
	require.NoError(t, err)

	_, err = s.Products().Upsert(ctx, ir.Document{"id": "prod_b", "handle": "shirt", "tags": []string{"y"}})
	require.Error(t, err)
	assert.True(t, ir.IsConstraintViolation(err), "got %v", err)

	var se *ir.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "upsert", se.Op)
	assert.Equal(t, ir.KindProduct, se.Resource)

	// The failed write left nothing behind.
	_, err = s.Products().Get(ctx, "prod_b")
	assert.True(t, ir.IsNotFound(err))
	rows, err := s.DB().QueryContext(ctx, `SELECT count(*) FROM entity_to_tags_projections WHERE entity_id = 'prod_b'`)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var n int
	require.NoError(t, rows.Scan(&n))
	assert.Zero(t, n)
}

func TestUpsertValidates(t *testing.T) {
	ctx := context.Background()
	v, err := schema.New()
	require.NoError(t, err)
	s := newTestStore(t, WithValidator(v))

	_, err = s.Products().Upsert(ctx, ir.Document{"handle": "shirt", "price": -1})
	require.Error(t, err)
	assert.True(t, ir.IsValidationFailed(err))

	_, err = s.Products().Upsert(ctx, ir.Document{"handle": "shirt", "price": 5})
	require.NoError(t, err)
}

func TestGetNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Products().Get(ctx, "nope")
	require.Error(t, err)
	assert.True(t, ir.IsNotFound(err))

	err = s.Products().Remove(ctx, "nope")
	require.Error(t, err)
	assert.True(t, ir.IsNotFound(err))
}

func TestUnknownKind(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Resource("widget").Get(ctx, "x")
	require.Error(t, err)
	assert.True(t, ir.IsQueryCompileError(err))
}

func TestListLimitToLast(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, h := range []string{"p1", "p2", "p3", "p4", "p5"} {
		_, err := s.Products().Upsert(ctx, ir.Document{"handle": h})
		require.NoError(t, err)
	}

	sortBy := []string{"updated_at", "id"}
	all, err := s.Products().List(ctx, &query.ApiQuery{SortBy: sortBy, Order: query.Asc, Limit: 1000000})
	require.NoError(t, err)
	require.Len(t, all, 5)

	last, err := s.Products().List(ctx, &query.ApiQuery{SortBy: sortBy, Order: query.Asc, LimitToLast: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"p4", "p5"}, handles(last))
	assert.Equal(t, ids(all[3:]), ids(last))

	// limit wins over limitToLast.
	first, err := s.Products().List(ctx, &query.ApiQuery{SortBy: sortBy, Limit: 2, LimitToLast: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, handles(first))
}

func TestListCursors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, h := range []string{"p1", "p2", "p3", "p4", "p5"} {
		_, err := s.Products().Upsert(ctx, ir.Document{"handle": h})
		require.NoError(t, err)
	}
	keys := []string{"updated_at", "id"}

	tests := []struct {
		name  string
		order query.Order
		want  [][]string
	}{
		{"asc", query.Asc, [][]string{{"p1", "p2"}, {"p3", "p4"}, {"p5"}}},
		{"desc", query.Desc, [][]string{{"p5", "p4"}, {"p3", "p2"}, {"p1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &query.ApiQuery{SortBy: keys, Order: tt.order, Limit: 2}
			for _, want := range tt.want {
				page, err := s.Products().List(ctx, q)
				require.NoError(t, err)
				require.Equal(t, want, handles(page))
				q = &query.ApiQuery{SortBy: keys, Order: tt.order, Limit: 2, StartAfter: query.CursorOf(page[len(page)-1], keys)}
			}
		})
	}

	t.Run("start at is inclusive", func(t *testing.T) {
		all, err := s.Products().List(ctx, &query.ApiQuery{SortBy: keys, Order: query.Asc})
		require.NoError(t, err)

		page, err := s.Products().List(ctx, &query.ApiQuery{
			SortBy:  keys,
			Order:   query.Asc,
			StartAt: query.CursorOf(all[0], keys),
		})
		require.NoError(t, err)
		assert.Equal(t, ids(all), ids(page))
	})

	t.Run("end before", func(t *testing.T) {
		all, err := s.Products().List(ctx, &query.ApiQuery{SortBy: keys})
		require.NoError(t, err)

		page, err := s.Products().List(ctx, &query.ApiQuery{SortBy: keys, EndBefore: query.CursorOf(all[2], keys)})
		require.NoError(t, err)
		assert.Equal(t, []string{"p1", "p2"}, handles(page))
	})
}

func TestListCursorsOverNullSortKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, doc := range []ir.Document{
		{"handle": "a", "price": 9.0},
		{"handle": "b"},
		{"handle": "c", "price": 5.0},
		{"handle": "d"},
	} {
		_, err := s.Products().Upsert(ctx, doc)
		require.NoError(t, err)
	}
	keys := []string{"price", "id"}

	tests := []struct {
		name  string
		order query.Order
		want  []string
	}{
		{"asc", query.Asc, []string{"b", "d", "c", "a"}},
		{"desc", query.Desc, []string{"a", "c", "d", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			all, err := s.Products().List(ctx, &query.ApiQuery{SortBy: keys, Order: tt.order})
			require.NoError(t, err)
			require.Equal(t, tt.want, handles(all))

			var paged []string
			q := &query.ApiQuery{SortBy: keys, Order: tt.order, Limit: 1}
			for range tt.want {
				page, err := s.Products().List(ctx, q)
				require.NoError(t, err)
				require.Len(t, page, 1)
				paged = append(paged, page[0].Handle())
				q = &query.ApiQuery{SortBy: keys, Order: tt.order, Limit: 1, StartAfter: query.CursorOf(page[0], keys)}
			}
			assert.Equal(t, tt.want, paged)

			rest, err := s.Products().List(ctx, q)
			require.NoError(t, err)
			assert.Empty(t, rest)

			for i := range all {
				at, err := s.Products().List(ctx, &query.ApiQuery{SortBy: keys, Order: tt.order, StartAt: query.CursorOf(all[i], keys)})
				require.NoError(t, err)
				assert.Equal(t, tt.want[i:], handles(at), "start at %s", tt.want[i])

				before, err := s.Products().List(ctx, &query.ApiQuery{SortBy: keys, Order: tt.order, EndBefore: query.CursorOf(all[i], keys)})
				require.NoError(t, err)
				assert.Equal(t, tt.want[:i], handles(before), "end before %s", tt.want[i])

				n, err := s.Products().Count(ctx, &query.ApiQuery{SortBy: keys, Order: tt.order, EndAt: query.CursorOf(all[i], keys)})
				require.NoError(t, err)
				assert.Equal(t, i+1, n, "end at %s", tt.want[i])
			}
		})
	}
}

func TestListVQL(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for h, tags := range map[string][]string{
		"red":      {"red"},
		"blue":     {"blue"},
		"red-blue": {"red", "blue"},
	} {
		doc := ir.Document{"handle": h, "tags": tags}
		_, err := s.Products().Upsert(ctx, doc, IndexTerms(doc)...)
		require.NoError(t, err)
	}

	tests := []struct {
		vql  string
		want []string
	}{
		{"tag:red & tag:blue", []string{"red-blue"}},
		{"tag:red tag:blue", []string{"red-blue"}},
		{"tag:red | tag:blue", []string{"red", "blue", "red-blue"}},
		{"!tag:red", []string{"blue"}},
		{"tag:red & !(tag:blue)", []string{"red"}},
		{"TAG:RED & tag:blue", []string{"red-blue"}},
		{"", []string{"red", "blue", "red-blue"}},
		{"tag:green", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.vql, func(t *testing.T) {
			q := &query.ApiQuery{VQL: tt.vql}
			got, err := s.Products().List(ctx, q)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, handles(got))

			n, err := s.Products().Count(ctx, q)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
		})
	}

	_, err := s.Products().List(ctx, &query.ApiQuery{VQL: "(tag:red"})
	require.Error(t, err)
	assert.True(t, ir.IsQueryCompileError(err))
}

func TestListUnknownSortKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Products().List(ctx, &query.ApiQuery{SortBy: []string{"nope"}})
	require.Error(t, err)
	assert.True(t, ir.IsQueryCompileError(err))
}

func TestDiscountScenario(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Products().Upsert(ctx, ir.Document{"handle": "shirt", "tags": []string{"apparel"}, "price": 20, "active": true})
	require.NoError(t, err)
	_, err = s.Products().Upsert(ctx, ir.Document{"handle": "mug", "tags": []string{"kitchen"}, "price": 8, "active": true})
	require.NoError(t, err)

	dis := ir.Document{
		"handle":      "ten-off",
		"active":      true,
		"priority":    1,
		"application": ir.Document{"id": 0, "name": "Automatic", "name2": "automatic"},
		"info": ir.Document{
			"details": ir.Document{"type": "regular", "percent": 10},
			"filters": []any{ir.Document{"op": "p-in-tags", "value": []any{"apparel"}}},
		},
	}
	dis, err = s.Discounts().Upsert(ctx, dis)
	require.NoError(t, err)
	id := dis.ID()

	shirt, err := s.Products().Get(ctx, "shirt", ExpandAll)
	require.NoError(t, err)
	assert.Contains(t, shirt["tags"], discountTag(id))
	assert.Contains(t, shirt["search"], "discount:"+id)
	require.Len(t, shirt["discounts"], 1)
	assert.Equal(t, id, shirt["discounts"].([]ir.Document)[0].ID())

	mug, err := s.Products().Get(ctx, "mug", ExpandAll)
	require.NoError(t, err)
	assert.NotContains(t, mug["tags"], discountTag(id))
	assert.Empty(t, mug["discounts"])

	// Re-applying changes nothing.
	_, err = s.Discounts().Upsert(ctx, dis)
	require.NoError(t, err)
	again, err := s.Products().Get(ctx, "shirt", ExpandAll)
	require.NoError(t, err)
	assert.ElementsMatch(t, shirt["tags"], again["tags"])
	assert.ElementsMatch(t, shirt["search"], again["search"])
	assert.Len(t, again["discounts"], 1)

	// A product written after the discount picks it up too.
	_, err = s.Products().Upsert(ctx, ir.Document{"handle": "hat", "tags": []string{"apparel"}})
	require.NoError(t, err)
	hat, err := s.Products().Get(ctx, "hat", ExpandSearch)
	require.NoError(t, err)
	assert.Contains(t, hat["tags"], discountTag(id))
	assert.Contains(t, hat["search"], "discount:"+id)

	// VQL sees the annotation.
	found, err := s.Products().List(ctx, &query.ApiQuery{VQL: "discount:" + id})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"shirt", "hat"}, handles(found))

	dis["active"] = false
	_, err = s.Discounts().Upsert(ctx, dis)
	require.NoError(t, err)

	for _, h := range []string{"shirt", "hat"} {
		got, err := s.Products().Get(ctx, h, ExpandAll)
		require.NoError(t, err)
		assert.NotContains(t, got["tags"], discountTag(id))
		assert.NotContains(t, got["search"], "discount:"+id)
		assert.Empty(t, got["discounts"])
		assert.Contains(t, got["tags"], "apparel")
	}
}

func TestRemoveDiscountRetractsAnnotations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Products().Upsert(ctx, ir.Document{"handle": "shirt", "price": 20})
	require.NoError(t, err)
	_, err = s.Discounts().Upsert(ctx, ir.Document{
		"id":          "dis_all",
		"handle":      "everything",
		"active":      true,
		"application": ir.Document{"id": 0},
		"info":        ir.Document{"filters": []any{ir.Document{"op": "p-all"}}},
	})
	require.NoError(t, err)

	shirt, err := s.Products().Get(ctx, "shirt")
	require.NoError(t, err)
	assert.Contains(t, shirt["tags"], "discount_everything")

	require.NoError(t, s.Discounts().Remove(ctx, "everything"))

	shirt, err = s.Products().Get(ctx, "shirt", "discounts")
	require.NoError(t, err)
	assert.Equal(t, []string{}, shirt["tags"])
	assert.Empty(t, shirt["discounts"])
}

func TestCollectionsExpandAndRemove(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Collections().Upsert(ctx, ir.Document{"id": "col_summer", "handle": "summer", "title": "Summer"})
	require.NoError(t, err)
	_, err = s.Products().Upsert(ctx, ir.Document{
		"handle":      "shirt",
		"collections": []any{"col_summer", ir.Document{"handle": "summer"}},
	})
	require.NoError(t, err)

	got, err := s.Products().Get(ctx, "shirt", "collections")
	require.NoError(t, err)
	cols, ok := got["collections"].([]ir.Document)
	require.True(t, ok)
	require.Len(t, cols, 1, "references to the same collection collapse")
	assert.Equal(t, "Summer", cols[0]["title"])
	assert.Equal(t, false, cols[0]["active"])

	// Not expanded unless asked.
	got, err = s.Products().Get(ctx, "shirt")
	require.NoError(t, err)
	assert.NotContains(t, got, "collections")

	require.NoError(t, s.Collections().Remove(ctx, "summer"))
	got, err = s.Products().Get(ctx, "shirt", "collections")
	require.NoError(t, err)
	assert.Empty(t, got["collections"])
}

func TestVariantsFollowParent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Products().Upsert(ctx, ir.Document{"id": "prod_shirt", "handle": "shirt"})
	require.NoError(t, err)
	_, err = s.Products().Upsert(ctx, ir.Document{"id": "prod_jacket", "handle": "jacket"})
	require.NoError(t, err)
	for _, h := range []string{"shirt-s", "shirt-m"} {
		_, err = s.Products().Upsert(ctx, ir.Document{"handle": h, "parent_handle": "shirt"})
		require.NoError(t, err)
	}

	parent, err := s.Products().Get(ctx, "shirt", "variants")
	require.NoError(t, err)
	assert.Equal(t, []string{"shirt-s", "shirt-m"}, handles(parent["variants"].([]ir.Document)))

	variant, err := s.Products().Get(ctx, "shirt-s", ExpandParent)
	require.NoError(t, err)
	require.IsType(t, ir.Document{}, variant["parent"])
	assert.Equal(t, "prod_shirt", variant["parent"].(ir.Document).ID())
	assert.Equal(t, "shirt", variant["parent"].(ir.Document).Handle())
	assert.NotContains(t, parent, "parent")

	// Moving a variant to another parent leaves its siblings alone.
	_, err = s.Products().Upsert(ctx, ir.Document{"id": "prod_0002", "handle": "shirt-m", "parent_id": "prod_jacket"})
	require.NoError(t, err)

	parent, err = s.Products().Get(ctx, "shirt", "variants")
	require.NoError(t, err)
	assert.Equal(t, []string{"shirt-s"}, handles(parent["variants"].([]ir.Document)))
	jacket, err := s.Products().Get(ctx, "jacket", "variants")
	require.NoError(t, err)
	assert.Equal(t, []string{"shirt-m"}, handles(jacket["variants"].([]ir.Document)))
	moved, err := s.Products().Get(ctx, "shirt-m", ExpandAll)
	require.NoError(t, err)
	assert.Equal(t, "jacket", moved["parent"].(ir.Document).Handle())

	require.NoError(t, s.Products().Remove(ctx, "shirt-s"))
	parent, err = s.Products().Get(ctx, "shirt", "variants")
	require.NoError(t, err)
	assert.Empty(t, parent["variants"])
}

func TestStorefrontExpansions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Same handle in two kinds: the context keeps them apart.
	_, err := s.Products().Upsert(ctx, ir.Document{"id": "prod_x", "handle": "summer"})
	require.NoError(t, err)
	_, err = s.Collections().Upsert(ctx, ir.Document{"id": "col_x", "handle": "summer"})
	require.NoError(t, err)
	_, err = s.Posts().Upsert(ctx, ir.Document{"id": "post_x", "handle": "hello", "text": "hi"})
	require.NoError(t, err)

	_, err = s.Storefronts().Upsert(ctx, ir.Document{
		"handle":      "main",
		"products":    []any{"prod_x"},
		"collections": []any{ir.Document{"handle": "summer"}},
		"posts":       []any{"post_x"},
	})
	require.NoError(t, err)

	sf, err := s.Storefronts().Get(ctx, "main", ExpandAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"prod_x"}, ids(sf["products"].([]ir.Document)))
	assert.Equal(t, []string{"col_x"}, ids(sf["collections"].([]ir.Document)))
	assert.Equal(t, []string{"post_x"}, ids(sf["posts"].([]ir.Document)))
	assert.Empty(t, sf["discounts"])
	assert.Empty(t, sf["shipping_methods"])

	sf, err = s.Storefronts().Get(ctx, "main", "posts")
	require.NoError(t, err)
	assert.Contains(t, sf, "posts")
	assert.NotContains(t, sf, "products")

	require.NoError(t, s.Products().Remove(ctx, "prod_x"))
	sf, err = s.Storefronts().Get(ctx, "main", ExpandAll)
	require.NoError(t, err)
	assert.Empty(t, sf["products"])
	assert.Len(t, sf["collections"], 1)
}

func TestMediaCreatesImages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	url := "https://cdn.example.com/uploads/Red%20Shirt.png"
	_, err := s.Products().Upsert(ctx, ir.Document{"handle": "a", "media": []string{url, url}})
	require.NoError(t, err)
	_, err = s.Posts().Upsert(ctx, ir.Document{"handle": "b", "media": []string{url}})
	require.NoError(t, err)

	images, err := s.Images().List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, images, 1)

	img := images[0]
	assert.Equal(t, ir.ImageID(url), img.ID())
	assert.Equal(t, "Red Shirt.png", img["name"])
	assert.Equal(t, url, img["url"])
	assert.Regexp(t, `^red-shirt-[0-9a-f]{8}$`, img.Handle())

	got, err := s.Products().Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{url}, got["media"])

	found, err := s.Images().List(ctx, &query.ApiQuery{VQL: "shirt.png & red"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestRemoveCascadesToTwin(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Customers().Upsert(ctx, ir.Document{"id": "cus_42", "handle": "ada", "email": "ada@example.com"})
	require.NoError(t, err)
	_, err = s.AuthUsers().Upsert(ctx, ir.Document{"id": "au_42", "handle": "ada", "email": "ada@example.com"})
	require.NoError(t, err)
	_, err = s.Customers().Upsert(ctx, ir.Document{"id": "cus_7", "handle": "bob"})
	require.NoError(t, err)

	require.NoError(t, s.Customers().Remove(ctx, "ada"))

	_, err = s.AuthUsers().Get(ctx, "au_42")
	assert.True(t, ir.IsNotFound(err))
	_, err = s.Customers().Get(ctx, "cus_7")
	assert.NoError(t, err)

	// The other direction, with a twin found by handle only.
	_, err = s.AuthUsers().Upsert(ctx, ir.Document{"id": "au_x", "handle": "bob"})
	require.NoError(t, err)
	require.NoError(t, s.AuthUsers().Remove(ctx, "au_x"))
	_, err = s.Customers().Get(ctx, "bob")
	assert.True(t, ir.IsNotFound(err))
}

func TestSearchAndResolve(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := ir.Document{"id": "prod_1", "handle": "summer-shirt", "title": "Summer Shirt"}
	_, err := s.Products().Upsert(ctx, p, IndexTerms(p)...)
	require.NoError(t, err)
	c := ir.Document{"id": "col_1", "handle": "summer", "title": "Summer"}
	_, err = s.Collections().Upsert(ctx, c, IndexTerms(c)...)
	require.NoError(t, err)
	tag := ir.Document{"id": "tag_1", "handle": "colors", "values": []any{"red"}}
	_, err = s.Tags().Upsert(ctx, tag, IndexTerms(tag)...)
	require.NoError(t, err)

	out, err := s.Search(ctx, &query.ApiQuery{VQL: "summer"})
	require.NoError(t, err)
	assert.Len(t, out, len(ir.AllKinds))
	assert.Equal(t, []ir.Document{{"id": "prod_1", "handle": "summer-shirt", "title": "Summer Shirt"}}, out[ir.KindProduct])
	assert.Equal(t, []ir.Document{{"id": "col_1", "handle": "summer", "title": "Summer"}}, out[ir.KindCollection])
	assert.Empty(t, out[ir.KindOrder])

	out, err = s.Search(ctx, &query.ApiQuery{VQL: "colors"}, ir.KindTag)
	require.NoError(t, err)
	assert.Equal(t, map[ir.Kind][]ir.Document{ir.KindTag: {{"id": "tag_1", "handle": "colors"}}}, out)

	kind, doc, err := s.Resolve(ctx, "col_1")
	require.NoError(t, err)
	assert.Equal(t, ir.KindCollection, kind)
	assert.Equal(t, "summer", doc.Handle())

	_, _, err = s.Resolve(ctx, "zzz_1")
	assert.True(t, ir.IsNotFound(err))
}

func TestUpsertIndexed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stored, err := s.Products().UpsertIndexed(ctx, ir.Document{"handle": "linen-shirt", "title": "Linen Shirt", "tags": []any{"sale"}}, "Extra")
	require.NoError(t, err)
	assert.Equal(t, "prod_0001", stored.ID())

	for _, vql := range []string{"prod_0001", "linen-shirt", "linen", "linen shirt", "tag:sale", "extra"} {
		t.Run(vql, func(t *testing.T) {
			got, err := s.Products().List(ctx, &query.ApiQuery{VQL: vql})
			require.NoError(t, err)
			assert.Equal(t, []string{"prod_0001"}, ids(got))
		})
	}
}

func TestValuesScopedToKind(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Products().Upsert(ctx, ir.Document{"handle": "summer", "tags": []any{"p-tag"}})
	require.NoError(t, err)
	_, err = s.Collections().Upsert(ctx, ir.Document{"handle": "summer", "tags": []any{"c-tag"}})
	require.NoError(t, err)

	values, err := s.Products().Values(ctx, entity.TagsProjections, "summer", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-tag"}, values)

	values, err = s.Collections().Values(ctx, entity.TagsProjections, "summer", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c-tag"}, values)

	_, err = s.Products().Values(ctx, entity.TagsProjections, "winter", 0)
	assert.True(t, ir.IsNotFound(err))

	_, err = s.Products().Values(ctx, entity.StorefrontsToOther, "summer", 0)
	assert.True(t, ir.IsQueryCompileError(err))
}

func TestVQLTokensMatchLiterally(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Products().UpsertIndexed(ctx, ir.Document{"handle": "red"})
	require.NoError(t, err)
	_, err = s.Products().UpsertIndexed(ctx, ir.Document{"handle": "r_d"}, "50%")
	require.NoError(t, err)

	tests := []struct {
		vql  string
		want []string
	}{
		{"red", []string{"red"}},
		{"r_d", []string{"r_d"}},
		{"r%", []string{}},
		{"50%", []string{"r_d"}},
		{"%", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.vql, func(t *testing.T) {
			got, err := s.Products().List(ctx, &query.ApiQuery{VQL: tt.vql})
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, handles(got))
		})
	}
}

func TestInTxRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.Resource(ir.KindProduct).Upsert(ctx, ir.Document{"id": "prod_a", "handle": "a"}); err != nil {
			return err
		}
		_, err := tx.Resource(ir.KindProduct).Upsert(ctx, ir.Document{"id": "prod_b", "handle": "a"})
		return err
	})
	require.Error(t, err)
	assert.True(t, ir.IsConstraintViolation(err))

	n, err := s.Products().Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInTxCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestStore(t)
	cancel()

	_, err := s.Products().Upsert(ctx, ir.Document{"handle": "a"})
	require.Error(t, err)
	assert.True(t, ir.IsTransactionAborted(err))
}

// discountTag is the product tag that marks a discount by id.
func discountTag(id string) string {
	return "discount_" + id
}
