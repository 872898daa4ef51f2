package store

import (
	"context"
	"fmt"

	"github.com/roach88/kiosk/internal/entity"
	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/query"
	"github.com/roach88/kiosk/internal/queryir"
)

// Expand keys understood by every resource, besides its relation keys.
const (
	ExpandAll    = "*"
	ExpandSearch = "search"
	// ExpandParent adds the parent product of a variant.
	ExpandParent = "parent"
)

const (
	relAlias    = "rel"
	targetAlias = "target"
	parentAlias = "parent"
)

// field decodes one selected column into a document key.
type field struct {
	key    string
	decode func(any) (any, error)
}

// projection selects the primary row with its tags and media, plus the
// search terms and relations named in expand.
func (r *Resource) projection(expand []string) (queryir.Select, []field) {
	table := r.Table()
	want := make(map[string]bool, len(expand))
	for _, e := range expand {
		want[e] = true
	}
	all := want[ExpandAll]

	sel, fields := r.rowSelect()

	projections := []struct {
		key   string
		table entity.Table
		on    bool
	}{
		{"tags", entity.TagsProjections, true},
		{"media", entity.Media, true},
		{ExpandSearch, entity.SearchTerms, all || want[ExpandSearch]},
	}
	for _, p := range projections {
		if !p.on {
			continue
		}
		// Projection tables never take a context, so this cannot fail.
		sub, _ := entity.ValuesOf(p.table, table, 0)
		sel.Columns = append(sel.Columns, queryir.Column{Expr: queryir.StringArray{Sub: sub}, Alias: p.key})
		fields = append(fields, field{key: p.key, decode: Column{Name: p.key, Type: TypeStrings}.Decode})
	}

	for _, rel := range r.Relations {
		if !all && !want[rel.Key] {
			continue
		}
		target := resources[rel.Target]
		sel.Columns = append(sel.Columns, queryir.Column{
			Expr:  queryir.JSONArray{Sub: r.relationSelect(rel)},
			Alias: rel.Key,
		})
		fields = append(fields, field{key: rel.Key, decode: target.decodeList})
	}

	if r.Kind == ir.KindProduct && (all || want[ExpandParent]) {
		sel.Columns = append(sel.Columns, queryir.Column{
			Expr:  queryir.JSONObject{Sub: r.parentSelect()},
			Alias: ExpandParent,
		})
		fields = append(fields, field{key: ExpandParent, decode: r.decodeOne})
	}
	return sel, fields
}

// rowSelect selects the primary-table columns only.
func (r *Resource) rowSelect() (queryir.Select, []field) {
	sel := queryir.Select{From: r.Table()}
	fields := make([]field, 0, len(r.Columns))
	for _, c := range r.Columns {
		sel.Columns = append(sel.Columns, queryir.Column{Expr: queryir.C(r.Table(), c.Name)})
		fields = append(fields, field{key: c.Name, decode: c.Decode})
	}
	return sel, fields
}

// relationSelect selects the target rows of rel owned by the outer row,
// in insertion order.
func (r *Resource) relationSelect(rel Relation) queryir.Select {
	target := resources[rel.Target]
	cols := make([]queryir.Column, len(target.Columns))
	for i, c := range target.Columns {
		cols[i] = queryir.Column{Expr: queryir.C(targetAlias, c.Name)}
	}
	var owner queryir.Predicate = queryir.Or{Predicates: []queryir.Predicate{
		queryir.Eq(queryir.C(relAlias, entity.ColEntityID), queryir.C(r.Table(), "id")),
		queryir.Eq(queryir.C(relAlias, entity.ColEntityHandle), queryir.C(r.Table(), "handle")),
	}}
	if rel.Context != 0 {
		owner = queryir.AllOf(owner, queryir.Eq(queryir.C(relAlias, entity.ColContext), queryir.V(rel.Context.String())))
	}
	return queryir.Select{
		Columns: cols,
		From:    string(rel.Table),
		As:      relAlias,
		Joins: []queryir.Join{{
			Table: target.Table(),
			As:    targetAlias,
			On:    queryir.Eq(queryir.C(targetAlias, "id"), queryir.C(relAlias, entity.ColValue)),
		}},
		Where:   owner,
		OrderBy: []queryir.Order{{Expr: queryir.C(relAlias, entity.ColID)}},
	}
}

// parentSelect selects the product named by the outer row's parent_id or
// parent_handle.
func (r *Resource) parentSelect() queryir.Select {
	cols := make([]queryir.Column, len(r.Columns))
	for i, c := range r.Columns {
		cols[i] = queryir.Column{Expr: queryir.C(parentAlias, c.Name)}
	}
	return queryir.Select{
		Columns: cols,
		From:    r.Table(),
		As:      parentAlias,
		Where: queryir.Or{Predicates: []queryir.Predicate{
			queryir.Eq(queryir.C(parentAlias, "id"), queryir.C(r.Table(), "parent_id")),
			queryir.Eq(queryir.C(parentAlias, "handle"), queryir.C(r.Table(), "parent_handle")),
		}},
		OrderBy: []queryir.Order{{Expr: queryir.C(parentAlias, "id")}},
		Limit:   1,
	}
}

// decodeOne decodes a JSON object holding one of this resource's rows.
// NULL (no row) decodes to nil.
func (r *Resource) decodeOne(v any) (any, error) {
	raw, err := Column{Name: "object", Type: TypeJSON}.Decode(v)
	if err != nil {
		return nil, err
	}
	obj := ir.AsDocument(raw)
	if obj == nil {
		return nil, nil
	}
	return r.decodeRow(obj)
}

// decodeRow decodes the columns of one row given as a JSON object.
func (r *Resource) decodeRow(obj ir.Document) (ir.Document, error) {
	doc := make(ir.Document, len(r.Columns))
	for _, c := range r.Columns {
		val, err := c.Decode(obj[c.Name])
		if err != nil {
			return nil, err
		}
		if val != nil {
			doc[c.Name] = val
		}
	}
	return doc, nil
}

// decodeList decodes a JSON array of this resource's rows.
func (r *Resource) decodeList(v any) (any, error) {
	raw, err := Column{Name: "list", Type: TypeJSON}.Decode(v)
	if err != nil {
		return nil, err
	}
	arr, _ := raw.([]any)
	out := make([]ir.Document, 0, len(arr))
	for _, elem := range arr {
		obj := ir.AsDocument(elem)
		if obj == nil {
			continue
		}
		doc, err := r.decodeRow(obj)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (r *Resource) keyPredicate(idOrHandle string) queryir.Predicate {
	return queryir.Or{Predicates: []queryir.Predicate{
		queryir.Eq(queryir.C(r.Table(), "id"), queryir.V(idOrHandle)),
		queryir.Eq(queryir.C(r.Table(), "handle"), queryir.V(idOrHandle)),
	}}
}

// queryDocs runs sel and decodes each row through fields. Keys whose value
// decodes to nil are left out of the document.
func (t *Tx) queryDocs(ctx context.Context, sel queryir.Select, fields []field) ([]ir.Document, error) {
	rows, err := t.QueryRows(ctx, sel)
	if err != nil {
		return nil, err
	}
	docs := make([]ir.Document, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(fields) {
			return nil, fmt.Errorf("expected %d columns, got %d", len(fields), len(row))
		}
		doc := make(ir.Document, len(fields))
		for i, f := range fields {
			v, err := f.decode(row[i])
			if err != nil {
				return nil, err
			}
			if v != nil {
				doc[f.key] = v
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// lookupKeys finds the id and handle of the row matching idOrHandle.
func (t *Tx) lookupKeys(ctx context.Context, r *Resource, idOrHandle string) (id, handle string, found bool, err error) {
	if idOrHandle == "" {
		return "", "", false, nil
	}
	rows, err := t.QueryRows(ctx, queryir.Select{
		Columns: []queryir.Column{
			{Expr: queryir.C(r.Table(), "id")},
			{Expr: queryir.C(r.Table(), "handle")},
		},
		From:  r.Table(),
		Where: r.keyPredicate(idOrHandle),
		Limit: 1,
	})
	if err != nil || len(rows) == 0 {
		return "", "", false, err
	}
	idVal, _ := Column{Name: "id", Type: TypeText}.Decode(rows[0][0])
	handleVal, _ := Column{Name: "handle", Type: TypeText}.Decode(rows[0][1])
	id, _ = idVal.(string)
	handle, _ = handleVal.(string)
	return id, handle, true, nil
}

// Get returns the document matching idOrHandle. Tags and media are always
// included; expand adds "search", relation keys, or "*" for everything.
func (d *TxDriver) Get(ctx context.Context, idOrHandle string, expand ...string) (ir.Document, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	sel, fields := d.res.projection(expand)
	sel.Where = d.res.keyPredicate(idOrHandle)
	sel.Limit = 1

	docs, err := d.tx.queryDocs(ctx, sel, fields)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", d.kind, idOrHandle, err)
	}
	if len(docs) == 0 {
		return nil, ir.NewNotFoundError("get", d.kind, idOrHandle)
	}
	return docs[0], nil
}

// Values returns the values of junction table t owned by the document
// matching idOrHandle, in insertion order. rc is required for the
// multiplexed table and rejected for every other one.
func (d *TxDriver) Values(ctx context.Context, t entity.Table, idOrHandle string, rc ir.RelationContext) ([]string, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	_, _, found, err := d.tx.lookupKeys(ctx, d.res, idOrHandle)
	if err != nil {
		return nil, fmt.Errorf("values %s %s: %w", d.kind, idOrHandle, err)
	}
	if !found {
		return nil, ir.NewNotFoundError("values", d.kind, idOrHandle)
	}
	return entity.ReadValues(ctx, d.tx, t, d.res.Table(), idOrHandle, rc)
}

// List returns the documents selected by q, in q's logical order.
func (d *TxDriver) List(ctx context.Context, q *query.ApiQuery) ([]ir.Document, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if q == nil {
		q = &query.ApiQuery{}
	}
	compiled, err := query.Compile(q, d.res.Table(), d.res.ColumnNames())
	if err != nil {
		return nil, err
	}

	sel, fields := d.res.projection(q.Expand)
	sel.Where = compiled.Where
	sel.OrderBy = compiled.OrderBy
	sel.Limit = compiled.Limit

	docs, err := d.tx.queryDocs(ctx, sel, fields)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.kind, err)
	}
	if compiled.Reverse {
		for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
			docs[i], docs[j] = docs[j], docs[i]
		}
	}
	return docs, nil
}

// Count returns how many documents match q. Limits and order are ignored.
func (d *TxDriver) Count(ctx context.Context, q *query.ApiQuery) (int, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	if q == nil {
		q = &query.ApiQuery{}
	}
	compiled, err := query.Compile(q, d.res.Table(), d.res.ColumnNames())
	if err != nil {
		return 0, err
	}
	n, err := d.tx.queryInt(ctx, queryir.Select{
		Columns: []queryir.Column{{Expr: queryir.CountAll{}}},
		From:    d.res.Table(),
		Where:   compiled.Where,
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", d.kind, err)
	}
	return int(n), nil
}
