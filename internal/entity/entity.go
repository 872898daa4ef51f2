// Package entity reads and replaces junction rows attached to primary rows.
//
// Every junction table has the same shape:
//
//	id (surrogate, insertion ordered), entity_id, entity_handle, value, reporter, context
//
// Writes use replace-all semantics: the rows owned by one entity (and
// context, for the multiplexed table) are deleted and the new set inserted.
// Nothing here opens a transaction; every function runs on the caller's
// Execer, so a failure anywhere rolls back the caller's whole unit of work.
package entity

import (
	"context"
	"fmt"

	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/queryir"
)

// Table names a junction table.
type Table string

const (
	TagsProjections           Table = "entity_to_tags_projections"
	SearchTerms               Table = "entity_to_search_terms"
	Media                     Table = "entity_to_media"
	ProductsToCollections     Table = "products_to_collections"
	ProductsToDiscounts       Table = "products_to_discounts"
	ProductsToVariants        Table = "products_to_variants"
	ProductsToRelatedProducts Table = "products_to_related_products"
	StorefrontsToOther        Table = "storefronts_to_other"
)

// Tables lists every junction table.
var Tables = []Table{
	TagsProjections,
	SearchTerms,
	Media,
	ProductsToCollections,
	ProductsToDiscounts,
	ProductsToVariants,
	ProductsToRelatedProducts,
	StorefrontsToOther,
}

// Valid reports whether t is a known junction table.
func (t Table) Valid() bool {
	for _, known := range Tables {
		if t == known {
			return true
		}
	}
	return false
}

// Projection reports whether t holds scalar values (tags, search terms, media).
// Projection tables are shared by every resource kind.
func (t Table) Projection() bool {
	return t == TagsProjections || t == SearchTerms || t == Media
}

// Multiplexed reports whether rows of t must carry a RelationContext.
func (t Table) Multiplexed() bool {
	return t == StorefrontsToOther
}

// Column names shared by all junction tables.
const (
	ColID           = "id"
	ColEntityID     = "entity_id"
	ColEntityHandle = "entity_handle"
	ColValue        = "value"
	ColReporter     = "reporter"
	ColContext      = "context"
)

// Execer runs compiled statements inside an already open transaction.
type Execer interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, stmt queryir.Statement) (int64, error)

	// QueryStrings runs a single-column select and returns its values in order.
	QueryStrings(ctx context.Context, sel queryir.Select) ([]string, error)
}

// Relation is one row of a relation table: the other entity's id and handle.
type Relation struct {
	Value    string
	Reporter string
}

// checkScope enforces the context rule: the multiplexed table needs a valid
// context, every other table must not get one.
func checkScope(t Table, rc ir.RelationContext) error {
	if !t.Valid() {
		return ir.NewQueryCompileError("unknown junction table %q", string(t))
	}
	switch {
	case t.Multiplexed() && !rc.Valid():
		return ir.NewQueryCompileError("%s requires a relation context", t)
	case !t.Multiplexed() && rc != 0:
		return ir.NewQueryCompileError("%s does not take a relation context (got %s)", t, rc)
	}
	return nil
}

func withContext(pred queryir.Predicate, col func(string) queryir.Col, rc ir.RelationContext) queryir.Predicate {
	if rc == 0 {
		return pred
	}
	return queryir.AllOf(pred, queryir.Eq(col(ColContext), queryir.V(rc.String())))
}

// ownerScope selects the rows owned by (id, handle).
//
// Handles are unique per primary table, not across tables, so the shared
// projection tables are scoped by entity_id alone. Relation tables have a
// single owner kind and also match entity_handle.
func ownerScope(t Table, col func(string) queryir.Col, id, handle string, rc ir.RelationContext) queryir.Predicate {
	var pred queryir.Predicate = queryir.Eq(col(ColEntityID), queryir.V(id))
	if handle != "" && !t.Projection() {
		pred = queryir.Or{Predicates: []queryir.Predicate{
			pred,
			queryir.Eq(col(ColEntityHandle), queryir.V(handle)),
		}}
	}
	return withContext(pred, col, rc)
}

func qualified(table string) func(string) queryir.Col {
	return func(name string) queryir.Col {
		return queryir.C(table, name)
	}
}

func unqualified(name string) queryir.Col {
	return queryir.Col{Name: name}
}

// ValuesOf returns a subquery selecting the values owned by the row of outer
// currently being projected, ordered by insertion.
func ValuesOf(t Table, outer string, rc ir.RelationContext) (queryir.Select, error) {
	if err := checkScope(t, rc); err != nil {
		return queryir.Select{}, err
	}
	col := qualified(string(t))
	var pred queryir.Predicate = queryir.Eq(col(ColEntityID), queryir.C(outer, "id"))
	if !t.Projection() {
		pred = queryir.Or{Predicates: []queryir.Predicate{
			pred,
			queryir.Eq(col(ColEntityHandle), queryir.C(outer, "handle")),
		}}
	}
	return queryir.Select{
		Columns: []queryir.Column{{Expr: col(ColValue)}},
		From:    string(t),
		Where:   withContext(pred, col, rc),
		OrderBy: []queryir.Order{{Expr: col(ColID)}},
	}, nil
}

// ValuesByIDOrHandle returns a subquery selecting the values of t owned by
// the row of the primary table owner whose id or handle equals idOrHandle,
// ordered by insertion.
//
// Projection tables are shared by every kind and handles are only unique
// per primary table, so for them the handle is resolved through owner and
// rows are matched by entity_id. Relation tables have a single owner kind
// and match entity_id or entity_handle directly.
func ValuesByIDOrHandle(t Table, owner, idOrHandle string, rc ir.RelationContext) (queryir.Select, error) {
	if err := checkScope(t, rc); err != nil {
		return queryir.Select{}, err
	}
	col := qualified(string(t))
	var pred queryir.Predicate
	if t.Projection() {
		if owner == "" {
			return queryir.Select{}, ir.NewQueryCompileError("%s: owner table is required", t)
		}
		oc := qualified(owner)
		pred = queryir.InSelect{
			Left: col(ColEntityID),
			Sub: queryir.Select{
				Columns: []queryir.Column{{Expr: oc("id")}},
				From:    owner,
				Where: queryir.Or{Predicates: []queryir.Predicate{
					queryir.Eq(oc("id"), queryir.V(idOrHandle)),
					queryir.Eq(oc("handle"), queryir.V(idOrHandle)),
				}},
			},
		}
	} else {
		pred = queryir.Or{Predicates: []queryir.Predicate{
			queryir.Eq(col(ColEntityID), queryir.V(idOrHandle)),
			queryir.Eq(col(ColEntityHandle), queryir.V(idOrHandle)),
		}}
	}
	return queryir.Select{
		Columns: []queryir.Column{{Expr: col(ColValue)}},
		From:    string(t),
		Where:   withContext(pred, col, rc),
		OrderBy: []queryir.Order{{Expr: col(ColID)}},
	}, nil
}

// ReadValues runs ValuesByIDOrHandle.
func ReadValues(ctx context.Context, x Execer, t Table, owner, idOrHandle string, rc ir.RelationContext) ([]string, error) {
	sel, err := ValuesByIDOrHandle(t, owner, idOrHandle, rc)
	if err != nil {
		return nil, err
	}
	values, err := x.QueryStrings(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t, err)
	}
	return values, nil
}

// DeleteEntityValues deletes every row of t owned by (id, handle).
func DeleteEntityValues(ctx context.Context, x Execer, t Table, id, handle string, rc ir.RelationContext) error {
	if err := checkScope(t, rc); err != nil {
		return err
	}
	if id == "" {
		return ir.NewQueryCompileError("%s: owner id is required", t)
	}
	_, err := x.Exec(ctx, queryir.Delete{
		Table: string(t),
		Where: ownerScope(t, unqualified, id, handle, rc),
	})
	if err != nil {
		return fmt.Errorf("delete %s of %s: %w", t, id, err)
	}
	return nil
}

// InsertProjectionValues replaces the scalar values of t owned by (id, handle).
// Prior rows are always deleted; nothing is inserted when values is empty.
// Duplicate and empty values are dropped, first occurrence order is kept.
func InsertProjectionValues(ctx context.Context, x Execer, t Table, values []string, id, handle string, rc ir.RelationContext) error {
	if err := DeleteEntityValues(ctx, x, t, id, handle, rc); err != nil {
		return err
	}
	values = ir.Dedupe(values)
	if len(values) == 0 {
		return nil
	}

	columns := []string{ColEntityID, ColEntityHandle, ColValue}
	if rc != 0 {
		columns = append(columns, ColContext)
	}
	rows := make([][]any, 0, len(values))
	for _, v := range values {
		row := []any{id, nullable(handle), v}
		if rc != 0 {
			row = append(row, rc.String())
		}
		rows = append(rows, row)
	}
	if _, err := x.Exec(ctx, queryir.Insert{Table: string(t), Columns: columns, Rows: rows}); err != nil {
		return fmt.Errorf("insert %s of %s: %w", t, id, err)
	}
	return nil
}

// InsertRelationValues replaces the relation rows of t owned by (id, handle).
// Relations without a value are skipped; repeated values keep the first.
func InsertRelationValues(ctx context.Context, x Execer, t Table, relations []Relation, id, handle string, rc ir.RelationContext) error {
	if err := DeleteEntityValues(ctx, x, t, id, handle, rc); err != nil {
		return err
	}
	return AppendRelationValues(ctx, x, t, relations, id, handle, rc)
}

// AppendRelationValues inserts relation rows owned by (id, handle) without
// touching the rows already there.
func AppendRelationValues(ctx context.Context, x Execer, t Table, relations []Relation, id, handle string, rc ir.RelationContext) error {
	if err := checkScope(t, rc); err != nil {
		return err
	}
	if id == "" {
		return ir.NewQueryCompileError("%s: owner id is required", t)
	}

	columns := []string{ColEntityID, ColEntityHandle, ColValue, ColReporter}
	if rc != 0 {
		columns = append(columns, ColContext)
	}
	seen := make(map[string]bool, len(relations))
	rows := make([][]any, 0, len(relations))
	for _, r := range relations {
		if r.Value == "" || seen[r.Value] {
			continue
		}
		seen[r.Value] = true
		row := []any{id, nullable(handle), r.Value, nullable(r.Reporter)}
		if rc != 0 {
			row = append(row, rc.String())
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := x.Exec(ctx, queryir.Insert{Table: string(t), Columns: columns, Rows: rows}); err != nil {
		return fmt.Errorf("insert %s of %s: %w", t, id, err)
	}
	return nil
}

// DeleteRelationValuesByValueOrReporter deletes the rows of t that point at
// an entity, matched by value (its id) or reporter (its handle), restricted
// to rc for the multiplexed table. Used when the target entity goes away.
// Empty value and reporter make it a no-op.
func DeleteRelationValuesByValueOrReporter(ctx context.Context, x Execer, t Table, value, reporter string, rc ir.RelationContext) error {
	if err := checkScope(t, rc); err != nil {
		return err
	}
	var preds []queryir.Predicate
	if value != "" {
		preds = append(preds, queryir.Eq(unqualified(ColValue), queryir.V(value)))
	}
	if reporter != "" {
		preds = append(preds, queryir.Eq(unqualified(ColReporter), queryir.V(reporter)))
	}
	if len(preds) == 0 {
		return nil
	}
	var pred queryir.Predicate = queryir.Or{Predicates: preds}
	if _, err := x.Exec(ctx, queryir.Delete{Table: string(t), Where: withContext(pred, unqualified, rc)}); err != nil {
		return fmt.Errorf("delete %s pointing at %s: %w", t, value, err)
	}
	return nil
}

// DeleteValues deletes every row of t whose value is one of values,
// whoever owns it. Used to retract denormalized tokens.
func DeleteValues(ctx context.Context, x Execer, t Table, values ...string) error {
	if err := checkScope(t, 0); err != nil {
		return err
	}
	values = ir.Dedupe(values)
	if len(values) == 0 {
		return nil
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	if _, err := x.Exec(ctx, queryir.Delete{
		Table: string(t),
		Where: queryir.In{Left: unqualified(ColValue), Values: args},
	}); err != nil {
		return fmt.Errorf("delete %s values: %w", t, err)
	}
	return nil
}

// AttachToMatching inserts one row of t for every row of outer matching
// where, with the given value and reporter. The insert runs as a single
// INSERT ... SELECT, so no rows travel through the client.
func AttachToMatching(ctx context.Context, x Execer, t Table, outer string, where queryir.Predicate, value, reporter string) (int64, error) {
	if err := checkScope(t, 0); err != nil {
		return 0, err
	}
	sel := queryir.Select{
		Columns: []queryir.Column{
			{Expr: queryir.C(outer, "id")},
			{Expr: queryir.C(outer, "handle")},
			{Expr: queryir.V(value), Alias: ColValue},
			{Expr: queryir.V(nullable(reporter)), Alias: ColReporter},
		},
		From:  outer,
		Where: where,
	}
	n, err := x.Exec(ctx, queryir.Insert{
		Table:   string(t),
		Columns: []string{ColEntityID, ColEntityHandle, ColValue, ColReporter},
		Query:   &sel,
	})
	if err != nil {
		return 0, fmt.Errorf("attach %s %s: %w", t, value, err)
	}
	return n, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
