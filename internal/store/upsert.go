package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/kiosk/internal/discount"
	"github.com/roach88/kiosk/internal/entity"
	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/queryir"
)

// Upsert writes doc and returns it as stored: with id, created_at and
// updated_at filled when missing, active typed as a boolean, and tags,
// search and media set to the stored (deduplicated) values.
//
// searchTerms are added to doc["search"]. Product documents lose any
// discount tags and terms they carry; those are recomputed from the
// active automatic discounts that match the product.
func (d *TxDriver) Upsert(ctx context.Context, doc ir.Document, searchTerms ...string) (ir.Document, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	s := d.tx.s

	doc = doc.Clone()
	if doc == nil {
		doc = ir.Document{}
	}
	now := FormatTime(s.clock.Now())
	if doc.ID() == "" {
		doc["id"] = s.ids.NewID(d.kind)
	}
	if doc["created_at"] == nil {
		doc["created_at"] = now
	}
	if doc["updated_at"] == nil {
		doc["updated_at"] = now
	}
	if s.validator != nil {
		if err := s.validator.Validate(d.kind, doc); err != nil {
			return nil, err
		}
	}
	active, _ := ir.AsBool(doc["active"])
	doc["active"] = active

	id, handle := doc.ID(), doc.Handle()
	_, prevHandle, _, err := d.tx.lookupKeys(ctx, d.res, id)
	if err != nil {
		return nil, fmt.Errorf("upsert %s %s: %w", d.kind, id, err)
	}

	tags := doc.Strings("tags")
	terms := ir.NormalizeTerms(append(doc.Strings("search"), searchTerms...))
	media := ir.Dedupe(doc.Strings("media"))

	relations := make(map[string][]entity.Relation)
	for _, rel := range d.res.Relations {
		if !rel.Writable {
			continue
		}
		resolved, refs, err := d.tx.resolveRefs(ctx, resources[rel.Target], doc[rel.Key])
		if err != nil {
			return nil, err
		}
		relations[rel.Key] = resolved
		if doc[rel.Key] != nil {
			doc[rel.Key] = refs
		}
	}

	if d.kind == ir.KindProduct {
		tags = withoutPrefix(tags, discount.TagPrefix)
		terms = withoutPrefix(terms, discount.SearchPrefix)
		doc["tags"] = tags

		matched, err := d.tx.matchingDiscounts(ctx, doc)
		if err != nil {
			return nil, err
		}
		var applied []entity.Relation
		for _, dis := range matched {
			tags = append(tags, discount.Tags(dis)...)
			terms = append(terms, discount.SearchTerms(dis)...)
			applied = append(applied, entity.Relation{Value: dis.ID(), Reporter: dis.Handle()})
		}
		relations["discounts"] = applied
	}

	tags = ir.Dedupe(tags)
	terms = ir.Dedupe(terms)
	doc["tags"], doc["search"], doc["media"] = tags, terms, media

	// 1. projections
	projections := []struct {
		table  entity.Table
		values []string
	}{
		{entity.TagsProjections, tags},
		{entity.SearchTerms, terms},
		{entity.Media, media},
	}
	for _, p := range projections {
		if err := entity.InsertProjectionValues(ctx, d.tx, p.table, p.values, id, handle, 0); err != nil {
			return nil, err
		}
	}

	// 2. owned relations
	for _, rel := range d.res.Relations {
		values, ok := relations[rel.Key]
		if !ok {
			continue
		}
		if err := entity.InsertRelationValues(ctx, d.tx, rel.Table, values, id, handle, rel.Context); err != nil {
			return nil, err
		}
	}
	if d.kind == ir.KindProduct {
		if err := d.tx.repointVariant(ctx, doc); err != nil {
			return nil, err
		}
	}

	// 3. media usage
	if d.kind != ir.KindImage {
		if err := d.tx.reportMedia(ctx, media); err != nil {
			return nil, err
		}
	}

	// 4. primary row
	if err := d.tx.replaceRow(ctx, d.res, doc); err != nil {
		return nil, err
	}

	if d.kind == ir.KindDiscount {
		if err := d.tx.applyDiscount(ctx, doc, prevHandle); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// replaceRow deletes and re-inserts the primary row of doc.
func (t *Tx) replaceRow(ctx context.Context, r *Resource, doc ir.Document) error {
	names := make([]string, len(r.Columns))
	row := make([]any, len(r.Columns))
	for i, c := range r.Columns {
		v, err := c.Encode(doc[c.Name])
		if err != nil {
			return ir.NewValidationError(r.Kind, err)
		}
		names[i] = c.Name
		row[i] = v
	}

	if _, err := t.Exec(ctx, queryir.Delete{
		Table: r.Table(),
		Where: queryir.Eq(queryir.Col{Name: "id"}, queryir.V(doc.ID())),
	}); err != nil {
		return fmt.Errorf("replace %s %s: %w", r.Kind, doc.ID(), err)
	}
	if _, err := t.Exec(ctx, queryir.Insert{
		Table:   r.Table(),
		Columns: names,
		Rows:    [][]any{row},
	}); err != nil {
		return fmt.Errorf("replace %s %s: %w", r.Kind, doc.ID(), err)
	}
	return nil
}

// resolveRefs reads references given as ids, or as objects with id and/or
// handle, and completes each one from the target table. References that
// name no existing row keep whatever they carry; those without an id are
// dropped.
func (t *Tx) resolveRefs(ctx context.Context, target *Resource, v any) ([]entity.Relation, []any, error) {
	var rels []entity.Relation
	var refs []any
	for _, ref := range refsOf(v) {
		id, handle := ref.ID(), ref.Handle()
		if id == "" || handle == "" {
			key := id
			if key == "" {
				key = handle
			}
			foundID, foundHandle, found, err := t.lookupKeys(ctx, target, key)
			if err != nil {
				return nil, nil, fmt.Errorf("resolve %s %s: %w", target.Kind, key, err)
			}
			if found {
				id, handle = foundID, foundHandle
			}
		}
		if id == "" {
			continue
		}
		rels = append(rels, entity.Relation{Value: id, Reporter: handle})
		out := ref.Clone()
		out["id"] = id
		if handle != "" {
			out["handle"] = handle
		}
		refs = append(refs, out)
	}
	return rels, refs, nil
}

// refsOf normalizes a relation field: plain strings are ids.
func refsOf(v any) []ir.Document {
	var out []ir.Document
	switch arr := v.(type) {
	case []string:
		for _, id := range arr {
			out = append(out, ir.Document{"id": id})
		}
	case []ir.Document:
		out = append(out, arr...)
	case []any:
		for _, elem := range arr {
			if id, ok := elem.(string); ok {
				out = append(out, ir.Document{"id": id})
			} else if m := ir.AsDocument(elem); m != nil {
				out = append(out, m)
			}
		}
	}
	return out
}

// repointVariant keeps products_to_variants in step with a product's
// parent: the row naming this product is removed, and re-added under the
// parent when the product is a variant.
func (t *Tx) repointVariant(ctx context.Context, doc ir.Document) error {
	id, handle := doc.ID(), doc.Handle()
	if err := entity.DeleteRelationValuesByValueOrReporter(ctx, t, entity.ProductsToVariants, id, "", 0); err != nil {
		return err
	}

	parentID, parentHandle := doc.String("parent_id"), doc.String("parent_handle")
	if parentID == "" && parentHandle == "" {
		return nil
	}
	key := parentID
	if key == "" {
		key = parentHandle
	}
	foundID, foundHandle, found, err := t.lookupKeys(ctx, resources[ir.KindProduct], key)
	if err != nil {
		return fmt.Errorf("variant %s: %w", id, err)
	}
	if found {
		parentID, parentHandle = foundID, foundHandle
	}
	if parentID == "" {
		return nil
	}
	return entity.AppendRelationValues(ctx, t, entity.ProductsToVariants,
		[]entity.Relation{{Value: id, Reporter: handle}}, parentID, parentHandle, 0)
}

// matchingDiscounts returns the eligible discounts whose filters match
// product, ordered by priority.
//
// Every active discount is loaded and evaluated in memory, so a product
// write costs O(active discounts).
func (t *Tx) matchingDiscounts(ctx context.Context, product ir.Document) ([]ir.Document, error) {
	r := resources[ir.KindDiscount]
	sel, fields := r.rowSelect()
	sel.Where = queryir.Eq(queryir.C(r.Table(), "active"), queryir.V(true))
	sel.OrderBy = []queryir.Order{
		{Expr: queryir.C(r.Table(), "priority")},
		{Expr: queryir.C(r.Table(), "id")},
	}
	all, err := t.queryDocs(ctx, sel, fields)
	if err != nil {
		return nil, fmt.Errorf("load discounts: %w", err)
	}

	var out []ir.Document
	for _, d := range all {
		if discount.Eligible(d) && discount.Matches(d, product) {
			out = append(out, d)
		}
	}
	return out, nil
}

// applyDiscount replaces the annotations of a written discount on every
// product. Annotations under the previous handle are retracted too.
func (t *Tx) applyDiscount(ctx context.Context, d ir.Document, prevHandle string) error {
	id, handle := d.ID(), d.Handle()
	if err := t.retractDiscount(ctx, id, handle, prevHandle); err != nil {
		return err
	}
	if !discount.Eligible(d) {
		return nil
	}

	products := ir.KindProduct.Table()
	pred, err := discount.Compile(d, products)
	if err != nil {
		return err
	}
	n, err := entity.AttachToMatching(ctx, t, entity.ProductsToDiscounts, products, pred, id, handle)
	if err != nil {
		return err
	}
	t.s.log.Debug().Str("discount", id).Int64("products", n).Msg("discount applied")

	// Tags and terms follow the relation rows just written, so the tag
	// projection is never read and written by the same statement.
	ptd := string(entity.ProductsToDiscounts)
	applied := queryir.InSelect{
		Left: queryir.C(products, "id"),
		Sub: queryir.Select{
			Columns: []queryir.Column{{Expr: queryir.C(ptd, entity.ColEntityID)}},
			From:    ptd,
			Where:   queryir.Eq(queryir.C(ptd, entity.ColValue), queryir.V(id)),
		},
	}
	for _, tag := range discount.Tags(d) {
		if _, err := entity.AttachToMatching(ctx, t, entity.TagsProjections, products, applied, tag, ""); err != nil {
			return err
		}
	}
	for _, term := range discount.SearchTerms(d) {
		if _, err := entity.AttachToMatching(ctx, t, entity.SearchTerms, products, applied, term, ""); err != nil {
			return err
		}
	}
	return nil
}

// retractDiscount removes every product annotation of a discount, under
// each of the given keys (its id and handles).
func (t *Tx) retractDiscount(ctx context.Context, id string, handles ...string) error {
	var tags, terms []string
	for _, key := range ir.Dedupe(append([]string{id}, handles...)) {
		tags = append(tags, discount.TagPrefix+key)
		terms = append(terms, discount.SearchPrefix+key)
	}
	if err := entity.DeleteValues(ctx, t, entity.TagsProjections, tags...); err != nil {
		return err
	}
	if err := entity.DeleteValues(ctx, t, entity.SearchTerms, ir.NormalizeTerms(terms)...); err != nil {
		return err
	}
	return entity.DeleteRelationValuesByValueOrReporter(ctx, t, entity.ProductsToDiscounts, id, "", 0)
}

func withoutPrefix(values []string, prefix string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !strings.HasPrefix(v, prefix) {
			out = append(out, v)
		}
	}
	return out
}
