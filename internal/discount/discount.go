// Package discount compiles automatic discount rules to product predicates.
//
// A discount document carries its application type, detail type and an
// ordered filter list:
//
//	{
//	  "active": true,
//	  "application": {"id": 0, "name": "Automatic", "name2": "automatic"},
//	  "info": {
//	    "details": {"type": "regular", "percent": 10},
//	    "filters": [{"op": "p-in-tags", "value": ["apparel"]}]
//	  }
//	}
//
// The same filters compile to SQL (to select every affected product when a
// discount is written) and evaluate in memory (to annotate one product when
// the product is written).
package discount

import (
	"math"
	"strings"

	"github.com/roach88/kiosk/internal/entity"
	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/queryir"
)

// Filter operators. Order filters ("o-" prefix) never select products.
const (
	OpAll               = "p-all"
	OpInTags            = "p-in-tags"
	OpNotInTags         = "p-not-in-tags"
	OpInCollections     = "p-in-collections"
	OpNotInCollections  = "p-not-in-collections"
	OpInProducts        = "p-in-products"
	OpNotInProducts     = "p-not-in-products"
	OpInPriceRange      = "p-in-price-range"
	orderFilterPrefix   = "o-"
	detailTypeOrder     = "order"
	applicationAutoName = "automatic"
)

// Prefixes of the denormalized tokens written onto eligible products.
const (
	TagPrefix    = "discount_"
	SearchPrefix = "discount:"
)

// Filter is one rule of a discount.
type Filter struct {
	Op    string
	Value any
}

// Filters extracts the filter list of d in order. Filters may carry their
// operator either at "op" or at "meta.op".
func Filters(d ir.Document) []Filter {
	raw := d.Map("info").Maps("filters")
	out := make([]Filter, 0, len(raw))
	for _, f := range raw {
		op := f.String("op")
		if op == "" {
			op = f.Map("meta").String("op")
		}
		out = append(out, Filter{Op: op, Value: f["value"]})
	}
	return out
}

// DetailType returns the discount's detail type ("regular", "bulk", "order", ...).
func DetailType(d ir.Document) string {
	details := d.Map("info").Map("details")
	if t := details.String("type"); t != "" {
		return t
	}
	return details.Map("meta").String("type")
}

// Automatic reports whether d applies without a coupon.
func Automatic(d ir.Document) bool {
	app := d.Map("application")
	if app == nil {
		return false
	}
	if strings.EqualFold(app.String("name2"), applicationAutoName) ||
		strings.EqualFold(app.String("name"), applicationAutoName) {
		return true
	}
	id, ok := app.Float("id")
	return ok && id == 0
}

// Eligible reports whether d annotates products at all: it must be active,
// automatic, and not an order-level discount.
func Eligible(d ir.Document) bool {
	return d.Bool("active") && Automatic(d) && DetailType(d) != detailTypeOrder
}

// Tags returns the product tags that mark eligibility for d.
func Tags(d ir.Document) []string {
	return tokens(TagPrefix, d)
}

// SearchTerms returns the product search terms that mark eligibility for d.
func SearchTerms(d ir.Document) []string {
	return ir.NormalizeTerms(tokens(SearchPrefix, d))
}

func tokens(prefix string, d ir.Document) []string {
	var out []string
	if id := d.ID(); id != "" {
		out = append(out, prefix+id)
	}
	if h := d.Handle(); h != "" {
		out = append(out, prefix+h)
	}
	return ir.Dedupe(out)
}

// Compile turns the product filters of d into a conjunction over the rows of
// outer (the products table or an alias of it). An empty filter list, or one
// made only of "p-all" and order filters, compiles to an empty And (true).
func Compile(d ir.Document, outer string) (queryir.Predicate, error) {
	preds := []queryir.Predicate{}
	for i, f := range Filters(d) {
		if strings.HasPrefix(f.Op, orderFilterPrefix) {
			continue
		}
		var p queryir.Predicate
		switch f.Op {
		case OpAll:
			continue
		case OpInTags, OpNotInTags:
			p = tagMembership(outer, stringValues(f.Value))
			if f.Op == OpNotInTags {
				p = queryir.Not{Predicate: p}
			}
		case OpInCollections, OpNotInCollections:
			p = collectionMembership(outer, refValues(f.Value, "id"))
			if f.Op == OpNotInCollections {
				p = queryir.Not{Predicate: p}
			}
		case OpInProducts, OpNotInProducts:
			p = queryir.In{
				Left:   queryir.C(outer, "handle"),
				Values: anySlice(refValues(f.Value, "handle")),
				Negate: f.Op == OpNotInProducts,
			}
		case OpInPriceRange:
			from, to := priceRange(f.Value)
			conj := []queryir.Predicate{
				queryir.Cmp{Left: queryir.C(outer, "price"), Op: queryir.OpGe, Right: queryir.V(from)},
			}
			if !math.IsInf(to, 1) {
				conj = append(conj, queryir.Cmp{Left: queryir.C(outer, "price"), Op: queryir.OpLt, Right: queryir.V(to)})
			}
			p = queryir.And{Predicates: conj}
		default:
			return nil, ir.NewQueryCompileError("discount %s: filter %d has unknown operator %q", d.ID(), i, f.Op)
		}
		preds = append(preds, p)
	}
	return queryir.And{Predicates: preds}, nil
}

func tagMembership(outer string, tags []string) queryir.Predicate {
	t := string(entity.TagsProjections)
	return queryir.Exists{Sub: queryir.Select{
		Columns: []queryir.Column{{Expr: queryir.C(t, entity.ColID)}},
		From:    t,
		Where: queryir.And{Predicates: []queryir.Predicate{
			queryir.Eq(queryir.C(t, entity.ColEntityID), queryir.C(outer, "id")),
			queryir.In{Left: queryir.C(t, entity.ColValue), Values: anySlice(tags)},
		}},
	}}
}

func collectionMembership(outer string, ids []string) queryir.Predicate {
	t := string(entity.ProductsToCollections)
	return queryir.Exists{Sub: queryir.Select{
		Columns: []queryir.Column{{Expr: queryir.C(t, entity.ColID)}},
		From:    t,
		Where: queryir.And{Predicates: []queryir.Predicate{
			queryir.Or{Predicates: []queryir.Predicate{
				queryir.Eq(queryir.C(t, entity.ColEntityID), queryir.C(outer, "id")),
				queryir.Eq(queryir.C(t, entity.ColEntityHandle), queryir.C(outer, "handle")),
			}},
			queryir.In{Left: queryir.C(t, entity.ColValue), Values: anySlice(ids)},
		}},
	}}
}

// Matches evaluates the product filters of d against one product document.
// It agrees with Compile: product tags come from "tags", collections from
// "collections" (objects with id/handle, or ids), price from "price".
func Matches(d ir.Document, product ir.Document) bool {
	for _, f := range Filters(d) {
		if strings.HasPrefix(f.Op, orderFilterPrefix) {
			continue
		}
		var ok bool
		switch f.Op {
		case OpAll:
			ok = true
		case OpInTags:
			ok = intersects(product.Strings("tags"), stringValues(f.Value))
		case OpNotInTags:
			ok = !intersects(product.Strings("tags"), stringValues(f.Value))
		case OpInCollections:
			ok = intersects(refValues(product["collections"], "id"), refValues(f.Value, "id"))
		case OpNotInCollections:
			ok = !intersects(refValues(product["collections"], "id"), refValues(f.Value, "id"))
		case OpInProducts:
			ok = contains(refValues(f.Value, "handle"), product.Handle())
		case OpNotInProducts:
			ok = !contains(refValues(f.Value, "handle"), product.Handle())
		case OpInPriceRange:
			price, has := product.Float("price")
			from, to := priceRange(f.Value)
			ok = has && price >= from && price < to
		default:
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}

// priceRange sanitizes {from, to}: both become non-negative finite numbers,
// a missing or non-positive "to" means unbounded.
func priceRange(v any) (float64, float64) {
	m := ir.AsDocument(v)
	from, ok := m.Float("from")
	if !ok || math.IsNaN(from) || math.IsInf(from, 0) || from < 0 {
		from = 0
	}
	to, ok := m.Float("to")
	if !ok || math.IsNaN(to) || math.IsInf(to, 0) || to <= 0 {
		to = math.Inf(1)
	}
	return from, to
}

func stringValues(v any) []string {
	return ir.AsStrings(v)
}

// refValues reads references given either as plain strings or as objects,
// taking key from objects.
func refValues(v any, key string) []string {
	var out []string
	switch arr := v.(type) {
	case []string:
		return arr
	case []any:
		for _, elem := range arr {
			switch e := elem.(type) {
			case string:
				out = append(out, e)
			default:
				if m := ir.AsDocument(e); m != nil && m.String(key) != "" {
					out = append(out, m.String(key))
				}
			}
		}
	case []ir.Document:
		for _, m := range arr {
			if m.String(key) != "" {
				out = append(out, m.String(key))
			}
		}
	}
	return out
}

func anySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func intersects(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if set[v] {
			return true
		}
	}
	return false
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
