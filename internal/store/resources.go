package store

import (
	"github.com/roach88/kiosk/internal/entity"
	"github.com/roach88/kiosk/internal/ir"
)

// Relation is a many-to-many field of a resource, backed by a relation table.
type Relation struct {
	// Key is both the document field and the expand key.
	Key    string
	Table  entity.Table
	Target ir.Kind
	// Context is set only for the multiplexed storefront table.
	Context ir.RelationContext
	// Writable relations are taken from the upserted document. The others
	// are maintained by side effects (discount matching, variant re-pointing).
	Writable bool
}

// Resource describes how one kind is laid out.
type Resource struct {
	Kind      ir.Kind
	Columns   []Column
	Relations []Relation
}

// Table returns the primary table name.
func (r *Resource) Table() string {
	return r.Kind.Table()
}

// ColumnNames lists the primary-table columns, which are also the sortable keys.
func (r *Resource) ColumnNames() []string {
	out := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		out[i] = c.Name
	}
	return out
}

// Column looks a column up by name.
func (r *Resource) Column(name string) (Column, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Relation looks a relation up by key.
func (r *Resource) Relation(key string) (Relation, bool) {
	for _, rel := range r.Relations {
		if rel.Key == key {
			return rel, true
		}
	}
	return Relation{}, false
}

var commonColumns = []Column{
	{"id", TypeText},
	{"handle", TypeText},
	{"created_at", TypeText},
	{"updated_at", TypeText},
	{"active", TypeBool},
	{"attributes", TypeJSON},
	{"description", TypeText},
}

func columns(extra ...Column) []Column {
	return append(append([]Column(nil), commonColumns...), extra...)
}

func storefrontRelation(rc ir.RelationContext) Relation {
	return Relation{
		Key:      rc.String(),
		Table:    entity.StorefrontsToOther,
		Target:   rc.Target(),
		Context:  rc,
		Writable: true,
	}
}

var resources = map[ir.Kind]*Resource{
	ir.KindProduct: {
		Kind: ir.KindProduct,
		Columns: columns(
			Column{"title", TypeText},
			Column{"video", TypeText},
			Column{"price", TypeFloat},
			Column{"compare_at_price", TypeFloat},
			Column{"qty", TypeInt},
			Column{"parent_handle", TypeText},
			Column{"parent_id", TypeText},
			Column{"variant_hint", TypeJSON},
			Column{"variants_options", TypeJSON},
		),
		Relations: []Relation{
			{Key: "collections", Table: entity.ProductsToCollections, Target: ir.KindCollection, Writable: true},
			{Key: "related_products", Table: entity.ProductsToRelatedProducts, Target: ir.KindProduct, Writable: true},
			{Key: "discounts", Table: entity.ProductsToDiscounts, Target: ir.KindDiscount},
			{Key: "variants", Table: entity.ProductsToVariants, Target: ir.KindProduct},
		},
	},
	ir.KindCollection: {
		Kind: ir.KindCollection,
		Columns: columns(
			Column{"title", TypeText},
			Column{"published", TypeText},
		),
	},
	ir.KindDiscount: {
		Kind: ir.KindDiscount,
		Columns: columns(
			Column{"title", TypeText},
			Column{"published", TypeText},
			Column{"priority", TypeInt},
			Column{"application", TypeJSON},
			Column{"info", TypeJSON},
		),
	},
	ir.KindCustomer: {
		Kind: ir.KindCustomer,
		Columns: columns(
			Column{"email", TypeText},
			Column{"auth_id", TypeText},
			Column{"firstname", TypeText},
			Column{"lastname", TypeText},
			Column{"phone_number", TypeText},
			Column{"address", TypeJSON},
		),
	},
	ir.KindOrder: {
		Kind: ir.KindOrder,
		Columns: columns(
			Column{"contact", TypeJSON},
			Column{"address", TypeJSON},
			Column{"line_items", TypeJSON},
			Column{"shipping_method", TypeJSON},
			Column{"status", TypeJSON},
			Column{"pricing", TypeJSON},
			Column{"validation", TypeJSON},
			Column{"payment_gateway", TypeJSON},
			Column{"coupons", TypeJSON},
		),
	},
	ir.KindShippingMethod: {
		Kind: ir.KindShippingMethod,
		Columns: columns(
			Column{"title", TypeText},
			Column{"price", TypeFloat},
		),
	},
	ir.KindStorefront: {
		Kind: ir.KindStorefront,
		Columns: columns(
			Column{"title", TypeText},
			Column{"video", TypeText},
			Column{"published", TypeText},
		),
		Relations: []Relation{
			storefrontRelation(ir.ContextProducts),
			storefrontRelation(ir.ContextCollections),
			storefrontRelation(ir.ContextDiscounts),
			storefrontRelation(ir.ContextPosts),
			storefrontRelation(ir.ContextShippingMethods),
		},
	},
	ir.KindPost: {
		Kind: ir.KindPost,
		Columns: columns(
			Column{"title", TypeText},
			Column{"text", TypeText},
			Column{"published", TypeText},
		),
	},
	ir.KindTag: {
		Kind:    ir.KindTag,
		Columns: columns(Column{"values", TypeJSON}),
	},
	ir.KindTemplate: {
		Kind: ir.KindTemplate,
		Columns: columns(
			Column{"title", TypeText},
			Column{"template_html", TypeText},
			Column{"template_text", TypeText},
			Column{"template_subject", TypeText},
			Column{"reference_example_input", TypeJSON},
		),
	},
	ir.KindNotification: {
		Kind: ir.KindNotification,
		Columns: columns(
			Column{"message", TypeText},
			Column{"author", TypeText},
			Column{"actions", TypeJSON},
		),
	},
	ir.KindImage: {
		Kind: ir.KindImage,
		Columns: columns(
			Column{"name", TypeText},
			Column{"url", TypeText},
			Column{"usage", TypeJSON},
		),
	},
	ir.KindAuthUser: {
		Kind: ir.KindAuthUser,
		Columns: columns(
			Column{"email", TypeText},
			Column{"password", TypeText},
			Column{"confirmed_mail", TypeBool},
			Column{"roles", TypeJSON},
			Column{"firstname", TypeText},
			Column{"lastname", TypeText},
		),
	},
}

// ResourceOf returns the layout of kind.
func ResourceOf(kind ir.Kind) (*Resource, bool) {
	r, ok := resources[kind]
	return r, ok
}

// incoming lists the relations of every resource that point at kind.
func incoming(kind ir.Kind) []Relation {
	var out []Relation
	for _, k := range ir.AllKinds {
		for _, rel := range resources[k].Relations {
			if rel.Target == kind {
				out = append(out, rel)
			}
		}
	}
	return out
}
