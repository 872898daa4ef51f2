package ir

import (
	"strings"

	"github.com/google/uuid"
)

// Kind identifies a primary resource type.
type Kind string

const (
	KindProduct        Kind = "product"
	KindCollection     Kind = "collection"
	KindDiscount       Kind = "discount"
	KindCustomer       Kind = "customer"
	KindOrder          Kind = "order"
	KindShippingMethod Kind = "shipping_method"
	KindStorefront     Kind = "storefront"
	KindTag            Kind = "tag"
	KindTemplate       Kind = "template"
	KindNotification   Kind = "notification"
	KindImage          Kind = "image"
	KindAuthUser       Kind = "auth_user"
	KindPost           Kind = "post"
)

type kindInfo struct {
	table  string
	prefix string
}

var kinds = map[Kind]kindInfo{
	KindProduct:        {table: "products", prefix: "prod"},
	KindCollection:     {table: "collections", prefix: "col"},
	KindDiscount:       {table: "discounts", prefix: "dis"},
	KindCustomer:       {table: "customers", prefix: "cus"},
	KindOrder:          {table: "orders", prefix: "order"},
	KindShippingMethod: {table: "shipping_methods", prefix: "ship"},
	KindStorefront:     {table: "storefronts", prefix: "sf"},
	KindTag:            {table: "tags", prefix: "tag"},
	KindTemplate:       {table: "templates", prefix: "template"},
	KindNotification:   {table: "notifications", prefix: "not"},
	KindImage:          {table: "images", prefix: "img"},
	KindAuthUser:       {table: "auth_users", prefix: "au"},
	KindPost:           {table: "posts", prefix: "post"},
}

// AllKinds lists every resource kind in a stable order.
var AllKinds = []Kind{
	KindProduct,
	KindCollection,
	KindDiscount,
	KindCustomer,
	KindOrder,
	KindShippingMethod,
	KindStorefront,
	KindTag,
	KindTemplate,
	KindNotification,
	KindImage,
	KindAuthUser,
	KindPost,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Table returns the primary table name for k.
func (k Kind) Table() string {
	return kinds[k].table
}

// Prefix returns the id prefix for k, without the trailing underscore.
func (k Kind) Prefix() string {
	return kinds[k].prefix
}

// ParseKind resolves a kind from its name, its table name or its id prefix.
// "products", "product" and "prod" all resolve to KindProduct.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range AllKinds {
		info := kinds[k]
		if s == string(k) || s == info.table || s == info.prefix {
			return k, true
		}
	}
	return "", false
}

// KindOfID routes an id to its owning kind using the id prefix.
func KindOfID(id string) (Kind, bool) {
	prefix, _, ok := strings.Cut(id, "_")
	if !ok || prefix == "" {
		return "", false
	}
	for _, k := range AllKinds {
		if kinds[k].prefix == prefix {
			return k, true
		}
	}
	return "", false
}

// NewID generates a fresh id for kind k: "<prefix>_<uuidv7 hex>".
// UUIDv7 keeps generated ids roughly insertion ordered.
func NewID(k Kind) string {
	u := uuid.Must(uuid.NewV7())
	return k.Prefix() + "_" + strings.ReplaceAll(u.String(), "-", "")
}

// TwinID maps a customer id to its auth user id and back.
// Customers and auth users share the id suffix by convention.
// Returns false for ids of any other kind.
func TwinID(id string) (string, bool) {
	switch k, _ := KindOfID(id); k {
	case KindCustomer:
		return KindAuthUser.Prefix() + strings.TrimPrefix(id, KindCustomer.Prefix()), true
	case KindAuthUser:
		return KindCustomer.Prefix() + strings.TrimPrefix(id, KindAuthUser.Prefix()), true
	default:
		return "", false
	}
}
