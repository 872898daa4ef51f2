package ir

import "fmt"

// RelationContext disambiguates rows of the multiplexed storefronts_to_other
// table. Storefronts aggregate several resource kinds whose handles are not
// mutually unique, so every row carries one of these values.
type RelationContext int

const (
	ContextProducts RelationContext = iota + 1
	ContextCollections
	ContextDiscounts
	ContextPosts
	ContextShippingMethods
)

var relationContextNames = map[RelationContext]string{
	ContextProducts:        "products",
	ContextCollections:     "collections",
	ContextDiscounts:       "discounts",
	ContextPosts:           "posts",
	ContextShippingMethods: "shipping_methods",
}

// String returns the physical column value for c.
func (c RelationContext) String() string {
	if s, ok := relationContextNames[c]; ok {
		return s
	}
	return fmt.Sprintf("RelationContext(%d)", int(c))
}

// Valid reports whether c is one of the declared contexts.
func (c RelationContext) Valid() bool {
	_, ok := relationContextNames[c]
	return ok
}

// Target returns the resource kind a context points at.
func (c RelationContext) Target() Kind {
	switch c {
	case ContextProducts:
		return KindProduct
	case ContextCollections:
		return KindCollection
	case ContextDiscounts:
		return KindDiscount
	case ContextPosts:
		return KindPost
	case ContextShippingMethods:
		return KindShippingMethod
	default:
		return ""
	}
}

// ParseRelationContext converts a stored column value back to the enum.
func ParseRelationContext(s string) (RelationContext, error) {
	for c, name := range relationContextNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown relation context %q", s)
}

// ContextFor returns the storefront context that holds rows of kind k.
func ContextFor(k Kind) (RelationContext, bool) {
	for c := range relationContextNames {
		if c.Target() == k {
			return c, true
		}
	}
	return 0, false
}
