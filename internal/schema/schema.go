// Package schema validates resource documents against CUE definitions
// before they are written.
package schema

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/kiosk/internal/ir"
)

//go:embed schema.cue
var source string

var definitions = map[ir.Kind]string{
	ir.KindProduct:        "#Product",
	ir.KindCollection:     "#Collection",
	ir.KindDiscount:       "#Discount",
	ir.KindCustomer:       "#Customer",
	ir.KindOrder:          "#Order",
	ir.KindShippingMethod: "#ShippingMethod",
	ir.KindStorefront:     "#Storefront",
	ir.KindPost:           "#Post",
	ir.KindTag:            "#Tag",
	ir.KindTemplate:       "#Template",
	ir.KindNotification:   "#Notification",
	ir.KindImage:          "#Image",
	ir.KindAuthUser:       "#AuthUser",
}

// Validator checks documents against the embedded definitions.
// A cue.Context is not safe for concurrent use, so calls are serialized.
type Validator struct {
	mu   sync.Mutex
	ctx  *cue.Context
	defs map[ir.Kind]cue.Value
}

// New compiles the embedded schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(source, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	defs := make(map[ir.Kind]cue.Value, len(definitions))
	for kind, name := range definitions {
		def := root.LookupPath(cue.ParsePath(name))
		if !def.Exists() {
			return nil, fmt.Errorf("schema definition %s missing", name)
		}
		defs[kind] = def
	}
	return &Validator{ctx: ctx, defs: defs}, nil
}

// Validate reports a ValidationFailed error when doc does not fit the
// definition for kind. It also checks that an id, when present, carries
// the kind's prefix.
func (v *Validator) Validate(kind ir.Kind, doc ir.Document) error {
	def, ok := v.defs[kind]
	if !ok {
		return ir.NewValidationError(kind, fmt.Errorf("no schema for kind %q", kind))
	}

	if id := doc.ID(); id != "" {
		if got, ok := ir.KindOfID(id); !ok || got != kind {
			return ir.NewValidationError(kind, fmt.Errorf("id %q does not carry prefix %q", id, kind.Prefix()+"_"))
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	val := v.ctx.Encode(map[string]any(doc.Compact()))
	if err := val.Err(); err != nil {
		return ir.NewValidationError(kind, fmt.Errorf("encode: %w", err))
	}
	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return ir.NewValidationError(kind, fmt.Errorf("%s", errors.Details(err, nil)))
	}
	return nil
}
