package store

import (
	"context"

	"github.com/roach88/kiosk/internal/entity"
	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/query"
)

// TxDriver is the CRUD contract of one kind inside an open transaction.
type TxDriver struct {
	tx   *Tx
	kind ir.Kind
	res  *Resource
}

// Kind returns the resource kind.
func (d *TxDriver) Kind() ir.Kind {
	return d.kind
}

func (d *TxDriver) check() error {
	if d.res == nil {
		return ir.NewQueryCompileError("unknown resource kind %q", d.kind)
	}
	return nil
}

// Driver is the CRUD contract of one kind. Each call runs in its own
// transaction.
type Driver struct {
	s    *Store
	kind ir.Kind
}

// Resource returns the driver for kind.
func (s *Store) Resource(kind ir.Kind) *Driver {
	return &Driver{s: s, kind: kind}
}

func (s *Store) Products() *Driver        { return s.Resource(ir.KindProduct) }
func (s *Store) Collections() *Driver     { return s.Resource(ir.KindCollection) }
func (s *Store) Discounts() *Driver       { return s.Resource(ir.KindDiscount) }
func (s *Store) Customers() *Driver       { return s.Resource(ir.KindCustomer) }
func (s *Store) Orders() *Driver          { return s.Resource(ir.KindOrder) }
func (s *Store) ShippingMethods() *Driver { return s.Resource(ir.KindShippingMethod) }
func (s *Store) Storefronts() *Driver     { return s.Resource(ir.KindStorefront) }
func (s *Store) Posts() *Driver           { return s.Resource(ir.KindPost) }
func (s *Store) Tags() *Driver            { return s.Resource(ir.KindTag) }
func (s *Store) Templates() *Driver       { return s.Resource(ir.KindTemplate) }
func (s *Store) Notifications() *Driver   { return s.Resource(ir.KindNotification) }
func (s *Store) Images() *Driver          { return s.Resource(ir.KindImage) }
func (s *Store) AuthUsers() *Driver       { return s.Resource(ir.KindAuthUser) }

// Kind returns the resource kind.
func (d *Driver) Kind() ir.Kind {
	return d.kind
}

// Upsert writes doc in a new transaction. See TxDriver.Upsert.
func (d *Driver) Upsert(ctx context.Context, doc ir.Document, searchTerms ...string) (ir.Document, error) {
	var out ir.Document
	err := d.s.InTx(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.Resource(d.kind).Upsert(ctx, doc, searchTerms...)
		return err
	})
	if err != nil {
		return nil, ir.WithOp(err, "upsert", d.kind)
	}
	return out, nil
}

// UpsertIndexed is Upsert with the IndexTerms of doc added to searchTerms.
// A missing id is assigned first so the id is indexed too.
func (d *Driver) UpsertIndexed(ctx context.Context, doc ir.Document, searchTerms ...string) (ir.Document, error) {
	doc = doc.Clone()
	if doc == nil {
		doc = ir.Document{}
	}
	if doc.ID() == "" {
		doc["id"] = d.s.ids.NewID(d.kind)
	}
	return d.Upsert(ctx, doc, append(IndexTerms(doc), searchTerms...)...)
}

// Get reads one document in a new transaction. See TxDriver.Get.
func (d *Driver) Get(ctx context.Context, idOrHandle string, expand ...string) (ir.Document, error) {
	var out ir.Document
	err := d.s.InTx(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.Resource(d.kind).Get(ctx, idOrHandle, expand...)
		return err
	})
	if err != nil {
		return nil, ir.WithOp(err, "get", d.kind)
	}
	return out, nil
}

// Values reads junction values in a new transaction. See TxDriver.Values.
func (d *Driver) Values(ctx context.Context, t entity.Table, idOrHandle string, rc ir.RelationContext) ([]string, error) {
	var out []string
	err := d.s.InTx(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.Resource(d.kind).Values(ctx, t, idOrHandle, rc)
		return err
	})
	if err != nil {
		return nil, ir.WithOp(err, "values", d.kind)
	}
	return out, nil
}

// Remove deletes one document in a new transaction. See TxDriver.Remove.
func (d *Driver) Remove(ctx context.Context, idOrHandle string) error {
	err := d.s.InTx(ctx, func(tx *Tx) error {
		return tx.Resource(d.kind).Remove(ctx, idOrHandle)
	})
	return ir.WithOp(err, "remove", d.kind)
}

// List reads documents in a new transaction. See TxDriver.List.
func (d *Driver) List(ctx context.Context, q *query.ApiQuery) ([]ir.Document, error) {
	var out []ir.Document
	err := d.s.InTx(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.Resource(d.kind).List(ctx, q)
		return err
	})
	if err != nil {
		return nil, ir.WithOp(err, "list", d.kind)
	}
	return out, nil
}

// Count counts documents in a new transaction. See TxDriver.Count.
func (d *Driver) Count(ctx context.Context, q *query.ApiQuery) (int, error) {
	var n int
	err := d.s.InTx(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.Resource(d.kind).Count(ctx, q)
		return err
	})
	if err != nil {
		return 0, ir.WithOp(err, "count", d.kind)
	}
	return n, nil
}
