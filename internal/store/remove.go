package store

import (
	"context"
	"fmt"

	"github.com/roach88/kiosk/internal/entity"
	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/queryir"
)

// Remove deletes the document matching idOrHandle together with every
// junction row it owns or is the target of. Removing a customer removes
// its auth user and the other way round.
func (d *TxDriver) Remove(ctx context.Context, idOrHandle string) error {
	if err := d.check(); err != nil {
		return err
	}
	id, handle, found, err := d.tx.lookupKeys(ctx, d.res, idOrHandle)
	if err != nil {
		return fmt.Errorf("remove %s %s: %w", d.kind, idOrHandle, err)
	}
	if !found {
		return ir.NewNotFoundError("remove", d.kind, idOrHandle)
	}
	if err := d.removeRow(ctx, id, handle); err != nil {
		return err
	}

	twinID, ok := ir.TwinID(id)
	if !ok {
		return nil
	}
	twinKind, _ := ir.KindOfID(twinID)
	twin := d.tx.Resource(twinKind)
	tid, thandle, found, err := d.tx.lookupKeys(ctx, twin.res, twinID)
	if err == nil && !found && handle != "" {
		tid, thandle, found, err = d.tx.lookupKeys(ctx, twin.res, handle)
	}
	if err != nil {
		return fmt.Errorf("remove twin of %s: %w", id, err)
	}
	if !found {
		return nil
	}
	d.tx.s.log.Debug().Str("id", id).Str("twin", tid).Msg("removing twin")
	return twin.removeRow(ctx, tid, thandle)
}

func (d *TxDriver) removeRow(ctx context.Context, id, handle string) error {
	for _, t := range []entity.Table{entity.TagsProjections, entity.SearchTerms, entity.Media} {
		if err := entity.DeleteEntityValues(ctx, d.tx, t, id, handle, 0); err != nil {
			return err
		}
	}
	for _, rel := range d.res.Relations {
		if err := entity.DeleteEntityValues(ctx, d.tx, rel.Table, id, handle, rel.Context); err != nil {
			return err
		}
	}
	for _, rel := range incoming(d.kind) {
		if err := entity.DeleteRelationValuesByValueOrReporter(ctx, d.tx, rel.Table, id, handle, rel.Context); err != nil {
			return err
		}
	}
	if d.kind == ir.KindDiscount {
		if err := d.tx.retractDiscount(ctx, id, handle); err != nil {
			return err
		}
	}

	if _, err := d.tx.Exec(ctx, queryir.Delete{
		Table: d.res.Table(),
		Where: queryir.Eq(queryir.Col{Name: "id"}, queryir.V(id)),
	}); err != nil {
		return fmt.Errorf("remove %s %s: %w", d.kind, id, err)
	}
	return nil
}
