package store

import (
	"context"
	"fmt"

	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/query"
	"github.com/roach88/kiosk/internal/queryir"
)

// Search runs q against each kind (every kind when none is given) and
// returns the lightweight {id, handle, title} form of the matches. Kinds
// without a title column return id and handle only. All kinds are read in
// one transaction.
func (s *Store) Search(ctx context.Context, q *query.ApiQuery, kinds ...ir.Kind) (map[ir.Kind][]ir.Document, error) {
	var out map[ir.Kind][]ir.Document
	err := s.InTx(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.Search(ctx, q, kinds...)
		return err
	})
	return out, ir.WithOp(err, "search", "")
}

// Search is Store.Search inside an open transaction.
func (t *Tx) Search(ctx context.Context, q *query.ApiQuery, kinds ...ir.Kind) (map[ir.Kind][]ir.Document, error) {
	if q == nil {
		q = &query.ApiQuery{}
	}
	if len(kinds) == 0 {
		kinds = ir.AllKinds
	}

	out := make(map[ir.Kind][]ir.Document, len(kinds))
	for _, kind := range kinds {
		r, ok := resources[kind]
		if !ok {
			return nil, ir.NewQueryCompileError("unknown resource kind %q", kind)
		}
		compiled, err := query.Compile(q, r.Table(), r.ColumnNames())
		if err != nil {
			return nil, err
		}

		sel := queryir.Select{From: r.Table(), Where: compiled.Where, OrderBy: compiled.OrderBy, Limit: compiled.Limit}
		var fields []field
		for _, name := range []string{"id", "handle", "title"} {
			c, ok := r.Column(name)
			if !ok {
				continue
			}
			sel.Columns = append(sel.Columns, queryir.Column{Expr: queryir.C(r.Table(), c.Name)})
			fields = append(fields, field{key: c.Name, decode: c.Decode})
		}

		docs, err := t.queryDocs(ctx, sel, fields)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", kind, err)
		}
		if compiled.Reverse {
			for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
				docs[i], docs[j] = docs[j], docs[i]
			}
		}
		out[kind] = docs
	}
	return out, nil
}

// Resolve fetches a document by id alone, routing on the id prefix.
func (s *Store) Resolve(ctx context.Context, id string, expand ...string) (ir.Kind, ir.Document, error) {
	kind, ok := ir.KindOfID(id)
	if !ok {
		return "", nil, ir.NewNotFoundError("resolve", "", id)
	}
	doc, err := s.Resource(kind).Get(ctx, id, expand...)
	return kind, doc, err
}
