package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/queryir"
)

// Tx is an open transaction. It implements entity.Execer, so the
// entity-relation primitives run on it directly.
type Tx struct {
	s  *Store
	tx *sql.Tx
}

// InTx runs fn in one transaction. The transaction commits when fn returns
// nil and rolls back otherwise. Returned errors are StorageErrors: driver
// constraint failures become CONSTRAINT_VIOLATION, other driver and commit
// failures TRANSACTION_ABORTED.
func (s *Store) InTx(ctx context.Context, fn func(*Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin: %w", err))
	}

	defer func() {
		if err == nil {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Error().Err(rbErr).Msg("rollback failed")
		}
		s.log.Warn().Str("code", string(ir.CodeOf(err))).Err(err).Msg("transaction rolled back")
	}()

	if err = fn(&Tx{s: s, tx: sqlTx}); err != nil {
		return classify(err)
	}
	if err = sqlTx.Commit(); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Exec compiles and runs stmt, returning the number of affected rows.
func (t *Tx) Exec(ctx context.Context, stmt queryir.Statement) (int64, error) {
	query, args, err := t.s.compiler.Compile(stmt)
	if err != nil {
		return 0, err
	}
	t.s.log.Debug().Str("sql", query).Int("args", len(args)).Msg("exec")

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Not every driver reports affected rows.
		return 0, nil
	}
	return n, nil
}

// QueryStrings runs a one-column select. NULL values are skipped.
func (t *Tx) QueryStrings(ctx context.Context, sel queryir.Select) ([]string, error) {
	rows, err := t.QueryRows(ctx, sel)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) != 1 {
			return nil, fmt.Errorf("expected one column, got %d", len(row))
		}
		switch v := row[0].(type) {
		case nil:
		case string:
			out = append(out, v)
		case []byte:
			out = append(out, string(v))
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out, nil
}

// QueryRows compiles and runs sel, returning raw scanned values in column
// order. []byte values are copied, so they stay valid after the rows close.
func (t *Tx) QueryRows(ctx context.Context, sel queryir.Select) ([][]any, error) {
	query, args, err := t.s.compiler.Compile(sel)
	if err != nil {
		return nil, err
	}
	t.s.log.Debug().Str("sql", query).Int("args", len(args)).Msg("query")

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

// queryInt runs a select returning a single integer, such as a count.
func (t *Tx) queryInt(ctx context.Context, sel queryir.Select) (int64, error) {
	rows, err := t.QueryRows(ctx, sel)
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 || len(rows[0]) != 1 {
		return 0, fmt.Errorf("expected a single value")
	}
	v, err := Column{Name: "count", Type: TypeInt}.Decode(rows[0][0])
	if err != nil {
		return 0, err
	}
	n, _ := v.(int64)
	return n, nil
}

// Resource returns the CRUD driver for kind bound to this transaction.
func (t *Tx) Resource(kind ir.Kind) *TxDriver {
	return &TxDriver{tx: t, kind: kind, res: resources[kind]}
}
