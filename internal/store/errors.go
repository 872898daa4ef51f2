package store

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/kiosk/internal/ir"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry   = 1062
	mysqlForeignKeyParent = 1451 // cannot delete or update a parent row
	mysqlForeignKeyChild  = 1452 // cannot add or update a child row
	mysqlCheckConstraint  = 3819
)

// pgIntegrityClass is the SQLSTATE class of integrity constraint violations.
const pgIntegrityClass = "23"

// classify maps an error raised inside a transaction to a StorageError.
// Errors that already carry a code keep it.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *ir.StorageError
	if errors.As(err, &se) {
		return err
	}
	if isConstraintError(err) {
		return &ir.StorageError{Code: ir.CodeConstraintViolation, Message: "constraint violated", Err: err}
	}
	msg := "transaction rolled back"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		msg = "transaction cancelled"
	}
	return &ir.StorageError{Code: ir.CodeTransactionAborted, Message: msg, Err: err}
}

// isConstraintError reports whether err came from a unique, foreign key,
// not null or check constraint in any supported driver.
func isConstraintError(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return string(pe.Code.Class()) == pgIntegrityClass
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry, mysqlForeignKeyParent, mysqlForeignKeyChild, mysqlCheckConstraint:
			return true
		}
		return false
	}

	var le sqlite3.Error
	if errors.As(err, &le) {
		return le.Code == sqlite3.ErrConstraint
	}

	// Drivers wrapped by database/sql proxies lose their concrete type.
	return containsAny(err.Error(),
		"UNIQUE constraint failed",
		"NOT NULL constraint failed",
		"FOREIGN KEY constraint failed",
		"CHECK constraint failed",
		"violates unique constraint",
		"violates foreign key constraint",
		"violates not-null constraint",
		"violates check constraint",
		"Error 1062",
		"Error 1451",
		"Error 1452",
		"Error 3819",
	)
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
