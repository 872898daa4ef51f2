package ir

import (
	"errors"
	"fmt"
)

// StorageError is the single error type returned by storage operations.
//
// Callers branch on Code rather than on message text:
//   - ConstraintViolation: unique/foreign key/check constraint rejected a write
//   - NotFound: get/remove addressed an absent row
//   - TransactionAborted: the transaction rolled back for any other reason
//   - DialectUnsupported: unknown dialect tag at startup
//   - QueryCompile: a query, cursor, VQL string or SQL fragment could not compile
//   - ValidationFailed: a document was rejected before touching the database
type StorageError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the operation that failed (e.g. "upsert", "list").
	Op string

	// Resource is the resource kind involved, if any.
	Resource Kind

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes storage errors.
type ErrorCode string

const (
	// CodeConstraintViolation indicates the database rejected a write on a constraint.
	CodeConstraintViolation ErrorCode = "CONSTRAINT_VIOLATION"

	// CodeNotFound indicates the addressed row does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeTransactionAborted indicates the enclosing transaction was rolled back.
	CodeTransactionAborted ErrorCode = "TRANSACTION_ABORTED"

	// CodeDialectUnsupported indicates an unknown dialect tag.
	CodeDialectUnsupported ErrorCode = "DIALECT_UNSUPPORTED"

	// CodeQueryCompile indicates a query could not be compiled to SQL.
	CodeQueryCompile ErrorCode = "QUERY_COMPILE_ERROR"

	// CodeValidationFailed indicates a document failed schema validation.
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
)

// Sentinels for errors.Is. They match any StorageError with the same Code.
var (
	ErrConstraintViolation = &StorageError{Code: CodeConstraintViolation}
	ErrNotFound            = &StorageError{Code: CodeNotFound}
	ErrTransactionAborted  = &StorageError{Code: CodeTransactionAborted}
	ErrDialectUnsupported  = &StorageError{Code: CodeDialectUnsupported}
	ErrQueryCompile        = &StorageError{Code: CodeQueryCompile}
	ErrValidationFailed    = &StorageError{Code: CodeValidationFailed}
)

// Error implements the error interface.
func (e *StorageError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	switch {
	case e.Op != "" && e.Resource != "":
		return fmt.Sprintf("%s: %s %s: %s", e.Code, e.Op, e.Resource, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a StorageError with the same Code.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the Code of the first StorageError in err's chain,
// or the empty code if there is none.
func CodeOf(err error) ErrorCode {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsNotFound returns true if err is a NotFound storage error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsConstraintViolation returns true if err is a ConstraintViolation storage error.
func IsConstraintViolation(err error) bool {
	return CodeOf(err) == CodeConstraintViolation
}

// IsTransactionAborted returns true if err is a TransactionAborted storage error.
func IsTransactionAborted(err error) bool {
	return CodeOf(err) == CodeTransactionAborted
}

// IsDialectUnsupported returns true if err is a DialectUnsupported storage error.
func IsDialectUnsupported(err error) bool {
	return CodeOf(err) == CodeDialectUnsupported
}

// IsQueryCompileError returns true if err is a QueryCompile storage error.
func IsQueryCompileError(err error) bool {
	return CodeOf(err) == CodeQueryCompile
}

// IsValidationFailed returns true if err is a ValidationFailed storage error.
func IsValidationFailed(err error) bool {
	return CodeOf(err) == CodeValidationFailed
}

// NewNotFoundError creates a NotFound error for the given resource and key.
func NewNotFoundError(op string, kind Kind, idOrHandle string) *StorageError {
	return &StorageError{
		Code:     CodeNotFound,
		Op:       op,
		Resource: kind,
		Message:  fmt.Sprintf("no row matches %q", idOrHandle),
	}
}

// NewQueryCompileError creates a QueryCompile error.
func NewQueryCompileError(format string, args ...any) *StorageError {
	return &StorageError{
		Code:    CodeQueryCompile,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewDialectUnsupportedError creates a DialectUnsupported error for tag.
func NewDialectUnsupportedError(tag string) *StorageError {
	return &StorageError{
		Code:    CodeDialectUnsupported,
		Message: fmt.Sprintf("unsupported dialect %q", tag),
	}
}

// NewValidationError creates a ValidationFailed error wrapping cause.
func NewValidationError(kind Kind, cause error) *StorageError {
	return &StorageError{
		Code:     CodeValidationFailed,
		Op:       "validate",
		Resource: kind,
		Err:      cause,
	}
}

// WithOp returns err annotated with op and kind when it is a StorageError
// that carries neither yet. Other errors are returned unchanged.
func WithOp(err error, op string, kind Kind) error {
	var se *StorageError
	if !errors.As(err, &se) {
		return err
	}
	if se.Op != "" && se.Resource != "" {
		return err
	}
	out := *se
	if out.Op == "" {
		out.Op = op
	}
	if out.Resource == "" {
		out.Resource = kind
	}
	return &out
}
