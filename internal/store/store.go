package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/roach88/kiosk/internal/dialect"
	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/querysql"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Options selects the backend.
type Options struct {
	// Dialect is one of "sqlite", "postgres" or "mysql" (aliases accepted).
	Dialect string

	// DSN is handed to the driver unchanged: a file path for SQLite,
	// a connection URL or key/value string for PostgreSQL, a
	// go-sql-driver DSN for MySQL.
	DSN string

	// MaxOpenConns bounds the pool. Ignored for SQLite, which always uses
	// a single connection.
	MaxOpenConns int
}

// Validator checks a document before it is written.
type Validator interface {
	Validate(kind ir.Kind, doc ir.Document) error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock sets the clock used to stamp created_at and updated_at.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithIDGenerator sets the generator for ids missing from upserted documents.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithValidator makes every upsert validate its document first.
func WithValidator(v Validator) Option {
	return func(s *Store) { s.validator = v }
}

// Store is a handle on one database. It is safe for concurrent use.
type Store struct {
	db        *sql.DB
	dialect   dialect.Dialect
	compiler  *querysql.Compiler
	log       zerolog.Logger
	clock     Clock
	ids       IDGenerator
	validator Validator
}

// Open connects to the database described by o, applies pragmas and the
// embedded schema. It is idempotent: opening an initialized database
// changes nothing.
func Open(ctx context.Context, o Options, opts ...Option) (*Store, error) {
	d, err := dialect.ForName(o.Dialect)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.DriverName(), o.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if d.Name() == dialect.SQLite {
		// SQLite allows one writer at a time.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	} else if o.MaxOpenConns > 0 {
		db.SetMaxOpenConns(o.MaxOpenConns)
	}

	s := newStore(db, d, opts...)
	if err := s.ApplySchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.log.Debug().Str("dialect", d.Name()).Msg("store opened")
	return s, nil
}

// OpenDB wraps an existing pool. The schema is not applied; call
// ApplySchema when needed.
func OpenDB(db *sql.DB, d dialect.Dialect, opts ...Option) *Store {
	return newStore(db, d, opts...)
}

func newStore(db *sql.DB, d dialect.Dialect, opts ...Option) *Store {
	s := &Store{
		db:       db,
		dialect:  d,
		compiler: querysql.New(d),
		log:      zerolog.Nop(),
		clock:    SystemClock{},
		ids:      uuidIDs{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the dialect the store compiles for.
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

// ApplySchema runs the embedded schema for the store's dialect.
func (s *Store) ApplySchema(ctx context.Context) error {
	src, err := schemaFS.ReadFile("schema/" + s.dialect.Name() + ".sql")
	if err != nil {
		return ir.NewDialectUnsupportedError(s.dialect.Name())
	}
	for _, stmt := range splitStatements(string(src)) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// splitStatements splits a schema file on statement-terminating semicolons.
// Comment lines are dropped. The schema files never put a semicolon inside
// a literal.
func splitStatements(src string) []string {
	var b strings.Builder
	for _, line := range strings.Split(src, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	var out []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
