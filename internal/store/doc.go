// Package store makes the relational schema behave like a document store.
//
// Each resource kind has one primary table plus rows in the shared
// entity-relation tables (tags, search terms, media) and in the relation
// tables it owns. A Driver exposes the document contract for one kind:
//
//	Upsert(ctx, doc, searchTerms...) (Document, error)
//	Get(ctx, idOrHandle, expand...) (Document, error)
//	Remove(ctx, idOrHandle) error
//	List(ctx, *query.ApiQuery) ([]Document, error)
//	Count(ctx, *query.ApiQuery) (int, error)
//
// Every call runs in exactly one transaction. Callers that need several
// calls to commit together use Store.InTx and Tx.Resource instead.
//
// # Write order
//
// Upsert replaces, in this order: projection rows (tags, search terms,
// media), owned relation rows, the images referenced by media, and finally
// the primary row (delete then insert). Discounts additionally re-annotate
// every product they apply to; products pick up the annotations of every
// active automatic discount that matches them.
//
// # Database configuration
//
//   - SQLite: WAL journal, busy_timeout=5000, foreign_keys=ON, one connection
//   - PostgreSQL and MySQL: pool size from Options.MaxOpenConns
//
// The schema for each dialect is embedded and applied idempotently by Open.
package store
