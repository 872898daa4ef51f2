// Package queryir defines the dialect-neutral SQL intermediate representation.
//
// Resource drivers, the cursor compiler, the VQL compiler and the discount
// compiler all build queryir trees; querysql renders them for one dialect.
// Building trees instead of strings keeps identifiers validated and every
// literal parameterised, whatever the backend.
//
// The Statement, Expr and Predicate interfaces are sealed with marker
// methods so compilers can use exhaustive type switches.
package queryir
