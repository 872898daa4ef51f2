// Package harness runs YAML scenarios against the resource CRUD contract.
//
// A scenario is a list of setup steps, which must all succeed, followed by
// the steps under test:
//
//	name: discount_eligibility
//	description: "A matching product gains the discount tokens"
//	setup:
//	  - op: upsert
//	    kind: product
//	    doc: {handle: shirt, tags: [apparel], price: 20}
//	steps:
//	  - op: upsert
//	    kind: discount
//	    doc: {handle: ten-off, active: true, ...}
//	  - op: get
//	    kind: product
//	    id: shirt
//	    expand: [search]
//	    expect:
//	      tags_include: [discount_ten-off]
//	  - op: get
//	    kind: product
//	    id: missing
//	    expect: {error: NOT_FOUND}
//
// Steps are upsert, remove, get, list and count. Each produces one trace
// event. With RunIsolated the store is a fresh in-memory SQLite database
// with a deterministic clock and sequential ids, so traces are stable and
// can be compared against golden files.
package harness
