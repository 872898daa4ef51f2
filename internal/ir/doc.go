// Package ir provides the shared core types for kiosk.
//
// All other internal packages import ir; ir imports nothing internal. This
// keeps the document model, resource kinds and the storage error taxonomy
// in one foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Documents are schemaless maps; the column codec in store decides types
//   - Every primary id is "<prefix>_<suffix>", the prefix routes to a Kind
//   - Storefront relation contexts are a closed enum, never free strings
//   - All failures surface as *StorageError with a stable Code
package ir
