// Package core defines the shared language of sysmlsql.
//
// This package contains:
//   - Domain entities (Element, Relation, ExtendedProperty)
//   - The tagged JSON value union and the ordered attribute mapping
//   - Store-wide names (table names, the @id primary key, polymorphic properties)
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
