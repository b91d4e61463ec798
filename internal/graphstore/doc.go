// Package graphstore provides a SQLite-backed reference implementation of
// the graph storage API the reconciliation engine persists through.
//
// The store keeps:
//   - Entity types: registered schemas, keyed by versioned URL
//   - Entities: property bags stored as canonical JSON, with optional link data
//   - Relationships: access relationships attached to each created entity
//
// # Critical Patterns
//
// Deterministic query results:
//   - All entity queries end in ORDER BY seq ASC, entity_uuid ASC COLLATE BINARY
//   - Property comparisons run over canonical JSON (see internal/filtersql)
//
// Archived entities stay queryable by id but never match filters that ask
// for archived = false, which is how duplicate detection skips them.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package graphstore
