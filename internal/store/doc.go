// Package store provides SQLite-backed storage for conformance fixtures.
//
// A fixture dataset describes the entities a test run created on the
// service under test:
//   - Tracked kinds: entity kinds whose full membership the dataset knows
//   - Entities: (kind, id) pairs with their properties as canonical JSON
//   - Links: relations between two stored entities
//
// Snapshot materializes a dataset as an oracle.Fixtures, the cardinality
// oracle used by the validator.
//
// # Ordering
//
// Every read orders by seq, the insertion sequence, so snapshots and
// entity listings are identical across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Links must join stored entities
package store
