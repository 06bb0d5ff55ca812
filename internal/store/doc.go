// Package store provides SQLite-backed storage for schemaless records.
//
// Records live in named tables and carry arbitrary typed fields, including
// growable ordered lists. Mutations are made in memory on *Record values and
// become durable only when Sync is called.
//
// # Sync semantics
//
//   - Sync writes every dirty record in one transaction
//   - A dirty record whose row has since been deleted, by another
//     connection or through DeleteRecord, is reported with a *MissingError
//     wrapping ErrNotFound (remote deletion) and dropped from the local
//     cache; the rest of the transaction still commits
//   - A clean record whose row disappears stays cached as a tombstone until
//     it is written again
//   - Clean cached records are refreshed from the database, so changes made
//     by other connections become visible after Sync
//
// # Locking
//
// Store guards its own cache, but *Record and *List values are not
// synchronized. Callers sharing a Store across goroutines wrap it in a
// Locked and hold its lock across "mutate fields" + "Sync" pairs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
