// Package store provides SQLite-backed durable storage for collection state.
//
// The store is a small key-value table. Each collection owns two keys:
//   - data/<collection>: the last fetched snapshot;
//   - changes/<collection>: the pending change log.
//
// Values are RFC 8785 canonical JSON, so the same state always produces the
// same bytes and stored files diff cleanly. *Store implements
// engine.Persister.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
