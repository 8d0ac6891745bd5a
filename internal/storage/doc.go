package storage

// Package storage is the persistent subscriber directory plus the
// dispatch log consumed by /stats.
//
// Backends:
//   - SQLite (default): durable, single atomic upsert per mutation
//   - memory: for tests and throwaway runs
