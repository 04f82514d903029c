// Package repositories implements SQLite persistence for backup history.
//
// Key Implementations:
//   - [SnapshotRepository] : One row per backup run with status tracking, plus per-collection record counts
//
// Rows are keyed by UUIDs from [shared.GenerateID] and ordered by start time.
// Writing history never affects a snapshot file: callers treat repository errors as warnings.
package repositories
