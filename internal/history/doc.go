// Package history persists batch runs and their per-file results in SQLite.
//
// The database lives at <state_dir>/history.db. The schema is versioned; an
// incompatible database is rejected with ErrSchemaMismatch rather than
// migrated, since its contents are only an audit trail.
package history
