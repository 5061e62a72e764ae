// Package database is the SQLite reference store of the pipeline.
//
// It keeps one metadata record per source file and the derived instances
// generated from it:
//   - media_metadata holds the full record as JSON plus a few columns for
//     querying (type, MIME type, size, capture time, md5)
//   - derived_instances holds one row per transcoded rendition or thumbnail
//
// Instance rows are inserted and deleted but never updated; a redo deletes
// the old row before a new one is saved. The database uses WAL mode so
// concurrent pipeline workers can read while one writes.
package database
