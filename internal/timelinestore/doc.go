// Package timelinestore persists the working timeline of a data directory in
// SQLite.
//
// The Store keeps the full entry list in insertion order, along with a small
// key/value table for workspace metadata such as the last shareable cloud
// link. It is a working copy, not an archive: schema changes bump the version
// in schema.go and users delete timeline.db to adopt the new schema (export
// first if the entries matter).
//
// Local previews are never written. Entries persisted mid-flight are repaired
// by ResetInterrupted when a new process opens the workspace.
package timelinestore
