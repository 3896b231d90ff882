// Package queue persists generation sessions and their songs in SQLite and
// exposes the lifecycle helpers the workflow scheduler drives.
//
// Song and session statuses follow fixed transition tables (transitions.go).
// Every status-changing mutation validates against those tables and returns
// ErrInvalidTransition without touching the row otherwise. Claims are
// conditional UPDATEs keyed on the expected prior status, so losing a race
// shows up as "not claimed" rather than an error; two claims for the same
// song can never both succeed.
//
// The database is the durable state of the system: the scheduler keeps only
// busy flags in memory, and startup recovery (RecoverFromRestart) returns songs
// abandoned by a crashed process to a resumable status.
//
// Schema changes bump schemaVersion in schema.go; users clear the database to
// adopt the new schema.
package queue
