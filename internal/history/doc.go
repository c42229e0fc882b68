// Package history keeps a local SQLite archive of conversations and
// their messages.
//
// The archive is written opportunistically by the session layer as turns
// finish and read back for browsing, resuming, and export. It is a copy
// of what the backend already holds, so every write failure is safe to
// log and ignore.
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC 3339 UTC strings. ErrNotFound is returned
// when a requested conversation does not exist.
package history
