// Package cache memoizes build outcomes.
//
// A Store maps an exact key (the command line followed by the verbatim
// project file contents) to an encoded Outcome. Entries are never replaced or
// expired. Backends:
//
//   - SQLiteStore: the default, a file under the XDG cache directory.
//   - BoltStore: a single bbolt file.
//   - PostgresStore: a table shared between hosts.
//   - MemoryStore: process-local, for tests and one-off runs.
package cache
