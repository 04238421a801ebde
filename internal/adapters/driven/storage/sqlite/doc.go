// Package sqlite provides the SQLite-backed vector store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. One database file holds any number of
// named collections; the knowledge base and the agent memory each use their own file:
//
//   - VectorStore: collections of (embedding, text, metadata) records with
//     cosine nearest-neighbour search and JSON metadata equality filters
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// Databases live in paths.data_dir (default ./data) as vectors.db and memory.db.
//
// # Thread Safety
//
// All operations are safe for concurrent use within one process. The store is
// a single-writer resource across processes.
package sqlite
