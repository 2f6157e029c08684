// Package sqlite provides a unified SQLite-based implementation of the
// storage ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation
// that requires no CGO, enabling easy cross-compilation. It implements
// multiple store interfaces through a single database connection:
//
//   - VectorStore: chunk records with embeddings and similarity search
//   - SourceStore: knowledge source registrations
//
// Embeddings are stored as little-endian float32 blobs. Similarity
// queries scan the full record set and rank by exact cosine distance;
// there is no approximate index.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in
// the migrations/ directory. Each migration is a pair of .up.sql and
// .down.sql files; an up migration records its own version in
// schema_migrations.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode.
package sqlite
