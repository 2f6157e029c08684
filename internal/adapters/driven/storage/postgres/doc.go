// Package postgres provides PostgreSQL-backed storage using pgx and
// the pgvector extension.
//
// The package exposes a unified Store that implements both the
// VectorStore and SourceStore interfaces through accessor methods.
// Embeddings live in an untyped vector column and similarity queries
// rank with the <=> cosine distance operator, so every search is an
// exact scan regardless of dimension. Metadata is stored as JSONB and
// filtered with the @> containment operator, which compares numbers by
// value the same way the in-process scalar matcher does.
//
// # Schema
//
// The schema is created on startup with CREATE TABLE IF NOT EXISTS
// statements, including the vector extension itself. A BIGSERIAL seq
// column preserves insertion order across upserts.
package postgres
