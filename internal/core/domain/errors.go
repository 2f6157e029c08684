package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown normaliser or provider type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrConfiguration indicates an invalid pipeline or provider configuration.
	// Raised at construction time, never mid-operation.
	ErrConfiguration = errors.New("invalid configuration")

	// Pipeline stage errors. Services wrap provider failures in these so
	// callers can match on the failing stage with errors.Is.

	// ErrEmbedding indicates the embedding provider failed or is not configured.
	// Semantic retrieval is unavailable without embeddings.
	ErrEmbedding = errors.New("embedding failed")

	// ErrReranking indicates the reranking provider failed.
	ErrReranking = errors.New("reranking failed")

	// ErrVectorStore indicates a vector store read or write failed.
	ErrVectorStore = errors.New("vector store failure")

	// ErrKnowledge indicates a knowledge build or query failed above the
	// provider level, e.g. an unreadable source directory.
	ErrKnowledge = errors.New("knowledge operation failed")

	// Source errors.

	// ErrSourceInactive indicates the source is registered but disabled.
	ErrSourceInactive = errors.New("source inactive")

	// ErrPathNotDirectory indicates a source path exists but is not a directory.
	ErrPathNotDirectory = errors.New("path is not a directory")

	// ErrRateLimited indicates the provider API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
