// Package domain defines the core business entities for the knowledge base.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawDocument: Opaque bytes read from a knowledge source
//   - Document: A normalised document ready for chunking
//   - Chunk: A bounded span of normalised text, the unit of retrieval
//   - VectorRecord: A persisted (id, content, metadata, embedding) tuple
//   - KnowledgeSource: A registered, path-rooted corpus
//   - SearchResult / RerankedResult: Retrieval and reranking outputs
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
