// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentScanner: Reads raw documents from a source directory
//   - Normaliser: Transforms raw documents into normalised text
//   - NormaliserRegistry: Selects the appropriate normaliser
//   - PostProcessorPipeline: Turns normalised documents into chunks
//   - EmbeddingService: Generates vector embeddings
//   - VectorStore: Vector record persistence and similarity search
//   - SourceStore: Knowledge source persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - RelevanceScorer: Cross-encoder scoring. Without it, reranking is
//     disabled and searches return retrieval order.
//   - KeywordIndex: Full-text index. Without it, keyword retrieval scans
//     the vector store with word-boundary counting.
//   - SourceWatcher: Filesystem change notifications. Without it, the
//     watch operation is unavailable.
//   - TokenCounter: Model token counting. Without it, document stats
//     report zero token counts.
//   - AIConfigValidator: Provider reachability checks. Without it,
//     settings validation accepts the stored configuration as-is.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
