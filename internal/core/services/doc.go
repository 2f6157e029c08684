// Package services implements the driving port interfaces.
// Services contain the core business logic of the knowledge base:
// ingestion, retrieval, reranking, source management, document
// inspection and settings. They orchestrate calls to driven ports
// (adapters) and never touch infrastructure directly.
package services
