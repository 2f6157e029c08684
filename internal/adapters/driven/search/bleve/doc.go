// Package bleve adapts a bleve full-text index to the KeywordIndex
// port.
//
// The index is optional: retrieval falls back to store scanning when
// no index is configured. Documents are indexed under a single content
// field with the default mapping, and queries go through bleve's query
// string syntax. Clear rebuilds the index from scratch because bleve
// has no truncate operation.
package bleve
