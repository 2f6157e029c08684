// Package normalisers provides implementations of the Normaliser interface
// for the supported document formats. Each normaliser knows how to turn
// one family of file extensions into retrieval-ready plain text.
//
// Normalisers are registered with the Registry at startup; the registry
// dispatches on file extension and picks the highest-priority match.
package normalisers
