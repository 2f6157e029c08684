// Package connectors provides implementations of the document source
// ports. Each connector knows how to read and watch documents from a
// specific source type; the filesystem connector is the default.
package connectors
