package domain

import "time"

// VectorRecord is a persisted (id, content, metadata, embedding) tuple.
// Every record in a collection shares one embedding dimension, fixed
// when the embedding gateway is initialised.
type VectorRecord struct {
	// ID is the globally unique identifier. Generated (UUID v4) by the
	// store when records are added without one.
	ID string

	// Content is the chunk text.
	Content string

	// Metadata holds scalar provenance values. Structured values are
	// serialised to JSON strings at the store boundary and restored
	// on read.
	Metadata map[string]any

	// Embedding is the vector representation. Fixed dimension per
	// collection.
	Embedding []float32

	// CreatedAt is when the record was first stored.
	CreatedAt time.Time

	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time
}

// VectorHit is a single nearest-neighbour result.
type VectorHit struct {
	// ID identifies the matched record.
	ID string

	// Content is the matched record's text.
	Content string

	// Metadata is the matched record's metadata, restored from
	// storage form.
	Metadata map[string]any

	// Distance is the cosine distance to the query embedding.
	// Hits are ordered ascending; similarity is 1 - Distance.
	Distance float64
}
