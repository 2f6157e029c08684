package domain

import "time"

// SourceStatus is the lifecycle state of a knowledge source.
type SourceStatus string

const (
	// SourceActive sources participate in builds and retrieval.
	SourceActive SourceStatus = "active"

	// SourceInactive sources are registered but skipped. A source is
	// deactivated when its path stops validating.
	SourceInactive SourceStatus = "inactive"
)

// Valid reports whether the status is a known value.
func (s SourceStatus) Valid() bool {
	return s == SourceActive || s == SourceInactive
}

// KnowledgeSource represents a registered, path-rooted corpus.
// Deleting a source cascades to the vector records built from it.
type KnowledgeSource struct {
	// ID is the unique identifier for the source.
	ID string

	// Name is the unique human-readable name.
	Name string

	// Path is the directory the source's documents live under.
	Path string

	// Description is optional free text.
	Description string

	// Status is the lifecycle state.
	Status SourceStatus

	// CreatedAt is when the source was registered.
	CreatedAt time.Time

	// UpdatedAt is when the source was last modified.
	UpdatedAt time.Time
}

// SourceUpdate carries the mutable fields of a source. Nil fields are
// left unchanged.
type SourceUpdate struct {
	Name        *string
	Path        *string
	Description *string
}

// PathValidation reports whether a source path is usable.
type PathValidation struct {
	// Valid is true when the path exists and is a readable directory.
	Valid bool

	// Message explains a failed validation.
	Message string

	// FileCount is the number of supported files under the path.
	FileCount int
}

// SourceStats summarises the source registry.
type SourceStats struct {
	// Total is the number of registered sources.
	Total int

	// ByStatus counts sources per lifecycle state.
	ByStatus map[SourceStatus]int

	// ActiveFiles is the supported-file count across active sources.
	ActiveFiles int
}
