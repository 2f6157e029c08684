package domain

// RawDocument represents opaque bytes read from a knowledge source.
// It is the scanner's output before normalisation.
type RawDocument struct {
	// SourceID links to the KnowledgeSource that produced this document.
	SourceID string

	// Path is the absolute path of the file.
	Path string

	// Format is the lowercased file extension including the dot (".md").
	Format string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains scanner-specific key-value pairs.
	Metadata map[string]any
}

// ChangeType represents the type of document change.
type ChangeType int

const (
	// ChangeCreated indicates a new document.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified document.
	ChangeUpdated

	// ChangeDeleted indicates a removed document.
	ChangeDeleted
)

// String returns the change type name for logging.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileChange represents a change event observed under a watched source
// path. Used by the watch operation to signal that a rebuild is due.
type FileChange struct {
	// Type is the kind of change.
	Type ChangeType

	// Path is the absolute path of the affected file.
	Path string

	// SourceID is the source whose tree contains the path.
	SourceID string
}
