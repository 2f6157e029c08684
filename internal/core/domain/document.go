package domain

// Document represents a normalised document ready for chunking.
// It is the canonical representation after format normalisation.
// Documents are transient: they are read once per ingestion pass
// and never persisted.
type Document struct {
	// SourceID links to the KnowledgeSource that produced this document.
	SourceID string

	// Path is the absolute path of the underlying file.
	Path string

	// Title is the human-readable title (first heading or filename).
	Title string

	// Format is the lowercased file extension including the dot (".md").
	Format string

	// Content is the full text after normalisation.
	Content string

	// Metadata contains format-specific key-value pairs,
	// e.g. the detected language for source code.
	Metadata map[string]any
}

// Chunk is a bounded span of normalised text, the unit of retrieval.
// Offsets are rune indexes into the normalised document content, so a
// chunk's position survives multi-byte text.
type Chunk struct {
	// Content is the trimmed text of this chunk.
	Content string

	// Index is the ordinal position within the document, counting
	// only emitted (non-empty) chunks.
	Index int

	// Start is the inclusive rune offset into the document content.
	Start int

	// End is the exclusive rune offset. Always > Start.
	End int

	// FilePath is the absolute path of the originating file.
	FilePath string

	// FileName is the base name of the originating file.
	FileName string

	// Metadata carries provenance. Every stored chunk has at least
	// file_path and chunk_index, which together identify it for
	// idempotent re-ingestion.
	Metadata map[string]any
}

// Metadata keys attached to chunks during ingestion. Stores filter on
// these, so they are fixed strings rather than ad-hoc literals.
const (
	MetaFilePath   = "file_path"
	MetaFileName   = "file_name"
	MetaChunkIndex = "chunk_index"
	MetaSourceID   = "source_id"
	MetaSourceName = "source_name"
	MetaLanguage   = "language"
	MetaTitle      = "title"
)

// DocumentStats summarises a directory of candidate documents before
// ingestion. Token counts use the cl100k_base encoding.
type DocumentStats struct {
	// TotalFiles is every regular file seen under the path.
	TotalFiles int

	// SupportedFiles is the subset with a supported extension.
	SupportedFiles int

	// UnsupportedFiles = TotalFiles - SupportedFiles.
	UnsupportedFiles int

	// FilesByExtension counts supported files per extension.
	FilesByExtension map[string]int

	// TotalChars is the total rune count of supported files.
	TotalChars int

	// TotalTokens is the total token count of supported files.
	TotalTokens int

	// EstimatedChunks is the chunk count the configured chunker
	// would produce for the supported files.
	EstimatedChunks int

	// AvgChunkSize is the mean chunk content length in runes, 0 when
	// no chunks would be produced.
	AvgChunkSize int
}
