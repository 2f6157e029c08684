package jsondoc

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles JSON documents. Content is pretty-printed rather
// than flattened: the per-line structure gives the chunker newline
// boundaries to snap to.
type Normaliser struct{}

// New creates a new JSON normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".json"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Format-specific, above the plaintext fallback
}

// Normalise pretty-prints a JSON document with two-space indentation.
// Input that does not parse is kept verbatim.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content := prettyPrint(raw.Content)

	doc := domain.Document{
		SourceID: raw.SourceID,
		Path:     raw.Path,
		Title:    filepath.Base(raw.Path),
		Format:   raw.Format,
		Content:  content,
		Metadata: copyMetadata(raw.Metadata),
	}

	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["format"] = "json"

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// prettyPrint reindents JSON without escaping non-ASCII or HTML
// characters. Unparseable input falls back to the raw text.
func prettyPrint(raw []byte) string {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return string(raw)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return string(raw)
	}

	// Encode appends a trailing newline
	return strings.TrimRight(buf.String(), "\n")
}

// copyMetadata creates a shallow copy of metadata.
func copyMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
