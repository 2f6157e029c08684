package code

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-enry/go-enry/v2"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles source code documents. Comments and docstrings
// are stripped before chunking so retrieval matches on identifiers
// and string literals.
type Normaliser struct{}

// New creates a new source code normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".py", ".js"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Format-specific, above the plaintext fallback
}

var (
	hashCommentRe    = regexp.MustCompile(`(?m)#[^\n]*`)
	slashCommentRe   = regexp.MustCompile(`(?m)//[^\n]*`)
	tripleDoubleRe   = regexp.MustCompile(`(?s)""".*?"""`)
	tripleSingleRe   = regexp.MustCompile(`(?s)'''.*?'''`)
	blockCommentRe   = regexp.MustCompile(`(?s)/\*.*?\*/`)
	codeWhitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalise converts a source file to retrieval text. Line comments
// are removed first, then block comments and docstrings, then
// whitespace collapses to single spaces. The detected language is
// recorded in metadata.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content := string(raw.Content)

	switch strings.ToLower(raw.Format) {
	case ".py":
		content = hashCommentRe.ReplaceAllString(content, "")
		content = tripleDoubleRe.ReplaceAllString(content, "")
		content = tripleSingleRe.ReplaceAllString(content, "")
	case ".js":
		content = slashCommentRe.ReplaceAllString(content, "")
		content = blockCommentRe.ReplaceAllString(content, "")
	}

	content = strings.TrimSpace(codeWhitespaceRe.ReplaceAllString(content, " "))

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
	doc.Metadata["format"] = "code"
	if lang := enry.GetLanguage(filepath.Base(raw.Path), raw.Content); lang != "" {
		doc.Metadata[domain.MetaLanguage] = lang
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
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
