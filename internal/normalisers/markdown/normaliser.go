package markdown

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".md"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Format-specific, above the plaintext fallback
}

// Normalise converts a markdown document to retrieval text. Code
// blocks, images and links are removed rather than unwrapped, and
// whitespace collapses to single spaces, so chunk boundaries for
// markdown come from sentence punctuation.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	rawContent := string(raw.Content)

	// Extract title from first heading or filename
	title := extractMarkdownTitle(rawContent, raw.Path)

	content := stripMarkdown(rawContent)

	doc := domain.Document{
		SourceID: raw.SourceID,
		Path:     raw.Path,
		Title:    title,
		Format:   raw.Format,
		Content:  content,
		Metadata: copyMetadata(raw.Metadata),
	}

	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["format"] = "markdown"

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// extractMarkdownTitle extracts a title from the markdown content or falls back to filename.
func extractMarkdownTitle(content, path string) string {
	// Try to find first H1 heading (# Title)
	lines := strings.Split(content, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}

	// Fall back to filename
	filename := filepath.Base(path)
	ext := filepath.Ext(filename)
	if ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

var (
	codeBlockRe  = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`[^`]+`")
	imageRe      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkRe       = regexp.MustCompile(`\[[^\]]*\]\([^)]*\)`)
	autolinkRe   = regexp.MustCompile(`<https?://[^>]*>`)
	headingRe    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	blockquoteRe = regexp.MustCompile(`(?m)^>\s*`)
	hrRe         = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	listMarkerRe = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numListRe    = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// stripMarkdown reduces markdown to plain retrieval text.
// Code, images and links are dropped wholesale; structural markup is
// unwrapped; whitespace runs collapse to single spaces.
func stripMarkdown(content string) string {
	// Fenced blocks first so their contents never match later rules
	content = codeBlockRe.ReplaceAllString(content, "")
	content = inlineCodeRe.ReplaceAllString(content, "")

	// Images before links: an image is a link with a bang
	content = imageRe.ReplaceAllString(content, "")
	content = linkRe.ReplaceAllString(content, "")
	content = autolinkRe.ReplaceAllString(content, "")

	content = headingRe.ReplaceAllString(content, "")
	content = blockquoteRe.ReplaceAllString(content, "")
	content = hrRe.ReplaceAllString(content, "")
	content = listMarkerRe.ReplaceAllString(content, "")
	content = numListRe.ReplaceAllString(content, "")

	// Emphasis markers
	content = strings.ReplaceAll(content, "**", "")
	content = strings.ReplaceAll(content, "__", "")
	content = strings.ReplaceAll(content, "*", "")
	content = strings.ReplaceAll(content, "_", " ")

	content = whitespaceRe.ReplaceAllString(content, " ")

	return strings.TrimSpace(content)
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
