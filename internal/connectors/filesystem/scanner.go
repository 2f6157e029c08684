// Package filesystem reads and watches knowledge sources on the local
// filesystem. The scanner feeds the ingestion pipeline; the watcher
// drives incremental rebuilds.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// DefaultExtensions lists the file types the default normaliser
// registry can ingest.
var DefaultExtensions = []string{".md", ".txt", ".py", ".js", ".json"}

// builtinExcludes are ignore patterns applied to every scan, on top of
// any .gitignore found in the scanned root.
var builtinExcludes = []string{
	".git",
	".hg",
	".svn",
	"node_modules",
	"vendor",
	"dist",
	"build",
	"target",
	"__pycache__",
	".venv",
	"venv",
	".idea",
	".vscode",
	".DS_Store",
	"*.min.js",
}

// Scanner reads supported documents from local directories. Ignore
// rules follow gitignore semantics: the built-in exclusions plus the
// scanned root's own .gitignore when it has one.
type Scanner struct {
	extensions map[string]struct{}
}

// Ensure Scanner implements the interface.
var _ driven.DocumentScanner = (*Scanner)(nil)

// NewScanner creates a scanner for the given file extensions. Called
// with no arguments it falls back to DefaultExtensions.
func NewScanner(extensions ...string) *Scanner {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return &Scanner{extensions: set}
}

// Supported reports whether the path's extension can be ingested.
func (s *Scanner) Supported(path string) bool {
	_, ok := s.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Scan walks the source path and reads every supported document in
// encounter order. The first unreadable file aborts the scan.
func (s *Scanner) Scan(ctx context.Context, source domain.KnowledgeSource, recursive bool) ([]domain.RawDocument, error) {
	paths, err := s.collect(source.Path, recursive)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.RawDocument, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		docs = append(docs, domain.RawDocument{
			SourceID: source.ID,
			Path:     path,
			Format:   strings.ToLower(filepath.Ext(path)),
			Content:  content,
			Metadata: map[string]any{
				"size":        info.Size(),
				"modified_at": info.ModTime().UTC().Format(time.RFC3339),
			},
		})
	}
	return docs, nil
}

// CountSupported counts the supported files under a root without
// reading them.
func (s *Scanner) CountSupported(root string, recursive bool) (int, error) {
	paths, err := s.collect(root, recursive)
	if err != nil {
		return 0, err
	}
	return len(paths), nil
}

// collect gathers the supported, non-ignored file paths under root.
// Non-recursive collection stops at the top level.
func (s *Scanner) collect(root string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrPathNotDirectory, root)
	}

	ignore := loadIgnoreRules(root)

	var paths []string
	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", root, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if isHidden(name) || ignore.MatchesPath(name) || !s.Supported(name) {
				continue
			}
			paths = append(paths, filepath.Join(root, name))
		}
		return paths, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if isHidden(rel) || ignore.MatchesPath(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(rel) || ignore.MatchesPath(rel) || !s.Supported(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return paths, nil
}

// loadIgnoreRules compiles the built-in exclusions plus the root's
// .gitignore when present.
func loadIgnoreRules(root string) *gitignore.GitIgnore {
	patterns := make([]string, 0, len(builtinExcludes))
	patterns = append(patterns, builtinExcludes...)

	if content, err := os.ReadFile(filepath.Join(root, ".gitignore")); err == nil {
		for _, line := range strings.Split(string(content), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			patterns = append(patterns, line)
		}
	}

	return gitignore.CompileIgnoreLines(patterns...)
}

// isHidden reports whether any component of the path starts with a
// dot. The "." and ".." components do not count as hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
