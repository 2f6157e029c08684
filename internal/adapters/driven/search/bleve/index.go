package bleve

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Index wraps a bleve index behind the KeywordIndex port.
type Index struct {
	mu    sync.RWMutex
	path  string // empty for in-memory
	index bleve.Index
}

var _ driven.KeywordIndex = (*Index)(nil)

// indexedDocument is the shape stored in the index.
type indexedDocument struct {
	Content string `json:"content"`
}

// NewMemOnly creates an in-memory index.
func NewMemOnly() (*Index, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating index: %w", err)
	}
	return &Index{index: index}, nil
}

// New opens the index at path, creating it when absent.
func New(path string) (*Index, error) {
	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	return &Index{path: path, index: index}, nil
}

// Index adds or updates a document in the index.
func (i *Index) Index(_ context.Context, id, content string) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if err := i.index.Index(id, indexedDocument{Content: content}); err != nil {
		return fmt.Errorf("indexing document: %w", err)
	}
	return nil
}

// Delete removes a document from the index, ignoring unknown IDs.
func (i *Index) Delete(_ context.Context, id string) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if err := i.index.Delete(id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// Search performs a keyword search and returns matching IDs with
// scores, best first.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]driven.KeywordHit, error) {
	if limit <= 0 {
		return nil, nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	request := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), limit, 0, false)
	result, err := i.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	hits := make([]driven.KeywordHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, driven.KeywordHit{ID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// Clear removes every document by rebuilding the index.
func (i *Index) Clear(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.index.Close(); err != nil {
		return fmt.Errorf("closing index: %w", err)
	}

	var (
		index bleve.Index
		err   error
	)
	if i.path == "" {
		index, err = bleve.NewMemOnly(bleve.NewIndexMapping())
	} else {
		if err := os.RemoveAll(i.path); err != nil {
			return fmt.Errorf("removing index: %w", err)
		}
		index, err = bleve.New(i.path, bleve.NewIndexMapping())
	}
	if err != nil {
		return fmt.Errorf("recreating index: %w", err)
	}

	i.index = index
	return nil
}

// Close releases the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}
