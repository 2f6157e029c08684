package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Ensure SourceStore implements the interface.
var _ driven.SourceStore = (*SourceStore)(nil)

// SourceStore is an in-memory implementation of driven.SourceStore.
type SourceStore struct {
	mu      sync.RWMutex
	sources map[string]domain.KnowledgeSource
	order   []string
}

// NewSourceStore creates a new in-memory source store.
func NewSourceStore() *SourceStore {
	return &SourceStore{
		sources: make(map[string]domain.KnowledgeSource),
	}
}

// Save stores or updates a source.
func (s *SourceStore) Save(_ context.Context, source domain.KnowledgeSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sources[source.ID]; !exists {
		s.order = append(s.order, source.ID)
	}
	s.sources[source.ID] = source
	return nil
}

// Get retrieves a source by ID.
func (s *SourceStore) Get(_ context.Context, id string) (*domain.KnowledgeSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	source, ok := s.sources[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &source, nil
}

// GetByName retrieves a source by its unique name.
func (s *SourceStore) GetByName(_ context.Context, name string) (*domain.KnowledgeSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, source := range s.sources {
		if source.Name == name {
			return &source, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Delete removes a source.
func (s *SourceStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sources, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns sources newest first.
func (s *SourceStore) List(_ context.Context, status domain.SourceStatus, limit, offset int) ([]domain.KnowledgeSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Reverse insertion order breaks CreatedAt ties deterministically.
	matched := make([]domain.KnowledgeSource, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		source := s.sources[s.order[i]]
		if status != "" && source.Status != status {
			continue
		}
		matched = append(matched, source)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset > 0 {
		if offset >= len(matched) {
			return nil, nil
		}
		matched = matched[offset:]
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Count returns the number of sources with the given status.
func (s *SourceStore) Count(_ context.Context, status domain.SourceStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if status == "" {
		return len(s.sources), nil
	}
	count := 0
	for _, source := range s.sources {
		if source.Status == status {
			count++
		}
	}
	return count, nil
}

// Search returns sources whose name or description contains the term,
// case-insensitively, ordered by name.
func (s *SourceStore) Search(_ context.Context, term string) ([]domain.KnowledgeSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(term)
	var matched []domain.KnowledgeSource
	for _, id := range s.order {
		source := s.sources[id]
		if strings.Contains(strings.ToLower(source.Name), needle) ||
			strings.Contains(strings.ToLower(source.Description), needle) {
			matched = append(matched, source)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Name < matched[j].Name
	})
	return matched, nil
}
