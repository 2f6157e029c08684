// Package memory provides in-memory implementations of the storage
// ports, used as the default backend in tests and throwaway setups.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/knowledge-core/internal/adapters/driven/storage/scalar"
	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore.
// Records keep their insertion order, which makes listing and
// equal-distance ranking deterministic.
type VectorStore struct {
	mu      sync.RWMutex
	records map[string]domain.VectorRecord
	order   []string
}

// NewVectorStore creates a new in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		records: make(map[string]domain.VectorRecord),
	}
}

// Add stores the given records and returns their IDs in input order.
func (s *VectorStore) Add(_ context.Context, records []domain.VectorRecord) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	ids := make([]string, 0, len(records))
	for _, record := range records {
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		record.UpdatedAt = now
		record.Metadata = scalar.Encode(record.Metadata)

		if _, exists := s.records[record.ID]; !exists {
			s.order = append(s.order, record.ID)
		}
		s.records[record.ID] = record
		ids = append(ids, record.ID)
	}
	return ids, nil
}

// Update overwrites fields of an existing record. Empty Content, nil
// Metadata and nil Embedding leave the stored values untouched.
func (s *VectorStore) Update(_ context.Context, record domain.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[record.ID]
	if !ok {
		return domain.ErrNotFound
	}

	if record.Content != "" {
		existing.Content = record.Content
	}
	if record.Metadata != nil {
		existing.Metadata = scalar.Encode(record.Metadata)
	}
	if record.Embedding != nil {
		existing.Embedding = record.Embedding
	}
	existing.UpdatedAt = time.Now().UTC()

	s.records[record.ID] = existing
	return nil
}

// Delete removes a record.
func (s *VectorStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return domain.ErrNotFound
	}
	s.remove(id)
	return nil
}

// DeleteMany removes the given records, ignoring unknown IDs.
func (s *VectorStore) DeleteMany(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			s.remove(id)
		}
	}
	return nil
}

// remove deletes a record and its order entry. Caller holds the lock.
func (s *VectorStore) remove(id string) {
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Search returns the k nearest records to the query embedding under
// the filter, ordered by ascending cosine distance. Equal distances
// keep insertion order.
func (s *VectorStore) Search(_ context.Context, embedding []float32, k int, filter map[string]any) ([]domain.VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 {
		return nil, nil
	}

	hits := make([]domain.VectorHit, 0, len(s.order))
	for _, id := range s.order {
		record := s.records[id]
		if record.Embedding == nil || !scalar.Matches(record.Metadata, filter) {
			continue
		}
		hits = append(hits, domain.VectorHit{
			ID:       record.ID,
			Content:  record.Content,
			Metadata: scalar.Decode(record.Metadata),
			Distance: cosineDistance(embedding, record.Embedding),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Get retrieves a record by ID.
func (s *VectorStore) Get(_ context.Context, id string) (*domain.VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	record.Metadata = scalar.Decode(record.Metadata)
	return &record, nil
}

// List returns records matching the filter in insertion order.
func (s *VectorStore) List(_ context.Context, filter map[string]any, limit, offset int) ([]domain.VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []domain.VectorRecord
	skipped := 0
	for _, id := range s.order {
		record := s.records[id]
		if !scalar.Matches(record.Metadata, filter) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		record.Metadata = scalar.Decode(record.Metadata)
		records = append(records, record)
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	return records, nil
}

// Count returns the number of stored records.
func (s *VectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Clear removes every record but keeps the collection.
func (s *VectorStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]domain.VectorRecord)
	s.order = nil
	return nil
}

// Drop removes the collection and leaves an empty one behind.
func (s *VectorStore) Drop(ctx context.Context) error {
	return s.Clear(ctx)
}

// Close releases resources.
func (s *VectorStore) Close() error {
	return nil
}

// cosineDistance returns 1 minus the cosine similarity of a and b.
// Mismatched or zero-norm vectors are treated as maximally distant.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
