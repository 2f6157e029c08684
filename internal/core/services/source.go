package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driving"
	"github.com/custodia-labs/knowledge-core/internal/logger"
)

// Ensure SourceService implements the interface.
var _ driving.SourceService = (*SourceService)(nil)

// SourceService manages knowledge source registrations.
type SourceService struct {
	store   driven.SourceStore
	scanner driven.DocumentScanner
}

// NewSourceService creates a new source service.
func NewSourceService(store driven.SourceStore, scanner driven.DocumentScanner) *SourceService {
	return &SourceService{store: store, scanner: scanner}
}

// Create registers a new source. The path must be an existing
// directory and the name must be unique.
func (s *SourceService) Create(ctx context.Context, name, path, description string) (*domain.KnowledgeSource, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: source name required", domain.ErrInvalidInput)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("validate path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrPathNotDirectory, path)
	}

	if _, err := s.store.GetByName(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: source name %q", domain.ErrAlreadyExists, name)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check source name: %w", err)
	}

	now := time.Now()
	source := domain.KnowledgeSource{
		ID:          uuid.NewString(),
		Name:        name,
		Path:        path,
		Description: description,
		Status:      domain.SourceActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Save(ctx, source); err != nil {
		return nil, fmt.Errorf("save source: %w", err)
	}

	logger.Info("Registered source %q (%s)", name, source.ID)
	return &source, nil
}

// Get retrieves a source by ID.
func (s *SourceService) Get(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	return s.store.Get(ctx, id)
}

// GetByName retrieves a source by its unique name.
func (s *SourceService) GetByName(ctx context.Context, name string) (*domain.KnowledgeSource, error) {
	return s.store.GetByName(ctx, name)
}

// Update modifies a source. Nil fields are left unchanged; name and
// path changes are re-validated before saving.
func (s *SourceService) Update(ctx context.Context, id string, update domain.SourceUpdate) (*domain.KnowledgeSource, error) {
	source, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := false

	if update.Name != nil && *update.Name != source.Name {
		existing, err := s.store.GetByName(ctx, *update.Name)
		switch {
		case err == nil && existing.ID != id:
			return nil, fmt.Errorf("%w: source name %q", domain.ErrAlreadyExists, *update.Name)
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("check source name: %w", err)
		}
		source.Name = *update.Name
		changed = true
	}

	if update.Path != nil && *update.Path != source.Path {
		info, err := os.Stat(*update.Path)
		if err != nil {
			return nil, fmt.Errorf("validate path: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", domain.ErrPathNotDirectory, *update.Path)
		}
		source.Path = *update.Path
		changed = true
	}

	if update.Description != nil {
		source.Description = *update.Description
		changed = true
	}

	if !changed {
		return source, nil
	}

	source.UpdatedAt = time.Now()
	if err := s.store.Save(ctx, *source); err != nil {
		return nil, fmt.Errorf("save source: %w", err)
	}
	return source, nil
}

// UpdateStatus flips a source between active and inactive.
func (s *SourceService) UpdateStatus(ctx context.Context, id string, status domain.SourceStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}

	source, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	source.Status = status
	source.UpdatedAt = time.Now()
	if err := s.store.Save(ctx, *source); err != nil {
		return fmt.Errorf("save source: %w", err)
	}
	return nil
}

// Delete removes a source registration. Stored records are the
// knowledge service's concern; RemoveSource there clears both.
func (s *SourceService) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// List returns sources newest first. An empty status matches all.
func (s *SourceService) List(ctx context.Context, status domain.SourceStatus, limit, offset int) ([]domain.KnowledgeSource, error) {
	return s.store.List(ctx, status, limit, offset)
}

// Count returns the number of sources with the given status.
func (s *SourceService) Count(ctx context.Context, status domain.SourceStatus) (int, error) {
	return s.store.Count(ctx, status)
}

// GetActive returns active sources ordered by name.
func (s *SourceService) GetActive(ctx context.Context) ([]domain.KnowledgeSource, error) {
	sources, err := s.store.List(ctx, domain.SourceActive, 0, 0)
	if err != nil {
		return nil, err
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Name < sources[j].Name
	})
	return sources, nil
}

// Search returns sources whose name or description contains the term.
func (s *SourceService) Search(ctx context.Context, term string) ([]domain.KnowledgeSource, error) {
	return s.store.Search(ctx, term)
}

// ValidatePath checks a source's directory and counts its supported
// files.
func (s *SourceService) ValidatePath(ctx context.Context, id string) (*domain.PathValidation, error) {
	source, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	validation := validateSourcePath(s.scanner, source.Path)
	return &validation, nil
}

// Stats summarises the registry.
func (s *SourceService) Stats(ctx context.Context) (*domain.SourceStats, error) {
	stats, err := collectSourceStats(ctx, s.store, s.scanner)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// CleanupInvalid deactivates active sources whose paths no longer
// validate and returns how many were deactivated.
func (s *SourceService) CleanupInvalid(ctx context.Context) (int, error) {
	sources, err := s.store.List(ctx, domain.SourceActive, 0, 0)
	if err != nil {
		return 0, err
	}

	deactivated := 0
	for i := range sources {
		validation := validateSourcePath(s.scanner, sources[i].Path)
		if validation.Valid {
			continue
		}
		if err := s.UpdateStatus(ctx, sources[i].ID, domain.SourceInactive); err != nil {
			return deactivated, fmt.Errorf("deactivate source %s: %w", sources[i].ID, err)
		}
		deactivated++
	}

	if deactivated > 0 {
		logger.Info("Deactivated %d sources with invalid paths", deactivated)
	}
	return deactivated, nil
}

// validateSourcePath checks that path is an existing directory and
// counts the supported files under it.
func validateSourcePath(scanner driven.DocumentScanner, path string) domain.PathValidation {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return domain.PathValidation{Message: fmt.Sprintf("path %q does not exist", path)}
	case err != nil:
		return domain.PathValidation{Message: fmt.Sprintf("stat %q: %v", path, err)}
	case !info.IsDir():
		return domain.PathValidation{Message: fmt.Sprintf("path %q is not a directory", path)}
	}

	count, err := scanner.CountSupported(path, true)
	if err != nil {
		return domain.PathValidation{Message: fmt.Sprintf("count supported files: %v", err)}
	}
	return domain.PathValidation{Valid: true, FileCount: count}
}

// collectSourceStats summarises the registry, counting supported files
// across the active sources.
func collectSourceStats(ctx context.Context, store driven.SourceStore, scanner driven.DocumentScanner) (domain.SourceStats, error) {
	total, err := store.Count(ctx, "")
	if err != nil {
		return domain.SourceStats{}, fmt.Errorf("count sources: %w", err)
	}

	stats := domain.SourceStats{
		Total:    total,
		ByStatus: make(map[domain.SourceStatus]int),
	}

	for _, status := range []domain.SourceStatus{domain.SourceActive, domain.SourceInactive} {
		count, err := store.Count(ctx, status)
		if err != nil {
			return domain.SourceStats{}, fmt.Errorf("count %s sources: %w", status, err)
		}
		if count > 0 {
			stats.ByStatus[status] = count
		}
	}

	active, err := store.List(ctx, domain.SourceActive, 0, 0)
	if err != nil {
		return domain.SourceStats{}, fmt.Errorf("list active sources: %w", err)
	}
	for i := range active {
		validation := validateSourcePath(scanner, active[i].Path)
		if validation.Valid {
			stats.ActiveFiles += validation.FileCount
		}
	}
	return stats, nil
}
