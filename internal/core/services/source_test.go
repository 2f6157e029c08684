package services

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/knowledge-core/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

func newSourceFixture(supported int) (*SourceService, *memory.SourceStore) {
	store := memory.NewSourceStore()
	scanner := &mockScanner{supported: supported}
	return NewSourceService(store, scanner), store
}

func registerSource(t *testing.T, service *SourceService, name string) *domain.KnowledgeSource {
	t.Helper()

	source, err := service.Create(context.Background(), name, t.TempDir(), "")
	require.NoError(t, err)
	return source
}

func strPtr(s string) *string {
	return &s
}

func TestSourceService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("registers an active source", func(t *testing.T) {
		service, store := newSourceFixture(3)
		dir := t.TempDir()

		source, err := service.Create(ctx, "notes", dir, "personal notes")
		require.NoError(t, err)

		assert.NotEmpty(t, source.ID)
		assert.Equal(t, "notes", source.Name)
		assert.Equal(t, dir, source.Path)
		assert.Equal(t, "personal notes", source.Description)
		assert.Equal(t, domain.SourceActive, source.Status)
		assert.False(t, source.CreatedAt.IsZero())
		assert.Equal(t, source.CreatedAt, source.UpdatedAt)

		saved, err := store.Get(ctx, source.ID)
		require.NoError(t, err)
		assert.Equal(t, *source, *saved)
	})

	t.Run("rejects an empty name", func(t *testing.T) {
		service, _ := newSourceFixture(0)

		_, err := service.Create(ctx, "", t.TempDir(), "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects a missing path", func(t *testing.T) {
		service, _ := newSourceFixture(0)

		_, err := service.Create(ctx, "notes", "/nonexistent/path", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validate path")
	})

	t.Run("rejects a file path", func(t *testing.T) {
		service, _ := newSourceFixture(0)
		file := t.TempDir() + "/readme.md"
		require.NoError(t, os.WriteFile(file, []byte("hello"), 0o600))

		_, err := service.Create(ctx, "notes", file, "")
		assert.ErrorIs(t, err, domain.ErrPathNotDirectory)
	})

	t.Run("rejects a duplicate name", func(t *testing.T) {
		service, _ := newSourceFixture(0)
		registerSource(t, service, "notes")

		_, err := service.Create(ctx, "notes", t.TempDir(), "")
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})
}

func TestSourceService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("renames a source", func(t *testing.T) {
		service, _ := newSourceFixture(0)
		source := registerSource(t, service, "notes")

		updated, err := service.Update(ctx, source.ID, domain.SourceUpdate{Name: strPtr("archive")})
		require.NoError(t, err)

		assert.Equal(t, "archive", updated.Name)
		assert.False(t, updated.UpdatedAt.Before(source.UpdatedAt))
	})

	t.Run("rejects a taken name", func(t *testing.T) {
		service, _ := newSourceFixture(0)
		registerSource(t, service, "notes")
		other := registerSource(t, service, "archive")

		_, err := service.Update(ctx, other.ID, domain.SourceUpdate{Name: strPtr("notes")})
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("keeps its own name without a uniqueness check", func(t *testing.T) {
		service, _ := newSourceFixture(0)
		source := registerSource(t, service, "notes")

		updated, err := service.Update(ctx, source.ID, domain.SourceUpdate{Name: strPtr("notes")})
		require.NoError(t, err)
		assert.Equal(t, source.UpdatedAt, updated.UpdatedAt)
	})

	t.Run("moves to a valid path", func(t *testing.T) {
		service, store := newSourceFixture(0)
		source := registerSource(t, service, "notes")
		dir := t.TempDir()

		updated, err := service.Update(ctx, source.ID, domain.SourceUpdate{Path: strPtr(dir)})
		require.NoError(t, err)
		assert.Equal(t, dir, updated.Path)

		saved, err := store.Get(ctx, source.ID)
		require.NoError(t, err)
		assert.Equal(t, dir, saved.Path)
	})

	t.Run("rejects an invalid path", func(t *testing.T) {
		service, _ := newSourceFixture(0)
		source := registerSource(t, service, "notes")
		file := t.TempDir() + "/readme.md"
		require.NoError(t, os.WriteFile(file, []byte("hello"), 0o600))

		_, err := service.Update(ctx, source.ID, domain.SourceUpdate{Path: strPtr(file)})
		assert.ErrorIs(t, err, domain.ErrPathNotDirectory)

		_, err = service.Update(ctx, source.ID, domain.SourceUpdate{Path: strPtr("/nonexistent/path")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validate path")
	})

	t.Run("updates the description", func(t *testing.T) {
		service, _ := newSourceFixture(0)
		source := registerSource(t, service, "notes")

		updated, err := service.Update(ctx, source.ID, domain.SourceUpdate{Description: strPtr("project docs")})
		require.NoError(t, err)
		assert.Equal(t, "project docs", updated.Description)
	})

	t.Run("no fields is a no-op", func(t *testing.T) {
		service, _ := newSourceFixture(0)
		source := registerSource(t, service, "notes")

		updated, err := service.Update(ctx, source.ID, domain.SourceUpdate{})
		require.NoError(t, err)
		assert.Equal(t, source.UpdatedAt, updated.UpdatedAt)
	})

	t.Run("unknown source", func(t *testing.T) {
		service, _ := newSourceFixture(0)

		_, err := service.Update(ctx, "missing", domain.SourceUpdate{Name: strPtr("notes")})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSourceService_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("deactivates a source", func(t *testing.T) {
		service, store := newSourceFixture(0)
		source := registerSource(t, service, "notes")

		require.NoError(t, service.UpdateStatus(ctx, source.ID, domain.SourceInactive))

		saved, err := store.Get(ctx, source.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SourceInactive, saved.Status)
	})

	t.Run("rejects an unknown status", func(t *testing.T) {
		service, _ := newSourceFixture(0)
		source := registerSource(t, service, "notes")

		err := service.UpdateStatus(ctx, source.ID, domain.SourceStatus("archived"))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("unknown source", func(t *testing.T) {
		service, _ := newSourceFixture(0)

		err := service.UpdateStatus(ctx, "missing", domain.SourceInactive)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSourceService_GetActive(t *testing.T) {
	ctx := context.Background()
	service, _ := newSourceFixture(0)

	registerSource(t, service, "zettel")
	registerSource(t, service, "archive")
	inactive := registerSource(t, service, "drafts")
	require.NoError(t, service.UpdateStatus(ctx, inactive.ID, domain.SourceInactive))

	active, err := service.GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "archive", active[0].Name)
	assert.Equal(t, "zettel", active[1].Name)
}

func TestSourceService_ValidatePath(t *testing.T) {
	ctx := context.Background()

	t.Run("valid directory", func(t *testing.T) {
		service, _ := newSourceFixture(4)
		source := registerSource(t, service, "notes")

		validation, err := service.ValidatePath(ctx, source.ID)
		require.NoError(t, err)
		assert.True(t, validation.Valid)
		assert.Equal(t, 4, validation.FileCount)
	})

	t.Run("removed directory", func(t *testing.T) {
		service, _ := newSourceFixture(0)
		source := registerSource(t, service, "notes")
		require.NoError(t, os.RemoveAll(source.Path))

		validation, err := service.ValidatePath(ctx, source.ID)
		require.NoError(t, err)
		assert.False(t, validation.Valid)
		assert.Contains(t, validation.Message, "does not exist")
	})

	t.Run("path replaced by a file", func(t *testing.T) {
		service, _ := newSourceFixture(0)
		source := registerSource(t, service, "notes")
		require.NoError(t, os.RemoveAll(source.Path))
		require.NoError(t, os.WriteFile(source.Path, []byte("hello"), 0o600))

		validation, err := service.ValidatePath(ctx, source.ID)
		require.NoError(t, err)
		assert.False(t, validation.Valid)
		assert.Contains(t, validation.Message, "not a directory")
	})

	t.Run("unknown source", func(t *testing.T) {
		service, _ := newSourceFixture(0)

		_, err := service.ValidatePath(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSourceService_Stats(t *testing.T) {
	ctx := context.Background()
	service, _ := newSourceFixture(4)

	registerSource(t, service, "notes")
	registerSource(t, service, "docs")
	inactive := registerSource(t, service, "drafts")
	require.NoError(t, service.UpdateStatus(ctx, inactive.ID, domain.SourceInactive))

	stats, err := service.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[domain.SourceActive])
	assert.Equal(t, 1, stats.ByStatus[domain.SourceInactive])
	assert.Equal(t, 8, stats.ActiveFiles)
}

func TestSourceService_CleanupInvalid(t *testing.T) {
	ctx := context.Background()
	service, store := newSourceFixture(2)

	valid := registerSource(t, service, "notes")
	broken := registerSource(t, service, "stale")
	require.NoError(t, os.RemoveAll(broken.Path))

	// Inactive sources are left alone even when their path is gone.
	parked := registerSource(t, service, "parked")
	require.NoError(t, service.UpdateStatus(ctx, parked.ID, domain.SourceInactive))
	require.NoError(t, os.RemoveAll(parked.Path))
	parkedBefore, err := store.Get(ctx, parked.ID)
	require.NoError(t, err)

	deactivated, err := service.CleanupInvalid(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deactivated)

	saved, err := store.Get(ctx, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceInactive, saved.Status)

	untouched, err := store.Get(ctx, valid.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceActive, untouched.Status)

	parkedAfter, err := store.Get(ctx, parked.ID)
	require.NoError(t, err)
	assert.Equal(t, parkedBefore.UpdatedAt, parkedAfter.UpdatedAt)

	// A second pass finds nothing left to deactivate.
	deactivated, err = service.CleanupInvalid(ctx)
	require.NoError(t, err)
	assert.Zero(t, deactivated)
}

func TestSourceService_Search(t *testing.T) {
	ctx := context.Background()
	service, _ := newSourceFixture(0)

	source, err := service.Create(ctx, "notes", t.TempDir(), "meeting minutes")
	require.NoError(t, err)
	registerSource(t, service, "docs")

	matches, err := service.Search(ctx, "minutes")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, source.ID, matches[0].ID)
}

func TestSourceService_Delete(t *testing.T) {
	ctx := context.Background()
	service, _ := newSourceFixture(0)
	source := registerSource(t, service, "notes")

	require.NoError(t, service.Delete(ctx, source.ID))

	_, err := service.Get(ctx, source.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	count, err := service.Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, count)
}
