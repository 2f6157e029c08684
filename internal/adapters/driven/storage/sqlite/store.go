package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/knowledge-core/internal/adapters/driven/storage/scalar"
	"github.com/custodia-labs/knowledge-core/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// createRecordsSQL recreates the records table after a Drop. Kept in
// sync with the initial migration.
const createRecordsSQL = `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		embedding BLOB,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)
`

// Store is a unified SQLite-based storage that provides access to the
// vector record and source store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens or creates the database at the given file path.
// If path is empty, defaults to ~/.knowledge-core/data/knowledge.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".knowledge-core", "data", "knowledge.db")
	}

	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: path,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RecordStore returns a VectorStore interface backed by this store.
func (s *Store) RecordStore() driven.VectorStore {
	return &recordStore{store: s}
}

// SourceStore returns a SourceStore interface backed by this store.
func (s *Store) SourceStore() driven.SourceStore {
	return &sourceStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Record Store ====================

// recordStore implements driven.VectorStore.
type recordStore struct {
	store *Store
}

var _ driven.VectorStore = (*recordStore)(nil)

// Add stores the given records and returns their IDs in input order.
func (s *recordStore) Add(ctx context.Context, records []domain.VectorRecord) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (id, content, metadata, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	ids := make([]string, 0, len(records))
	for _, record := range records {
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}

		metadataJSON, err := json.Marshal(scalar.Encode(record.Metadata))
		if err != nil {
			return nil, fmt.Errorf("marshalling metadata: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, record.ID, record.Content, string(metadataJSON),
			float32SliceToBytes(record.Embedding), record.CreatedAt, now); err != nil {
			return nil, fmt.Errorf("saving record: %w", err)
		}
		ids = append(ids, record.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return ids, nil
}

// Update overwrites fields of an existing record. Empty Content, nil
// Metadata and nil Embedding leave the stored values untouched.
func (s *recordStore) Update(ctx context.Context, record domain.VectorRecord) error {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT content, metadata, embedding FROM records WHERE id = ?
	`, record.ID)

	var content, metadataJSON string
	var embeddingBlob []byte
	if err := row.Scan(&content, &metadataJSON, &embeddingBlob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("scanning record: %w", err)
	}

	if record.Content != "" {
		content = record.Content
	}
	if record.Metadata != nil {
		data, err := json.Marshal(scalar.Encode(record.Metadata))
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}
		metadataJSON = string(data)
	}
	if record.Embedding != nil {
		embeddingBlob = float32SliceToBytes(record.Embedding)
	}

	_, err := s.store.db.ExecContext(ctx, `
		UPDATE records SET content = ?, metadata = ?, embedding = ?, updated_at = ? WHERE id = ?
	`, content, metadataJSON, embeddingBlob, time.Now().UTC(), record.ID)
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}
	return nil
}

// Delete removes a record.
func (s *recordStore) Delete(ctx context.Context, id string) error {
	result, err := s.store.db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deletion: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteMany removes the given records, ignoring unknown IDs.
func (s *recordStore) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM records WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	return nil
}

// Search returns the k nearest records to the query embedding under
// the filter, ordered by ascending cosine distance. The scan is exact:
// every embedded record is ranked. Equal distances keep insertion
// order.
func (s *recordStore) Search(ctx context.Context, embedding []float32, k int, filter map[string]any) ([]domain.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, content, metadata, embedding
		FROM records WHERE embedding IS NOT NULL
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var hits []domain.VectorHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id, content, metadataJSON string
		var embeddingBlob []byte
		if err := rows.Scan(&id, &content, &metadataJSON, &embeddingBlob); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		metadata, err := unmarshalMetadata(metadataJSON)
		if err != nil {
			return nil, err
		}
		if !scalar.Matches(metadata, filter) {
			continue
		}

		hits = append(hits, domain.VectorHit{
			ID:       id,
			Content:  content,
			Metadata: scalar.Decode(metadata),
			Distance: cosineDistance(embedding, bytesToFloat32Slice(embeddingBlob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
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
func (s *recordStore) Get(ctx context.Context, id string) (*domain.VectorRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, content, metadata, embedding, created_at, updated_at
		FROM records WHERE id = ?
	`, id)

	record, err := scanRecordRow(row)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// List returns records matching the filter in insertion order.
func (s *recordStore) List(ctx context.Context, filter map[string]any, limit, offset int) ([]domain.VectorRecord, error) {
	// Without a filter the database handles paging.
	if len(filter) == 0 {
		sqlLimit := limit
		if sqlLimit <= 0 {
			sqlLimit = -1 // no limit
		}
		rows, err := s.store.db.QueryContext(ctx, `
			SELECT id, content, metadata, embedding, created_at, updated_at
			FROM records ORDER BY rowid LIMIT ? OFFSET ?
		`, sqlLimit, offset)
		if err != nil {
			return nil, fmt.Errorf("querying records: %w", err)
		}
		defer rows.Close()
		return scanRecords(rows, nil, 0, 0)
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, content, metadata, embedding, created_at, updated_at
		FROM records ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows, filter, limit, offset)
}

// Count returns the number of stored records.
func (s *recordStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return count, nil
}

// Clear removes every record but keeps the collection.
func (s *recordStore) Clear(ctx context.Context) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}
	return nil
}

// Drop removes the records table and recreates it empty.
func (s *recordStore) Drop(ctx context.Context) error {
	if _, err := s.store.db.ExecContext(ctx, "DROP TABLE IF EXISTS records"); err != nil {
		return fmt.Errorf("dropping records: %w", err)
	}
	if _, err := s.store.db.ExecContext(ctx, createRecordsSQL); err != nil {
		return fmt.Errorf("recreating records: %w", err)
	}
	return nil
}

// Close releases resources. The underlying connection is owned by the
// parent Store.
func (s *recordStore) Close() error {
	return nil
}

// ==================== Source Store ====================

// sourceStore implements driven.SourceStore.
type sourceStore struct {
	store *Store
}

var _ driven.SourceStore = (*sourceStore)(nil)

// Save stores or updates a source.
func (s *sourceStore) Save(ctx context.Context, source domain.KnowledgeSource) error {
	now := time.Now().UTC()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	if source.UpdatedAt.IsZero() {
		source.UpdatedAt = now
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sources (id, name, path, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			path = excluded.path,
			description = excluded.description,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, source.ID, source.Name, source.Path, source.Description,
		string(source.Status), source.CreatedAt, source.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving source: %w", err)
	}
	return nil
}

// Get retrieves a source by ID.
func (s *sourceStore) Get(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, path, description, status, created_at, updated_at
		FROM sources WHERE id = ?
	`, id)

	return scanSourceRow(row)
}

// GetByName retrieves a source by its unique name.
func (s *sourceStore) GetByName(ctx context.Context, name string) (*domain.KnowledgeSource, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, path, description, status, created_at, updated_at
		FROM sources WHERE name = ?
	`, name)

	return scanSourceRow(row)
}

// Delete removes a source.
func (s *sourceStore) Delete(ctx context.Context, id string) error {
	result, err := s.store.db.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deletion: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns sources newest first.
func (s *sourceStore) List(ctx context.Context, status domain.SourceStatus, limit, offset int) ([]domain.KnowledgeSource, error) {
	sqlLimit := limit
	if sqlLimit <= 0 {
		sqlLimit = -1 // no limit
	}

	query := `
		SELECT id, name, path, description, status, created_at, updated_at
		FROM sources
	`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, sqlLimit, offset)

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// Count returns the number of sources with the given status.
func (s *sourceStore) Count(ctx context.Context, status domain.SourceStatus) (int, error) {
	query := "SELECT COUNT(*) FROM sources"
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}

	var count int
	if err := s.store.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting sources: %w", err)
	}
	return count, nil
}

// Search returns sources whose name or description contains the term,
// case-insensitively, ordered by name.
func (s *sourceStore) Search(ctx context.Context, term string) ([]domain.KnowledgeSource, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, path, description, status, created_at, updated_at
		FROM sources
		WHERE lower(name) LIKE '%' || lower(?) || '%'
		   OR lower(description) LIKE '%' || lower(?) || '%'
		ORDER BY name
	`, term, term)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
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

// unmarshalMetadata parses the stored metadata JSON object.
func unmarshalMetadata(metadataJSON string) (map[string]any, error) {
	if metadataJSON == "" {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	return metadata, nil
}

// scanRecordRow scans a single record row.
func scanRecordRow(row *sql.Row) (*domain.VectorRecord, error) {
	var record domain.VectorRecord
	var metadataJSON string
	var embeddingBlob []byte
	var createdAt, updatedAt sql.NullTime

	if err := row.Scan(&record.ID, &record.Content, &metadataJSON,
		&embeddingBlob, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	metadata, err := unmarshalMetadata(metadataJSON)
	if err != nil {
		return nil, err
	}
	record.Metadata = scalar.Decode(metadata)
	record.Embedding = bytesToFloat32Slice(embeddingBlob)
	if createdAt.Valid {
		record.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		record.UpdatedAt = updatedAt.Time
	}

	return &record, nil
}

// scanRecords scans record rows, applying an optional in-process
// filter with paging.
func scanRecords(rows *sql.Rows, filter map[string]any, limit, offset int) ([]domain.VectorRecord, error) {
	var records []domain.VectorRecord //nolint:prealloc // size unknown from query
	skipped := 0
	for rows.Next() {
		var record domain.VectorRecord
		var metadataJSON string
		var embeddingBlob []byte
		var createdAt, updatedAt sql.NullTime

		if err := rows.Scan(&record.ID, &record.Content, &metadataJSON,
			&embeddingBlob, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		metadata, err := unmarshalMetadata(metadataJSON)
		if err != nil {
			return nil, err
		}
		if !scalar.Matches(metadata, filter) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}

		record.Metadata = scalar.Decode(metadata)
		record.Embedding = bytesToFloat32Slice(embeddingBlob)
		if createdAt.Valid {
			record.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			record.UpdatedAt = updatedAt.Time
		}
		records = append(records, record)

		if limit > 0 && len(records) >= limit {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// scanSourceRow scans a single source row.
func scanSourceRow(row *sql.Row) (*domain.KnowledgeSource, error) {
	var source domain.KnowledgeSource
	var status string
	var createdAt, updatedAt sql.NullTime

	if err := row.Scan(&source.ID, &source.Name, &source.Path, &source.Description,
		&status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning source: %w", err)
	}

	source.Status = domain.SourceStatus(status)
	if createdAt.Valid {
		source.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		source.UpdatedAt = updatedAt.Time
	}

	return &source, nil
}

// scanSources scans multiple source rows.
func scanSources(rows *sql.Rows) ([]domain.KnowledgeSource, error) {
	var sources []domain.KnowledgeSource //nolint:prealloc // size unknown from query
	for rows.Next() {
		var source domain.KnowledgeSource
		var status string
		var createdAt, updatedAt sql.NullTime

		if err := rows.Scan(&source.ID, &source.Name, &source.Path, &source.Description,
			&status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}

		source.Status = domain.SourceStatus(status)
		if createdAt.Valid {
			source.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			source.UpdatedAt = updatedAt.Time
		}
		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}
	return sources, nil
}
