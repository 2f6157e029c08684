package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/knowledge-core/internal/adapters/driven/storage/scalar"
	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// createRecordsSQL recreates the records table after a Drop.
const createRecordsSQL = `
	CREATE TABLE IF NOT EXISTS records (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		embedding vector,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)
`

const schemaSQL = `
	CREATE EXTENSION IF NOT EXISTS vector;
` + createRecordsSQL + `;
	CREATE INDEX IF NOT EXISTS idx_records_metadata ON records USING GIN (metadata);

	CREATE TABLE IF NOT EXISTS sources (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		path TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sources_status ON sources (status);
	CREATE INDEX IF NOT EXISTS idx_sources_created_at ON sources (created_at);
`

// Store is a unified PostgreSQL-based storage that provides access to
// the vector record and source store interfaces through wrapper types.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database described by the DSN and ensures
// the schema exists. The DSN accepts both URL and keyword forms.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// RecordStore returns a VectorStore interface backed by this store.
func (s *Store) RecordStore() driven.VectorStore {
	return &recordStore{store: s}
}

// SourceStore returns a SourceStore interface backed by this store.
func (s *Store) SourceStore() driven.SourceStore {
	return &sourceStore{store: s}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("creating schema: %w", err)
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

	tx, err := s.store.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

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

		_, err = tx.Exec(ctx, `
			INSERT INTO records (id, content, metadata, embedding, created_at, updated_at)
			VALUES ($1, $2, $3::jsonb, $4::vector, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				metadata = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding,
				updated_at = EXCLUDED.updated_at
		`, record.ID, record.Content, metadataJSON, nullableVector(record.Embedding),
			record.CreatedAt, now)
		if err != nil {
			return nil, fmt.Errorf("saving record: %w", err)
		}
		ids = append(ids, record.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return ids, nil
}

// Update overwrites fields of an existing record. Empty Content, nil
// Metadata and nil Embedding leave the stored values untouched.
func (s *recordStore) Update(ctx context.Context, record domain.VectorRecord) error {
	row := s.store.pool.QueryRow(ctx, `
		SELECT content, metadata, embedding::text FROM records WHERE id = $1
	`, record.ID)

	var content string
	var metadataJSON []byte
	var embeddingText *string
	if err := row.Scan(&content, &metadataJSON, &embeddingText); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
		metadataJSON = data
	}
	embedding := nullableVector(record.Embedding)
	if record.Embedding == nil {
		current, err := decodeVector(embeddingText)
		if err != nil {
			return err
		}
		embedding = nullableVector(current)
	}

	_, err := s.store.pool.Exec(ctx, `
		UPDATE records SET content = $1, metadata = $2::jsonb, embedding = $3::vector, updated_at = $4
		WHERE id = $5
	`, content, metadataJSON, embedding, time.Now().UTC(), record.ID)
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}
	return nil
}

// Delete removes a record.
func (s *recordStore) Delete(ctx context.Context, id string) error {
	tag, err := s.store.pool.Exec(ctx, "DELETE FROM records WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteMany removes the given records, ignoring unknown IDs.
func (s *recordStore) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.store.pool.Exec(ctx, "DELETE FROM records WHERE id = ANY($1)", ids)
	if err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	return nil
}

// Search returns the k nearest records to the query embedding under
// the filter, ordered by ascending cosine distance.
func (s *recordStore) Search(ctx context.Context, embedding []float32, k int, filter map[string]any) ([]domain.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	query := `
		SELECT id, content, metadata, embedding <=> $1::vector AS distance
		FROM records
		WHERE embedding IS NOT NULL
	`
	args := []any{pgvector.NewVector(embedding)}

	if len(filter) > 0 {
		filterJSON, err := json.Marshal(scalar.Encode(filter))
		if err != nil {
			return nil, fmt.Errorf("marshalling filter: %w", err)
		}
		query += " AND metadata @> $2::jsonb"
		args = append(args, filterJSON)
	}

	query += fmt.Sprintf(" ORDER BY embedding <=> $1::vector, seq LIMIT $%d", len(args)+1)
	args = append(args, k)

	rows, err := s.store.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var hits []domain.VectorHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var hit domain.VectorHit
		var metadataJSON []byte
		if err := rows.Scan(&hit.ID, &hit.Content, &metadataJSON, &hit.Distance); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		metadata, err := unmarshalMetadata(metadataJSON)
		if err != nil {
			return nil, err
		}
		hit.Metadata = scalar.Decode(metadata)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return hits, nil
}

// Get retrieves a record by ID.
func (s *recordStore) Get(ctx context.Context, id string) (*domain.VectorRecord, error) {
	row := s.store.pool.QueryRow(ctx, `
		SELECT id, content, metadata, embedding::text, created_at, updated_at
		FROM records WHERE id = $1
	`, id)

	return scanRecord(row)
}

// List returns records matching the filter in insertion order.
func (s *recordStore) List(ctx context.Context, filter map[string]any, limit, offset int) ([]domain.VectorRecord, error) {
	query := `
		SELECT id, content, metadata, embedding::text, created_at, updated_at
		FROM records
	`
	args := []any{}

	if len(filter) > 0 {
		filterJSON, err := json.Marshal(scalar.Encode(filter))
		if err != nil {
			return nil, fmt.Errorf("marshalling filter: %w", err)
		}
		query += " WHERE metadata @> $1::jsonb"
		args = append(args, filterJSON)
	}

	query += " ORDER BY seq"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, offset)
	}

	rows, err := s.store.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []domain.VectorRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// Count returns the number of stored records.
func (s *recordStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.store.pool.QueryRow(ctx, "SELECT COUNT(*) FROM records").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return count, nil
}

// Clear removes every record but keeps the collection.
func (s *recordStore) Clear(ctx context.Context) error {
	if _, err := s.store.pool.Exec(ctx, "DELETE FROM records"); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}
	return nil
}

// Drop removes the records table and recreates it empty.
func (s *recordStore) Drop(ctx context.Context) error {
	if _, err := s.store.pool.Exec(ctx, "DROP TABLE IF EXISTS records"); err != nil {
		return fmt.Errorf("dropping records: %w", err)
	}
	if _, err := s.store.pool.Exec(ctx, createRecordsSQL); err != nil {
		return fmt.Errorf("recreating records: %w", err)
	}
	return nil
}

// Close releases resources. The underlying pool is owned by the
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

	_, err := s.store.pool.Exec(ctx, `
		INSERT INTO sources (id, name, path, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			path = EXCLUDED.path,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`, source.ID, source.Name, source.Path, source.Description,
		string(source.Status), source.CreatedAt, source.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving source: %w", err)
	}
	return nil
}

// Get retrieves a source by ID.
func (s *sourceStore) Get(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	row := s.store.pool.QueryRow(ctx, `
		SELECT id, name, path, description, status, created_at, updated_at
		FROM sources WHERE id = $1
	`, id)

	return scanSource(row)
}

// GetByName retrieves a source by its unique name.
func (s *sourceStore) GetByName(ctx context.Context, name string) (*domain.KnowledgeSource, error) {
	row := s.store.pool.QueryRow(ctx, `
		SELECT id, name, path, description, status, created_at, updated_at
		FROM sources WHERE name = $1
	`, name)

	return scanSource(row)
}

// Delete removes a source.
func (s *sourceStore) Delete(ctx context.Context, id string) error {
	tag, err := s.store.pool.Exec(ctx, "DELETE FROM sources WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns sources newest first.
func (s *sourceStore) List(ctx context.Context, status domain.SourceStatus, limit, offset int) ([]domain.KnowledgeSource, error) {
	query := `
		SELECT id, name, path, description, status, created_at, updated_at
		FROM sources
	`
	args := []any{}

	if status != "" {
		query += " WHERE status = $1"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, offset)
	}

	rows, err := s.store.pool.Query(ctx, query, args...)
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
		query += " WHERE status = $1"
		args = append(args, string(status))
	}

	var count int
	if err := s.store.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting sources: %w", err)
	}
	return count, nil
}

// Search returns sources whose name or description contains the term,
// case-insensitively, ordered by name.
func (s *sourceStore) Search(ctx context.Context, term string) ([]domain.KnowledgeSource, error) {
	rows, err := s.store.pool.Query(ctx, `
		SELECT id, name, path, description, status, created_at, updated_at
		FROM sources
		WHERE name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%'
		ORDER BY name
	`, term)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// ==================== Helper Functions ====================

// nullableVector maps an empty embedding to NULL.
func nullableVector(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// decodeVector parses the text form of a vector column.
func decodeVector(text *string) ([]float32, error) {
	if text == nil {
		return nil, nil
	}
	var vec pgvector.Vector
	if err := vec.Scan(*text); err != nil {
		return nil, fmt.Errorf("parsing embedding: %w", err)
	}
	return vec.Slice(), nil
}

// unmarshalMetadata parses the stored metadata JSON object.
func unmarshalMetadata(metadataJSON []byte) (map[string]any, error) {
	if len(metadataJSON) == 0 {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	return metadata, nil
}

// scanRecord scans a record from a row or rows cursor.
func scanRecord(row pgx.Row) (*domain.VectorRecord, error) {
	var record domain.VectorRecord
	var metadataJSON []byte
	var embeddingText *string

	if err := row.Scan(&record.ID, &record.Content, &metadataJSON,
		&embeddingText, &record.CreatedAt, &record.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	metadata, err := unmarshalMetadata(metadataJSON)
	if err != nil {
		return nil, err
	}
	record.Metadata = scalar.Decode(metadata)

	record.Embedding, err = decodeVector(embeddingText)
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// scanSource scans a single source row.
func scanSource(row pgx.Row) (*domain.KnowledgeSource, error) {
	var source domain.KnowledgeSource
	var status string

	if err := row.Scan(&source.ID, &source.Name, &source.Path, &source.Description,
		&status, &source.CreatedAt, &source.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning source: %w", err)
	}

	source.Status = domain.SourceStatus(status)
	return &source, nil
}

// scanSources scans multiple source rows.
func scanSources(rows pgx.Rows) ([]domain.KnowledgeSource, error) {
	var sources []domain.KnowledgeSource //nolint:prealloc // size unknown from query
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}
	return sources, nil
}
