package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/phrazzld/gitsong/internal/embedding"
	"github.com/phrazzld/gitsong/internal/store"
)

// VectorStore implements embedding.VectorStore. Vectors are stored as JSONB
// and ranked in process with embedding.Rank.
type VectorStore struct {
	db *sql.DB
}

var _ embedding.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a VectorStore.
func NewVectorStore(db *sql.DB) *VectorStore {
	return &VectorStore{db: db}
}

// EnsureCollection implements embedding.VectorStore.
func (s *VectorStore) EnsureCollection(ctx context.Context, name, embeddingModel string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vector_collections (name, embedding_model)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, name, embeddingModel)
	if err != nil {
		return store.NewStoreError("vector_collection", "ensure", "insert failed", MapError(err))
	}

	model, err := s.collectionModel(ctx, s.db, name)
	if err != nil {
		return err
	}
	if model != embeddingModel {
		return fmt.Errorf("%w: %s uses %s", embedding.ErrCollectionMismatch, name, model)
	}
	return nil
}

// Upsert implements embedding.VectorStore. The batch is written in one
// transaction.
func (s *VectorStore) Upsert(ctx context.Context, collection string, records []embedding.Record) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := s.collectionModel(ctx, tx, collection); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO vector_records (collection, id, vector, document, metadata, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (collection, id) DO UPDATE SET
				vector = EXCLUDED.vector,
				document = EXCLUDED.document,
				metadata = EXCLUDED.metadata,
				updated_at = EXCLUDED.updated_at
		`)
		if err != nil {
			return store.NewStoreError("vector_record", "upsert", "prepare failed", MapError(err))
		}
		defer func() { _ = stmt.Close() }()

		for _, r := range records {
			vector, err := json.Marshal(r.Vector)
			if err != nil {
				return fmt.Errorf("failed to encode vector %s: %w", r.ID, err)
			}
			metadata := r.Metadata
			if metadata == nil {
				metadata = map[string]string{}
			}
			meta, err := json.Marshal(metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata %s: %w", r.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, collection, r.ID, string(vector), r.Document, string(meta)); err != nil {
				return store.NewStoreError("vector_record", "upsert", "insert failed", MapError(err))
			}
		}
		return nil
	})
}

// Query implements embedding.VectorStore.
func (s *VectorStore) Query(ctx context.Context, collection string, vector []float32, k int) ([]embedding.Match, error) {
	if _, err := s.collectionModel(ctx, s.db, collection); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vector, document, metadata
		FROM vector_records
		WHERE collection = $1
	`, collection)
	if err != nil {
		return nil, store.NewStoreError("vector_record", "query", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var records []embedding.Record
	for rows.Next() {
		var (
			r            embedding.Record
			vectorJSON   []byte
			metadataJSON []byte
		)
		if err := rows.Scan(&r.ID, &vectorJSON, &r.Document, &metadataJSON); err != nil {
			return nil, store.NewStoreError("vector_record", "query", "scan failed", MapError(err))
		}
		if err := json.Unmarshal(vectorJSON, &r.Vector); err != nil {
			return nil, fmt.Errorf("failed to decode vector %s: %w", r.ID, err)
		}
		if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata %s: %w", r.ID, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("vector_record", "query", "iteration failed", MapError(err))
	}
	return embedding.Rank(vector, records, k), nil
}

func (s *VectorStore) collectionModel(ctx context.Context, db store.DBTX, name string) (string, error) {
	var model string
	err := db.QueryRowContext(ctx,
		`SELECT embedding_model FROM vector_collections WHERE name = $1`, name,
	).Scan(&model)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", embedding.ErrCollectionNotFound, name)
	}
	if err != nil {
		return "", store.NewStoreError("vector_collection", "get", "query failed", MapError(err))
	}
	return model, nil
}
