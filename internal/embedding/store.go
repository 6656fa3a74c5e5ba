package embedding

import (
	"context"
	"errors"
)

var (
	// ErrCollectionNotFound is returned when a collection was never ensured.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionMismatch is returned when a collection exists with a
	// different embedding model.
	ErrCollectionMismatch = errors.New("collection exists with a different embedding model")
)

// Record is one stored vector.
type Record struct {
	ID       string            `json:"id"`
	Vector   []float32         `json:"vector"`
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Match is a query result.
type Match struct {
	ID         string            `json:"id"`
	Document   string            `json:"document"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Similarity float64           `json:"similarity"`
}

// VectorStore persists vectors in named collections.
type VectorStore interface {
	// EnsureCollection creates the collection if absent. Calling it again
	// with the same model is a no-op.
	EnsureCollection(ctx context.Context, name, embeddingModel string) error

	// Upsert inserts or replaces records by id.
	Upsert(ctx context.Context, collection string, records []Record) error

	// Query returns the k records most similar to vector, best first.
	Query(ctx context.Context, collection string, vector []float32, k int) ([]Match, error)
}
