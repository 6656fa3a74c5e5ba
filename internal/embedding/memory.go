package embedding

import (
	"context"
	"fmt"
	"sync"
)

type memoryCollection struct {
	model   string
	records map[string]Record
}

// MemoryStore is an in-process VectorStore.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// EnsureCollection implements VectorStore.
func (s *MemoryStore) EnsureCollection(ctx context.Context, name, embeddingModel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		if c.model != embeddingModel {
			return fmt.Errorf("%w: %s uses %s", ErrCollectionMismatch, name, c.model)
		}
		return nil
	}
	s.collections[name] = &memoryCollection{model: embeddingModel, records: make(map[string]Record)}
	return nil
}

// Upsert implements VectorStore.
func (s *MemoryStore) Upsert(ctx context.Context, collection string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	for _, r := range records {
		c.records[r.ID] = r
	}
	return nil
}

// Query implements VectorStore.
func (s *MemoryStore) Query(ctx context.Context, collection string, vector []float32, k int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	records := make([]Record, 0, len(c.records))
	for _, r := range c.records {
		records = append(records, r)
	}
	return Rank(vector, records, k), nil
}

// Count returns the number of records in a collection.
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.collections[collection]; ok {
		return len(c.records)
	}
	return 0
}
