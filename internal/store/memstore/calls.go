package memstore

import (
	"context"
	"sync"

	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/store"
)

// CallStore implements store.CallStore in memory.
type CallStore struct {
	mu    sync.RWMutex
	calls map[string]domain.CachedCall

	// UpsertFn, when set, replaces the default upsert (used to inject failures).
	UpsertFn func(ctx context.Context, call *domain.CachedCall) error
	// GetFn, when set, replaces the default lookup.
	GetFn func(ctx context.Context, fingerprint string) (*domain.CachedCall, error)
}

// NewCallStore creates an empty CallStore.
func NewCallStore() *CallStore {
	return &CallStore{calls: make(map[string]domain.CachedCall)}
}

// GetCall implements store.CallStore.
func (s *CallStore) GetCall(ctx context.Context, fingerprint string) (*domain.CachedCall, error) {
	if s.GetFn != nil {
		return s.GetFn(ctx, fingerprint)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.calls[fingerprint]
	if !ok {
		return nil, store.ErrCallNotFound
	}
	return &c, nil
}

// UpsertCall implements store.CallStore.
func (s *CallStore) UpsertCall(ctx context.Context, call *domain.CachedCall) error {
	if s.UpsertFn != nil {
		return s.UpsertFn(ctx, call)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *call
	if existing, ok := s.calls[call.Fingerprint]; ok {
		c.CreatedAt = existing.CreatedAt
	}
	s.calls[call.Fingerprint] = c
	return nil
}

// Len returns the number of stored fingerprints.
func (s *CallStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.calls)
}

// Put stores call verbatim, bypassing UpsertFn. Tests use it to seed state.
func (s *CallStore) Put(call domain.CachedCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[call.Fingerprint] = call
}
