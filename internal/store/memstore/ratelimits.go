package memstore

import (
	"context"
	"sync"

	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/store"
)

// RateLimitStore implements store.RateLimitStore in memory.
type RateLimitStore struct {
	mu       sync.Mutex
	counters map[string]domain.RateLimitCounter
}

// NewRateLimitStore creates an empty RateLimitStore.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{counters: make(map[string]domain.RateLimitCounter)}
}

// GetCounter implements store.RateLimitStore.
func (s *RateLimitStore) GetCounter(ctx context.Context, service string) (*domain.RateLimitCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[service]
	if !ok {
		return nil, store.ErrCounterNotFound
	}
	return &c, nil
}

// IncrementCounter implements store.RateLimitStore.
func (s *RateLimitStore) IncrementCounter(
	ctx context.Context,
	inc store.CounterIncrement,
) (*domain.RateLimitCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[inc.Service]
	if !ok {
		c = domain.RateLimitCounter{
			Service: inc.Service,
			Limit:   inc.DefaultLimit,
			ResetAt: inc.Now.Add(inc.DefaultWindow),
			Active:  true,
		}
	} else if !c.ResetAt.After(inc.Now) {
		c.Used = 0
		c.ResetAt = inc.Now.Add(inc.DefaultWindow)
	}

	if inc.HintLimit > 0 {
		c.Limit = inc.HintLimit
	}
	if !inc.HintResetAt.IsZero() {
		c.ResetAt = inc.HintResetAt
	}
	c.Used++
	c.Active = true

	s.counters[inc.Service] = c
	return &c, nil
}
