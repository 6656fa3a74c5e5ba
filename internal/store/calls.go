package store

import (
	"context"
	"time"

	"github.com/phrazzld/gitsong/internal/domain"
)

// CallStore persists the outcome of external calls keyed by fingerprint.
type CallStore interface {
	// GetCall returns the cached call for a fingerprint.
	// Returns ErrCallNotFound if none was recorded.
	GetCall(ctx context.Context, fingerprint string) (*domain.CachedCall, error)

	// UpsertCall inserts or replaces the record for call.Fingerprint.
	// CreatedAt of an existing record is preserved.
	UpsertCall(ctx context.Context, call *domain.CachedCall) error
}

// RateLimitStore persists per-service call counters.
type RateLimitStore interface {
	// GetCounter returns the counter for a service.
	// Returns ErrCounterNotFound if the service was never called.
	GetCounter(ctx context.Context, service string) (*domain.RateLimitCounter, error)

	// IncrementCounter atomically records one live call for service.
	// A missing counter is created with limit and resetAt. An expired
	// counter (resetAt <= now) restarts at zero with nextReset before the
	// increment. Non-zero hints override the stored limit and reset time.
	IncrementCounter(ctx context.Context, inc CounterIncrement) (*domain.RateLimitCounter, error)
}

// CounterIncrement describes one live call against a service.
type CounterIncrement struct {
	Service string
	Now     time.Time
	// DefaultLimit and DefaultWindow seed new or expired counters.
	DefaultLimit  int
	DefaultWindow time.Duration
	// HintLimit and HintResetAt come from upstream rate-limit headers; zero means absent.
	HintLimit   int
	HintResetAt time.Time
}
