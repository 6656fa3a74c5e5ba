package callcache

import (
	"context"
	"log/slog"
	"time"

	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/store"
)

// RateLimitHint carries rate-limit information reported by an upstream
// response. Zero fields are treated as absent.
type RateLimitHint struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// TrackerConfig seeds counters for services that report no limits.
type TrackerConfig struct {
	DefaultLimit  int
	DefaultWindow time.Duration
}

// DefaultTrackerConfig returns a TrackerConfig with reasonable defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		DefaultLimit:  5000,
		DefaultWindow: time.Hour,
	}
}

// RateLimitTracker accounts live calls per service. It never blocks a call:
// exceeding the limit is logged, admission control is left to callers.
type RateLimitTracker struct {
	store  store.RateLimitStore
	config TrackerConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewRateLimitTracker creates a tracker backed by s.
func NewRateLimitTracker(s store.RateLimitStore, config TrackerConfig, logger *slog.Logger) *RateLimitTracker {
	defaults := DefaultTrackerConfig()
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = defaults.DefaultLimit
	}
	if config.DefaultWindow <= 0 {
		config.DefaultWindow = defaults.DefaultWindow
	}
	return &RateLimitTracker{
		store:  s,
		config: config,
		logger: logger.With("component", "rate_limit_tracker"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record accounts one live call against service. Store failures are logged
// and swallowed so bookkeeping never fails the request path.
func (t *RateLimitTracker) Record(ctx context.Context, service string, hint *RateLimitHint) {
	inc := store.CounterIncrement{
		Service:       service,
		Now:           t.now(),
		DefaultLimit:  t.config.DefaultLimit,
		DefaultWindow: t.config.DefaultWindow,
	}
	if hint != nil {
		inc.HintLimit = hint.Limit
		inc.HintResetAt = hint.ResetAt
	}

	counter, err := t.store.IncrementCounter(ctx, inc)
	if err != nil {
		t.logger.WarnContext(ctx, "failed to record rate limit usage",
			"service", service,
			"error", err)
		return
	}

	if counter.Exceeded() {
		t.logger.WarnContext(ctx, "rate limit exceeded",
			"service", service,
			"used", counter.Used,
			"limit", counter.Limit,
			"reset_at", counter.ResetAt)
		return
	}

	t.logger.DebugContext(ctx, "recorded live call",
		"service", service,
		"used", counter.Used,
		"limit", counter.Limit)
}

// Snapshot returns the current counter for service.
// Returns store.ErrCounterNotFound if the service was never called live.
func (t *RateLimitTracker) Snapshot(ctx context.Context, service string) (*domain.RateLimitCounter, error) {
	return t.store.GetCounter(ctx, service)
}
