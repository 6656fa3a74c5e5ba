package callcache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/redact"
	"github.com/phrazzld/gitsong/internal/store"
)

// TTL values with special meaning for FetchOrCall.
const (
	// NoExpiry caches a successful response forever.
	NoExpiry time.Duration = 0
	// NoCache records the call but never serves it as a hit.
	NoCache time.Duration = -1
)

// Call identifies one logical external request.
type Call struct {
	Service  string
	Method   string
	Endpoint string
	Params   any
}

// LiveResponse is what a live call returns on success.
type LiveResponse struct {
	Payload    []byte
	StatusCode int
	RateLimit  *RateLimitHint
}

// LiveFunc performs the actual external request.
type LiveFunc func(ctx context.Context) (*LiveResponse, error)

// Result is the outcome of FetchOrCall.
type Result struct {
	Payload     []byte
	StatusCode  int
	Cached      bool
	Fingerprint Fingerprint
}

// Options configures a Cache.
type Options struct {
	// SingleFlight collapses concurrent misses on one fingerprint into a
	// single live call.
	SingleFlight bool
	// SharedCallTimeout bounds a collapsed live call, which does not stop
	// when one of its callers goes away. Zero means DefaultSharedCallTimeout.
	SharedCallTimeout time.Duration
}

// DefaultSharedCallTimeout bounds a collapsed live call when Options leaves it unset.
const DefaultSharedCallTimeout = 2 * time.Minute

// Cache serves external calls from the call store when a fresh successful
// record exists and otherwise performs the live call and records it.
type Cache struct {
	calls        store.CallStore
	tracker      *RateLimitTracker
	logger       *slog.Logger
	singleFlight  bool
	sharedTimeout time.Duration
	group         singleflight.Group
	now           func() time.Time
}

// New creates a Cache.
func New(calls store.CallStore, tracker *RateLimitTracker, opts Options, logger *slog.Logger) *Cache {
	if opts.SharedCallTimeout <= 0 {
		opts.SharedCallTimeout = DefaultSharedCallTimeout
	}
	return &Cache{
		calls:         calls,
		tracker:       tracker,
		logger:        logger.With("component", "call_cache"),
		singleFlight:  opts.SingleFlight,
		sharedTimeout: opts.SharedCallTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Tracker returns the rate-limit tracker the cache records live calls with.
func (c *Cache) Tracker() *RateLimitTracker {
	return c.tracker
}

// FetchOrCall returns the cached response for call when a fresh successful
// record exists. Otherwise it invokes live, records the outcome and, on
// success, counts the call against the service's rate limit.
//
// Failures of live are returned as *CallError and are never served from
// cache. Failures of the bookkeeping writes are logged and do not affect
// the result.
func (c *Cache) FetchOrCall(ctx context.Context, call Call, ttl time.Duration, live LiveFunc) (*Result, error) {
	if live == nil {
		return nil, ErrNilLiveFunc
	}

	fp, err := NewFingerprint(call.Service, call.Method, call.Endpoint, call.Params)
	if err != nil {
		return nil, err
	}

	log := c.logger.With(
		"service", call.Service,
		"endpoint", call.Endpoint,
		"fingerprint", fp.Short(),
	)

	if cached := c.lookup(ctx, log, fp); cached != nil {
		log.DebugContext(ctx, "serving external call from cache")
		return &Result{
			Payload:     cached.ResponsePayload,
			StatusCode:  cached.StatusCode,
			Cached:      true,
			Fingerprint: fp,
		}, nil
	}

	if !c.singleFlight {
		return c.callLive(ctx, log, call, fp, ttl, live)
	}

	// The collapsed call keeps the first caller's values but not its
	// cancellation; every caller stops waiting on its own ctx.
	ch := c.group.DoChan(fp.String(), func() (any, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.sharedTimeout)
		defer cancel()
		return c.callLive(sharedCtx, log, call, fp, ttl, live)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-ch:
		if out.Shared {
			log.DebugContext(ctx, "shared in-flight external call")
		}
		if out.Err != nil {
			return nil, out.Err
		}
		res := *out.Val.(*Result)
		return &res, nil
	}
}

func (c *Cache) lookup(ctx context.Context, log *slog.Logger, fp Fingerprint) *domain.CachedCall {
	cached, err := c.calls.GetCall(ctx, fp.String())
	if err != nil {
		if !errors.Is(err, store.ErrCallNotFound) {
			log.WarnContext(ctx, "cache lookup failed, treating as miss", "error", err)
		}
		return nil
	}
	if !cached.IsFresh(c.now()) {
		return nil
	}
	return cached
}

func (c *Cache) callLive(
	ctx context.Context,
	log *slog.Logger,
	call Call,
	fp Fingerprint,
	ttl time.Duration,
	live LiveFunc,
) (*Result, error) {
	requestPayload, _ := Canonicalize(call.Params)
	record := &domain.CachedCall{
		Fingerprint:    fp.String(),
		Service:        call.Service,
		Endpoint:       call.Endpoint,
		Method:         strings.ToUpper(call.Method),
		RequestPayload: requestPayload,
		CreatedAt:      c.now(),
	}

	resp, liveErr := live(ctx)
	record.RespondedAt = c.now()

	// Bookkeeping outlives a cancelled caller.
	bookkeepingCtx := context.WithoutCancel(ctx)

	if liveErr != nil {
		record.Succeeded = false
		record.ErrorMessage = redact.Error(liveErr)
		record.StatusCode = statusCodeOf(liveErr)
		c.record(bookkeepingCtx, log, record)

		log.WarnContext(ctx, "external call failed",
			"status_code", record.StatusCode,
			"error", record.ErrorMessage)
		return nil, &CallError{
			Service:     call.Service,
			Endpoint:    call.Endpoint,
			Fingerprint: fp,
			Err:         liveErr,
		}
	}
	if resp == nil {
		resp = &LiveResponse{}
	}

	record.Succeeded = true
	record.ResponsePayload = resp.Payload
	record.StatusCode = resp.StatusCode
	record.ExpiresAt = expiry(record.RespondedAt, ttl)
	c.record(bookkeepingCtx, log, record)

	if c.tracker != nil {
		c.tracker.Record(bookkeepingCtx, call.Service, resp.RateLimit)
	}

	return &Result{
		Payload:     resp.Payload,
		StatusCode:  resp.StatusCode,
		Fingerprint: fp,
	}, nil
}

func (c *Cache) record(ctx context.Context, log *slog.Logger, record *domain.CachedCall) {
	if err := c.calls.UpsertCall(ctx, record); err != nil {
		log.ErrorContext(ctx, "failed to record external call",
			"succeeded", record.Succeeded,
			"error", err)
	}
}

func expiry(respondedAt time.Time, ttl time.Duration) *time.Time {
	switch {
	case ttl == NoExpiry:
		return nil
	case ttl < 0:
		at := respondedAt
		return &at
	default:
		at := respondedAt.Add(ttl)
		return &at
	}
}
