package callcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/platform/logger"
	"github.com/phrazzld/gitsong/internal/store"
	"github.com/phrazzld/gitsong/internal/store/memstore"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("upstream returned %d", e.code) }
func (e statusErr) StatusCode() int { return e.code }

type fixture struct {
	cache    *Cache
	calls    *memstore.CallStore
	counters *memstore.RateLimitStore
	clock    *clock
}

func newFixture(t *testing.T, singleFlight bool) *fixture {
	t.Helper()

	clk := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	calls := memstore.NewCallStore()
	counters := memstore.NewRateLimitStore()

	tracker := NewRateLimitTracker(counters, TrackerConfig{DefaultLimit: 3, DefaultWindow: time.Hour}, logger.Discard())
	tracker.now = clk.Now
	c := New(calls, tracker, Options{SingleFlight: singleFlight}, logger.Discard())
	c.now = clk.Now

	return &fixture{cache: c, calls: calls, counters: counters, clock: clk}
}

func countingLive(n *int32, payload string) LiveFunc {
	return func(ctx context.Context) (*LiveResponse, error) {
		atomic.AddInt32(n, 1)
		return &LiveResponse{Payload: []byte(payload), StatusCode: 200}, nil
	}
}

func usedCalls(t *testing.T, f *fixture, service string) int {
	t.Helper()
	counter, err := f.counters.GetCounter(context.Background(), service)
	if errors.Is(err, store.ErrCounterNotFound) {
		return 0
	}
	require.NoError(t, err)
	return counter.Used
}

var commitsCall = Call{
	Service:  "github",
	Method:   "GET",
	Endpoint: "/repos/o/r/commits",
	Params:   map[string]any{"since": "2024-01-01T00:00:00Z"},
}

func TestFetchOrCall_HitSkipsLiveCallAndCounter(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()
	var live int32

	first, err := f.cache.FetchOrCall(ctx, commitsCall, time.Hour, countingLive(&live, `[1]`))
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, usedCalls(t, f, "github"))

	second, err := f.cache.FetchOrCall(ctx, commitsCall, time.Hour, countingLive(&live, `[2]`))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, []byte(`[1]`), second.Payload)
	assert.Equal(t, 200, second.StatusCode)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	assert.EqualValues(t, 1, atomic.LoadInt32(&live))
	assert.Equal(t, 1, usedCalls(t, f, "github"))
}

func TestFetchOrCall_ExpiredEntryIsRefreshed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()
	var live int32

	_, err := f.cache.FetchOrCall(ctx, commitsCall, time.Minute, countingLive(&live, `"old"`))
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)

	res, err := f.cache.FetchOrCall(ctx, commitsCall, time.Minute, countingLive(&live, `"new"`))
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, []byte(`"new"`), res.Payload)
	assert.EqualValues(t, 2, live)
	assert.Equal(t, 1, f.calls.Len())
}

func TestFetchOrCall_NoExpiryAndNoCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("no expiry never goes stale", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, false)
		var live int32

		_, err := f.cache.FetchOrCall(ctx, commitsCall, NoExpiry, countingLive(&live, `1`))
		require.NoError(t, err)
		f.clock.Advance(24 * 365 * time.Hour)

		res, err := f.cache.FetchOrCall(ctx, commitsCall, NoExpiry, countingLive(&live, `2`))
		require.NoError(t, err)
		assert.True(t, res.Cached)
		assert.EqualValues(t, 1, live)

		stored, err := f.calls.GetCall(ctx, res.Fingerprint.String())
		require.NoError(t, err)
		assert.Nil(t, stored.ExpiresAt)
	})

	t.Run("no cache records but never hits", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, false)
		var live int32

		res, err := f.cache.FetchOrCall(ctx, commitsCall, NoCache, countingLive(&live, `1`))
		require.NoError(t, err)
		_, err = f.cache.FetchOrCall(ctx, commitsCall, NoCache, countingLive(&live, `2`))
		require.NoError(t, err)
		assert.EqualValues(t, 2, live)

		stored, err := f.calls.GetCall(ctx, res.Fingerprint.String())
		require.NoError(t, err)
		require.NotNil(t, stored.ExpiresAt)
		assert.Equal(t, stored.RespondedAt, *stored.ExpiresAt)
		assert.Equal(t, 2, usedCalls(t, f, "github"))
	})
}

func TestFetchOrCall_FailureRecordedNotCountedAndRetried(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()

	failing := func(ctx context.Context) (*LiveResponse, error) {
		return nil, statusErr{code: 503}
	}

	_, err := f.cache.FetchOrCall(ctx, commitsCall, time.Hour, failing)
	require.Error(t, err)

	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "github", callErr.Service)
	assert.Equal(t, "/repos/o/r/commits", callErr.Endpoint)
	var se statusErr
	assert.ErrorAs(t, err, &se)

	stored, err := f.calls.GetCall(ctx, callErr.Fingerprint.String())
	require.NoError(t, err)
	assert.False(t, stored.Succeeded)
	assert.Equal(t, 503, stored.StatusCode)
	assert.Nil(t, stored.ExpiresAt)
	assert.Contains(t, stored.ErrorMessage, "503")
	assert.Equal(t, 0, usedCalls(t, f, "github"))

	// A failed record is never a hit: the next request goes live again.
	var live int32
	res, err := f.cache.FetchOrCall(ctx, commitsCall, time.Hour, countingLive(&live, `ok`))
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.EqualValues(t, 1, live)
	assert.Equal(t, 1, usedCalls(t, f, "github"))
}

func TestFetchOrCall_FailedRecordWithFutureExpiryIsNotAHit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()

	fp, err := NewFingerprint(commitsCall.Service, commitsCall.Method, commitsCall.Endpoint, commitsCall.Params)
	require.NoError(t, err)
	expires := f.clock.Now().Add(time.Hour)
	require.NoError(t, f.calls.UpsertCall(ctx, &domain.CachedCall{
		Fingerprint:     fp.String(),
		Service:         commitsCall.Service,
		Endpoint:        commitsCall.Endpoint,
		Method:          commitsCall.Method,
		ResponsePayload: []byte(`stale`),
		StatusCode:      502,
		Succeeded:       false,
		ErrorMessage:    "bad gateway",
		CreatedAt:       f.clock.Now(),
		RespondedAt:     f.clock.Now(),
		ExpiresAt:       &expires,
	}))

	var live int32
	res, err := f.cache.FetchOrCall(ctx, commitsCall, time.Hour, countingLive(&live, `fresh`))
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, []byte(`fresh`), res.Payload)
	assert.EqualValues(t, 1, live)
	assert.Equal(t, 1, usedCalls(t, f, "github"))

	stored, err := f.calls.GetCall(ctx, fp.String())
	require.NoError(t, err)
	assert.True(t, stored.Succeeded)
	assert.Empty(t, stored.ErrorMessage)
}

// Three live calls then a cached fourth leave the counter at three.
func TestFetchOrCall_CounterScenario(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()
	var live int32

	for i := 0; i < 3; i++ {
		call := commitsCall
		call.Params = map[string]any{"page": i}
		_, err := f.cache.FetchOrCall(ctx, call, time.Hour, countingLive(&live, `[]`))
		require.NoError(t, err)
	}
	call := commitsCall
	call.Params = map[string]any{"page": 0}
	res, err := f.cache.FetchOrCall(ctx, call, time.Hour, countingLive(&live, `[]`))
	require.NoError(t, err)
	assert.True(t, res.Cached)

	counter, err := f.cache.Tracker().Snapshot(ctx, "github")
	require.NoError(t, err)
	assert.Equal(t, 3, counter.Used)
	assert.Equal(t, 0, counter.Remaining())
	assert.False(t, counter.Exceeded())
}

func TestFetchOrCall_BookkeepingFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()
	buf, log := logger.NewTestLogger(t)
	f.cache.logger = log

	f.calls.UpsertFn = func(ctx context.Context, call *domain.CachedCall) error {
		return errors.New("disk full")
	}
	f.calls.GetFn = func(ctx context.Context, fp string) (*domain.CachedCall, error) {
		return nil, errors.New("connection reset")
	}

	var live int32
	res, err := f.cache.FetchOrCall(ctx, commitsCall, time.Hour, countingLive(&live, `payload`))
	require.NoError(t, err)
	assert.Equal(t, []byte(`payload`), res.Payload)
	assert.EqualValues(t, 1, live)

	logger.AssertLogContains(t, buf, "failed to record external call")
	logger.AssertLogContains(t, buf, "cache lookup failed")
}

func TestFetchOrCall_LiveCallReceivesResponseHints(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()
	reset := f.clock.Now().Add(10 * time.Minute)

	_, err := f.cache.FetchOrCall(ctx, commitsCall, time.Hour, func(ctx context.Context) (*LiveResponse, error) {
		return &LiveResponse{
			Payload:    []byte(`{}`),
			StatusCode: 200,
			RateLimit:  &RateLimitHint{Limit: 60, Remaining: 59, ResetAt: reset},
		}, nil
	})
	require.NoError(t, err)

	counter, err := f.cache.Tracker().Snapshot(ctx, "github")
	require.NoError(t, err)
	assert.Equal(t, 60, counter.Limit)
	assert.Equal(t, 1, counter.Used)
	assert.True(t, counter.ResetAt.Equal(reset))
}

func TestFetchOrCall_InvalidInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.cache.FetchOrCall(ctx, commitsCall, time.Hour, nil)
	assert.ErrorIs(t, err, ErrNilLiveFunc)

	bad := commitsCall
	bad.Params = map[string]any{"f": func() {}}
	var live int32
	_, err = f.cache.FetchOrCall(ctx, bad, time.Hour, countingLive(&live, `x`))
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.EqualValues(t, 0, live)
	assert.Equal(t, 0, f.calls.Len())
}

func TestFetchOrCall_SingleFlightSharesLiveCall(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	var live int32
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	slow := func(ctx context.Context) (*LiveResponse, error) {
		if atomic.AddInt32(&live, 1) == 1 {
			started <- struct{}{}
		}
		<-release
		return &LiveResponse{Payload: []byte(`shared`), StatusCode: 200}, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*Result, callers)
	errs := make([]error, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = f.cache.FetchOrCall(ctx, commitsCall, time.Hour, slow)
	}()
	<-started
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.cache.FetchOrCall(ctx, commitsCall, time.Hour, slow)
		}(i)
	}

	// Give the followers time to join the in-flight call before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []byte(`shared`), results[i].Payload)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&live))
	assert.Equal(t, 1, usedCalls(t, f, "github"))
}

func TestFetchOrCall_SingleFlightOutlivesCancelledCaller(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	var live int32
	started := make(chan struct{})
	release := make(chan struct{})
	slow := func(ctx context.Context) (*LiveResponse, error) {
		if atomic.AddInt32(&live, 1) == 1 {
			close(started)
		}
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &LiveResponse{Payload: []byte(`shared`), StatusCode: 200}, nil
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.cache.FetchOrCall(firstCtx, commitsCall, time.Hour, slow)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		res *Result
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := f.cache.FetchOrCall(context.Background(), commitsCall, time.Hour, slow)
		second <- outcome{res: res, err: err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, []byte(`shared`), got.res.Payload)
	assert.EqualValues(t, 1, atomic.LoadInt32(&live))
	assert.Equal(t, 1, usedCalls(t, f, "github"))
}
