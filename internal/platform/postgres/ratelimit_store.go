package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/store"
)

// RateLimitStore implements store.RateLimitStore.
type RateLimitStore struct {
	db store.DBTX
}

var _ store.RateLimitStore = (*RateLimitStore)(nil)

// NewRateLimitStore creates a RateLimitStore.
func NewRateLimitStore(db store.DBTX) *RateLimitStore {
	return &RateLimitStore{db: db}
}

// GetCounter implements store.RateLimitStore.
func (s *RateLimitStore) GetCounter(ctx context.Context, service string) (*domain.RateLimitCounter, error) {
	query := `
		SELECT service, "limit", used, reset_at, active
		FROM rate_limit_counters
		WHERE service = $1
	`
	c, err := scanCounter(s.db.QueryRowContext(ctx, query, service))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrCounterNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("rate_limit_counter", "get", "query failed", MapError(err))
	}
	return c, nil
}

// IncrementCounter implements store.RateLimitStore. The window reset and
// the increment happen in one statement so concurrent callers never lose
// a count.
func (s *RateLimitStore) IncrementCounter(
	ctx context.Context,
	inc store.CounterIncrement,
) (*domain.RateLimitCounter, error) {
	query := `
		INSERT INTO rate_limit_counters (service, "limit", used, reset_at, active)
		VALUES ($1, CASE WHEN $5::int > 0 THEN $5::int ELSE $2::int END, 1, COALESCE($6::timestamptz, $3::timestamptz), TRUE)
		ON CONFLICT (service) DO UPDATE SET
			used = CASE
				WHEN rate_limit_counters.reset_at <= $4::timestamptz THEN 1
				ELSE rate_limit_counters.used + 1
			END,
			reset_at = COALESCE($6::timestamptz, CASE
				WHEN rate_limit_counters.reset_at <= $4::timestamptz THEN $3::timestamptz
				ELSE rate_limit_counters.reset_at
			END),
			"limit" = CASE WHEN $5::int > 0 THEN $5::int ELSE rate_limit_counters."limit" END,
			active = TRUE
		RETURNING service, "limit", used, reset_at, active
	`

	var hintReset sql.NullTime
	if !inc.HintResetAt.IsZero() {
		hintReset = sql.NullTime{Time: inc.HintResetAt, Valid: true}
	}

	c, err := scanCounter(s.db.QueryRowContext(ctx, query,
		inc.Service,
		inc.DefaultLimit,
		inc.Now.Add(inc.DefaultWindow),
		inc.Now,
		inc.HintLimit,
		hintReset,
	))
	if err != nil {
		return nil, store.NewStoreError("rate_limit_counter", "increment", "write failed", MapError(err))
	}
	return c, nil
}

func scanCounter(row *sql.Row) (*domain.RateLimitCounter, error) {
	var c domain.RateLimitCounter
	if err := row.Scan(&c.Service, &c.Limit, &c.Used, &c.ResetAt, &c.Active); err != nil {
		return nil, err
	}
	c.ResetAt = c.ResetAt.UTC()
	return &c, nil
}
