package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/store"
)

// Payload encodings stored in cached_calls.payload_encoding.
const (
	encodingIdentity = "identity"
	encodingZstd     = "zstd"
)

// DefaultCompressThreshold is the payload size above which CallStore
// compresses request and response bodies.
const DefaultCompressThreshold = 4 << 10

// EncodeAll and DecodeAll are safe for concurrent use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// CallStore implements store.CallStore. Large payloads are stored zstd
// compressed.
type CallStore struct {
	db                store.DBTX
	compressThreshold int
}

var _ store.CallStore = (*CallStore)(nil)

// NewCallStore creates a CallStore. A threshold <= 0 uses
// DefaultCompressThreshold.
func NewCallStore(db store.DBTX, compressThreshold int) *CallStore {
	if compressThreshold <= 0 {
		compressThreshold = DefaultCompressThreshold
	}
	return &CallStore{db: db, compressThreshold: compressThreshold}
}

// GetCall implements store.CallStore.
func (s *CallStore) GetCall(ctx context.Context, fingerprint string) (*domain.CachedCall, error) {
	query := `
		SELECT fingerprint, service, endpoint, method, request_payload, response_payload,
		       payload_encoding, status_code, succeeded, error_message,
		       created_at, responded_at, expires_at
		FROM cached_calls
		WHERE fingerprint = $1
	`

	var (
		c         domain.CachedCall
		encoding  string
		errMsg    sql.NullString
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, fingerprint).Scan(
		&c.Fingerprint,
		&c.Service,
		&c.Endpoint,
		&c.Method,
		&c.RequestPayload,
		&c.ResponsePayload,
		&encoding,
		&c.StatusCode,
		&c.Succeeded,
		&errMsg,
		&c.CreatedAt,
		&c.RespondedAt,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrCallNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("cached_call", "get", "query failed", MapError(err))
	}

	if encoding == encodingZstd {
		if c.RequestPayload, err = decompress(c.RequestPayload); err != nil {
			return nil, store.NewStoreError("cached_call", "get", "corrupt request payload", err)
		}
		if c.ResponsePayload, err = decompress(c.ResponsePayload); err != nil {
			return nil, store.NewStoreError("cached_call", "get", "corrupt response payload", err)
		}
	}
	c.ErrorMessage = errMsg.String
	c.CreatedAt = c.CreatedAt.UTC()
	c.RespondedAt = c.RespondedAt.UTC()
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		c.ExpiresAt = &t
	}
	return &c, nil
}

// UpsertCall implements store.CallStore. The first created_at of a
// fingerprint is kept.
func (s *CallStore) UpsertCall(ctx context.Context, call *domain.CachedCall) error {
	query := `
		INSERT INTO cached_calls (
			fingerprint, service, endpoint, method, request_payload, response_payload,
			payload_encoding, status_code, succeeded, error_message,
			created_at, responded_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (fingerprint) DO UPDATE SET
			service = EXCLUDED.service,
			endpoint = EXCLUDED.endpoint,
			method = EXCLUDED.method,
			request_payload = EXCLUDED.request_payload,
			response_payload = EXCLUDED.response_payload,
			payload_encoding = EXCLUDED.payload_encoding,
			status_code = EXCLUDED.status_code,
			succeeded = EXCLUDED.succeeded,
			error_message = EXCLUDED.error_message,
			responded_at = EXCLUDED.responded_at,
			expires_at = EXCLUDED.expires_at
	`

	encoding := encodingIdentity
	req, resp := call.RequestPayload, call.ResponsePayload
	if len(req)+len(resp) > s.compressThreshold {
		encoding = encodingZstd
		req, resp = compress(req), compress(resp)
	}

	createdAt := call.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		call.Fingerprint,
		call.Service,
		call.Endpoint,
		call.Method,
		req,
		resp,
		encoding,
		call.StatusCode,
		call.Succeeded,
		nullString(call.ErrorMessage),
		createdAt,
		call.RespondedAt,
		nullTime(call.ExpiresAt),
	)
	if err != nil {
		return store.NewStoreError("cached_call", "upsert", "write failed", MapError(err))
	}
	return nil
}

func compress(b []byte) []byte {
	if b == nil {
		return nil
	}
	return zstdEncoder.EncodeAll(b, make([]byte, 0, len(b)/2))
}

func decompress(b []byte) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	out, err := zstdDecoder.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
