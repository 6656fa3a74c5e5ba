package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/gitsong/internal/callcache"
)

const (
	// DefaultMaxBodyBytes caps how much of a response body is read.
	DefaultMaxBodyBytes int64 = 10 << 20
	// DefaultTimeout applies when no http.Client is supplied.
	DefaultTimeout = 30 * time.Second

	maxErrorBodyRunes = 512
)

// Config describes one upstream service.
type Config struct {
	Service      string
	BaseURL      string
	Headers      map[string]string
	MaxBodyBytes int64
}

// Request is a single JSON call. Headers are sent but do not take part in
// the request fingerprint.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Headers map[string]string
	TTL     time.Duration
}

// Response is the body and status of a successful call.
type Response struct {
	StatusCode int
	Body       []byte
	Cached     bool
}

// Client performs cached calls against one service.
type Client struct {
	service      string
	baseURL      *url.URL
	headers      map[string]string
	maxBodyBytes int64
	http         *http.Client
	cache        *callcache.Cache
	logger       *slog.Logger
}

// New creates a Client. A nil httpClient gets a client with DefaultTimeout.
func New(cfg Config, httpClient *http.Client, cache *callcache.Cache, logger *slog.Logger) (*Client, error) {
	if cfg.Service == "" {
		return nil, fmt.Errorf("%w: service name is required", ErrInvalidRequest)
	}
	if cache == nil {
		return nil, fmt.Errorf("%w: call cache is required", ErrInvalidRequest)
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid base URL %q", ErrInvalidRequest, cfg.BaseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	return &Client{
		service:      cfg.Service,
		baseURL:      base,
		headers:      cfg.Headers,
		maxBodyBytes: cfg.MaxBodyBytes,
		http:         httpClient,
		cache:        cache,
		logger:       logger.With("component", "gateway", "service", cfg.Service),
	}, nil
}

// Service returns the service name used for caching and rate limits.
func (c *Client) Service() string {
	return c.service
}

// Do executes req through the call cache.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	if !strings.HasPrefix(req.Path, "/") {
		return nil, fmt.Errorf("%w: path %q must start with /", ErrInvalidRequest, req.Path)
	}

	var body []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot encode body: %v", ErrInvalidRequest, err)
		}
		body = b
	}

	params := map[string]any{}
	if len(req.Query) > 0 {
		params["query"] = req.Query
	}
	if body != nil {
		params["body"] = json.RawMessage(body)
	}

	call := callcache.Call{
		Service:  c.service,
		Method:   method,
		Endpoint: req.Path,
		Params:   params,
	}

	res, err := c.cache.FetchOrCall(ctx, call, req.TTL, func(ctx context.Context) (*callcache.LiveResponse, error) {
		return c.send(ctx, method, req, body)
	})
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: res.StatusCode,
		Body:       res.Payload,
		Cached:     res.Cached,
	}, nil
}

func (c *Client) send(ctx context.Context, method string, req Request, body []byte) (*callcache.LiveResponse, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + req.Path
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.DebugContext(ctx, "live call completed",
		"method", method,
		"path", req.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Service:  c.service,
			Endpoint: req.Path,
			Code:     resp.StatusCode,
			Body:     truncate(strings.TrimSpace(string(data)), maxErrorBodyRunes),
		}
	}

	return &callcache.LiveResponse{
		Payload:    data,
		StatusCode: resp.StatusCode,
		RateLimit:  rateLimitHint(resp.Header),
	}, nil
}

// DecodeJSON unmarshals the response body into v.
func DecodeJSON(resp *Response, v any) error {
	if resp == nil || len(resp.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// rateLimitHint reads the conventional X-RateLimit-* headers.
func rateLimitHint(h http.Header) *callcache.RateLimitHint {
	limit, limitErr := strconv.Atoi(h.Get("X-RateLimit-Limit"))
	remaining, remainingErr := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	reset, resetErr := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	if limitErr != nil && remainingErr != nil && resetErr != nil {
		return nil
	}

	hint := &callcache.RateLimitHint{}
	if limitErr == nil {
		hint.Limit = limit
	}
	if remainingErr == nil {
		hint.Remaining = remaining
	}
	if resetErr == nil && reset > 0 {
		hint.ResetAt = time.Unix(reset, 0).UTC()
	}
	return hint
}

func truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "..."
}
