package domain

import "time"

// CachedCall is the recorded outcome of one logical external request,
// keyed by its fingerprint. At most one CachedCall exists per fingerprint;
// every new attempt overwrites the previous record.
type CachedCall struct {
	Fingerprint     string     `json:"fingerprint"`
	Service         string     `json:"service"`
	Endpoint        string     `json:"endpoint"`
	Method          string     `json:"method"`
	RequestPayload  []byte     `json:"request_payload,omitempty"`
	ResponsePayload []byte     `json:"response_payload,omitempty"`
	StatusCode      int        `json:"status_code"`
	Succeeded       bool       `json:"succeeded"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	RespondedAt     time.Time  `json:"responded_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

// IsFresh reports whether the call can be served from cache at now:
// it succeeded and has either no expiry or an expiry after now.
func (c *CachedCall) IsFresh(now time.Time) bool {
	if c == nil || !c.Succeeded {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}

// RateLimitCounter tracks live calls made against one external service.
// It is accounting only; exceeding Limit does not block calls.
type RateLimitCounter struct {
	Service string    `json:"service"`
	Limit   int       `json:"limit"`
	Used    int       `json:"used"`
	ResetAt time.Time `json:"reset_at"`
	Active  bool      `json:"active"`
}

// Remaining returns how many calls are left in the current window.
// The value is negative once the limit has been exceeded.
func (c RateLimitCounter) Remaining() int {
	return c.Limit - c.Used
}

// Exceeded reports whether more calls were made than the limit allows.
func (c RateLimitCounter) Exceeded() bool {
	return c.Used > c.Limit
}
