package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
)

var (
	// ErrInvalidKey is returned for an empty key or one escaping the store root.
	ErrInvalidKey = errors.New("invalid artifact key")

	// ErrFetchFailed is returned when an artifact cannot be downloaded.
	ErrFetchFailed = errors.New("artifact fetch failed")

	// ErrTooLarge is returned when an artifact exceeds the configured size limit.
	ErrTooLarge = errors.New("artifact exceeds size limit")
)

// Object describes one stored artifact.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}

// Store writes artifacts under a key.
type Store interface {
	// Put stores the content of r under key, replacing any previous object.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (*Object, error)
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Key builds a storage key from parts. Each part is sanitised so that keys
// never contain separators or parent references.
func Key(parts ...string) (string, error) {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = unsafeKeyChars.ReplaceAllString(strings.TrimSpace(p), "_")
		p = strings.Trim(p, ".")
		if p == "" {
			return "", fmt.Errorf("%w: empty key segment", ErrInvalidKey)
		}
		clean = append(clean, p)
	}
	if len(clean) == 0 {
		return "", fmt.Errorf("%w: no key segments", ErrInvalidKey)
	}
	return strings.Join(clean, "/"), nil
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
