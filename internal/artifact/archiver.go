package artifact

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// DefaultMaxBytes bounds a single downloaded artifact.
const DefaultMaxBytes = 100 << 20

// Archiver downloads artifacts from their source URL into a Store.
type Archiver struct {
	store    Store
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// NewArchiver creates an Archiver. A nil httpClient gets a client with a
// five minute timeout; maxBytes <= 0 means DefaultMaxBytes.
func NewArchiver(store Store, httpClient *http.Client, maxBytes int64, logger *slog.Logger) *Archiver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Archiver{
		store:    store,
		client:   httpClient,
		maxBytes: maxBytes,
		logger:   logger.With("component", "artifact_archiver"),
	}
}

// Archive downloads sourceURL and stores it under keyPrefix plus a file
// extension derived from the URL or the response content type.
func (a *Archiver) Archive(ctx context.Context, sourceURL, keyPrefix string) (*Object, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: unsupported source url %q", ErrFetchFailed, sourceURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrFetchFailed, u.Host, resp.StatusCode)
	}
	if resp.ContentLength > a.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	contentType := resp.Header.Get("Content-Type")
	key := keyPrefix + extension(u.Path, contentType)

	body := &limitedReader{r: resp.Body, remaining: a.maxBytes}
	obj, err := a.store.Put(ctx, key, body, contentType)
	if err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "archived artifact",
		"key", obj.Key,
		"size", obj.Size,
		"source_host", u.Host)
	return obj, nil
}

func extension(urlPath, contentType string) string {
	if ext := path.Ext(urlPath); ext != "" && len(ext) <= 5 {
		return strings.ToLower(ext)
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "audio/mpeg", "audio/mp3":
			return ".mp3"
		case "audio/wav", "audio/x-wav":
			return ".wav"
		case "image/jpeg":
			return ".jpg"
		case "image/png":
			return ".png"
		}
	}
	return ".bin"
}

// limitedReader fails with ErrTooLarge instead of silently truncating.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
