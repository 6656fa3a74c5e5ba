package artifact

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
)

// FilesystemStore keeps artifacts in a local directory.
type FilesystemStore struct {
	root    string
	baseURL string
}

var _ Store = (*FilesystemStore)(nil)

// NewFilesystemStore creates the root directory if needed. baseURL, when
// set, is the public origin serving the directory; otherwise object URLs
// use the file scheme.
func NewFilesystemStore(root, baseURL string) (*FilesystemStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage dir %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", abs, err)
	}
	return &FilesystemStore{root: abs, baseURL: baseURL}, nil
}

// Put implements Store. The object is written to a temporary file and
// renamed into place, so readers never observe a partial artifact.
func (s *FilesystemStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (*Object, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	dest := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return nil, fmt.Errorf("failed to move %s into place: %w", key, err)
	}

	u := (&url.URL{Scheme: "file", Path: filepath.ToSlash(dest)}).String()
	if s.baseURL != "" {
		u = publicURL(s.baseURL, key)
	}
	return &Object{Key: key, URL: u, Size: n, ContentType: contentType}, nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
