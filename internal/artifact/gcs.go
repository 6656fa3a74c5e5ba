package artifact

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// objectWriter opens a writer for one object in a bucket.
type objectWriter interface {
	NewWriter(ctx context.Context, key, contentType string) io.WriteCloser
}

type bucketWriter struct {
	bucket *storage.BucketHandle
}

func (b bucketWriter) NewWriter(ctx context.Context, key, contentType string) io.WriteCloser {
	w := b.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

// GCSStore keeps artifacts in a Google Cloud Storage bucket.
type GCSStore struct {
	writer  objectWriter
	bucket  string
	baseURL string
}

var _ Store = (*GCSStore)(nil)

// NewGCSStore creates a store over bucket using client. baseURL overrides
// the default https://storage.googleapis.com/<bucket> object URL prefix.
func NewGCSStore(client *storage.Client, bucket, baseURL string) (*GCSStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client cannot be nil")
	}
	return newGCSStore(bucketWriter{bucket: client.Bucket(bucket)}, bucket, baseURL)
}

func newGCSStore(w objectWriter, bucket, baseURL string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStore{writer: w, bucket: bucket, baseURL: baseURL}, nil
}

// Put implements Store. The object becomes visible only when the writer
// closes successfully.
func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (*Object, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.writer.NewWriter(ctx, key, contentType)
	n, err := io.Copy(w, r)
	if err != nil {
		// Cancelling before Close aborts the upload.
		cancel()
		_ = w.Close()
		return nil, fmt.Errorf("failed to upload gs://%s/%s: %w", s.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize gs://%s/%s: %w", s.bucket, key, err)
	}
	return &Object{Key: key, URL: publicURL(s.baseURL, key), Size: n, ContentType: contentType}, nil
}
