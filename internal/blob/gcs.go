package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore: Google Cloud Storage. URL строится от public_url_base,
// например https://storage.googleapis.com/<bucket>.
type GCSStore struct {
	client *storage.Client
	bucket string
	urls
}

func NewGCS(ctx context.Context, bucket, credentialsPath, publicBase string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, urls: urls{base: publicBase}}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	obj := s.client.Bucket(s.bucket).Object(key)
	wc := obj.NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to copy file to GCS: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}
	return s.URL(key), nil
}

func (s *GCSStore) Delete(ctx context.Context, url string) error {
	key, ok := s.Key(url)
	if !ok {
		return fmt.Errorf("url %q is not served by this store", url)
	}
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *GCSStore) Exists(ctx context.Context, url string) (bool, error) {
	key, ok := s.Key(url)
	if !ok {
		return false, nil
	}
	_, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
