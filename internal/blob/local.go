package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore хранит объекты на диске; раздаются как статика (/uploads).
type LocalStore struct {
	Root string
	urls
}

func NewLocal(root, publicBase string) *LocalStore {
	return &LocalStore{Root: root, urls: urls{base: publicBase}}
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.Root, filepath.FromSlash(key))
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full := s.path(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(full)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return s.URL(key), nil
}

func (s *LocalStore) Delete(_ context.Context, url string) error {
	key, ok := s.Key(url)
	if !ok {
		return fmt.Errorf("url %q is not served by this store", url)
	}
	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStore) Exists(_ context.Context, url string) (bool, error) {
	key, ok := s.Key(url)
	if !ok {
		return false, nil
	}
	_, err := os.Stat(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *LocalStore) Close() error { return nil }
