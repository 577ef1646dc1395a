package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/vladimiradmaev/dish-journal/internal/errors"
)

// LocalStore writes images into a directory that the HTTP server exposes under
// a public prefix.
type LocalStore struct {
	dir    string
	prefix string
}

func NewLocalStore(dir, prefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &LocalStore{dir: dir, prefix: "/" + strings.Trim(prefix, "/")}, nil
}

// Dir is the directory served as static files.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Prefix is the URL path the directory is served under.
func (s *LocalStore) Prefix() string {
	return s.prefix
}

func (s *LocalStore) Save(_ context.Context, name string, data []byte, _ string) (string, error) {
	name = filepath.Base(name)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		return "", apperrors.NewInternalError(fmt.Errorf("write image %s: %w", name, err))
	}
	return s.prefix + "/" + name, nil
}

func (s *LocalStore) path(url string) (string, error) {
	name, ok := strings.CutPrefix(url, s.prefix+"/")
	if !ok || name == "" || name != filepath.Base(name) {
		return "", apperrors.NewValidationError("image is not managed by this store").With("url", url)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *LocalStore) Load(_ context.Context, url string) ([]byte, error) {
	p, err := s.path(url)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("image", url)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return data, nil
}

func (s *LocalStore) Delete(_ context.Context, url string) error {
	p, err := s.path(url)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.NewInternalError(err)
	}
	return nil
}
