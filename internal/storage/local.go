package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// localStorage keeps objects as plain files under a root directory.
// Used for development and tests; the API serves the root as static files.
type localStorage struct {
	root    string
	baseURL string
}

func NewLocalStorage(root, baseURL string) (FileStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &localStorage{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *localStorage) path(objectKey string) (string, error) {
	rel := filepath.FromSlash(objectKey)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid object key %q", objectKey)
	}
	return filepath.Join(l.root, rel), nil
}

func (l *localStorage) PutObject(ctx context.Context, objectKey string, body io.Reader, size int64, _ string) error {
	dst, err := l.path(objectKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after rename

	n, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if size >= 0 && n != size {
		return fmt.Errorf("short write for %q: wrote %d of %d bytes", objectKey, n, size)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (l *localStorage) GetObject(_ context.Context, objectKey string) (io.ReadCloser, error) {
	p, err := l.path(objectKey)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return f, err
}

func (l *localStorage) DeleteObject(_ context.Context, objectKey string) error {
	p, err := l.path(objectKey)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *localStorage) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

func (l *localStorage) ObjectURL(objectKey string) string {
	return l.baseURL + "/" + objectKey
}
