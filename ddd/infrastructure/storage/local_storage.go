package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"streaming-engine/ddd/domain/gateway"
)

const contentTypeDir = ".content-type"

// LocalStorage keeps objects as files under root/<bucket>/<key>. Content types are
// stored beside them under root/.content-type/<bucket>/<key>.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStorage{root: root}, nil
}

var _ gateway.ObjectStorage = (*LocalStorage)(nil)

func validBucket(bucket string) error {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || strings.HasPrefix(bucket, ".") {
		return fmt.Errorf("invalid bucket %q", bucket)
	}
	return nil
}

func (s *LocalStorage) objectPath(bucket, key string) (string, error) {
	if err := validBucket(bucket); err != nil {
		return "", err
	}
	clean := path.Clean("/" + key)
	if clean == "/" || clean != "/"+strings.TrimLeft(key, "/") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(clean)), nil
}

func (s *LocalStorage) metaPath(bucket, key string) string {
	return filepath.Join(s.root, contentTypeDir, bucket, filepath.FromSlash(path.Clean("/"+key)))
}

func (s *LocalStorage) Exists(ctx context.Context, bucket, key string) (bool, error) {
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (s *LocalStorage) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return err
	}
	n, err := io.Copy(tmp, readerWithContext(ctx, r))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil && size >= 0 && n != size {
		err = fmt.Errorf("short write: got %d of %d bytes", n, size)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	meta := s.metaPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(meta), 0o755); err != nil {
		return err
	}
	return os.WriteFile(meta, []byte(contentType), 0o644)
}

func (s *LocalStorage) Get(ctx context.Context, bucket, key string) (*gateway.Object, error) {
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, gateway.ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, gateway.ErrObjectNotFound
	}
	ct, _ := os.ReadFile(s.metaPath(bucket, key))
	return &gateway.Object{ReadCloser: f, Size: info.Size(), ContentType: string(ct)}, nil
}

func (s *LocalStorage) ListKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := validBucket(bucket); err != nil {
		return nil, err
	}
	base := filepath.Join(s.root, bucket)
	keys := make([]string, 0, 16)
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStorage) Delete(ctx context.Context, bucket, prefix string) error {
	keys, err := s.ListKeys(ctx, bucket, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		p, err := s.objectPath(bucket, key)
		if err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		_ = os.Remove(s.metaPath(bucket, key))
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
