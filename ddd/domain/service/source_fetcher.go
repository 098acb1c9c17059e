package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"streaming-engine/ddd/domain/gateway"
	"streaming-engine/ddd/domain/vo"
	"streaming-engine/pkg/logger"
)

// SourceFetcher materializes a job's source asset on local disk.
type SourceFetcher interface {
	// Fetch returns the local source path and whether a copy was written under scratchDir.
	// Without a bucket the locator is already local and is returned unchanged.
	Fetch(ctx context.Context, locator, bucket, scratchDir string) (string, bool, error)
}

type sourceFetcherImpl struct {
	storage gateway.ObjectStorage
}

func NewSourceFetcher(storage gateway.ObjectStorage) SourceFetcher {
	return &sourceFetcherImpl{storage: storage}
}

func (f *sourceFetcherImpl) Fetch(ctx context.Context, locator, bucket, scratchDir string) (string, bool, error) {
	if bucket == "" {
		return locator, false, nil
	}
	key := strings.TrimLeft(locator, "/")
	detail := bucket + "/" + key

	exists, err := f.storage.Exists(ctx, bucket, key)
	if err != nil {
		return "", false, vo.NewJobError(vo.ErrFetch, vo.JobStateFetching, detail, err)
	}
	if !exists {
		return "", false, vo.NewJobError(vo.ErrSourceNotFound, vo.JobStateFetching, detail, nil)
	}

	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return "", false, vo.NewJobError(vo.ErrFetch, vo.JobStateFetching, detail, err)
	}
	local := filepath.Join(scratchDir, uuid.NewString()+strings.ToLower(filepath.Ext(key)))
	if err := f.download(ctx, bucket, key, local); err != nil {
		_ = os.Remove(local)
		return "", false, vo.NewJobError(vo.ErrFetch, vo.JobStateFetching, detail, err)
	}
	return local, true, nil
}

func (f *sourceFetcherImpl) download(ctx context.Context, bucket, key, local string) error {
	obj, err := f.storage.Get(ctx, bucket, key)
	if err != nil {
		return err
	}
	defer obj.Close()

	file, err := os.OpenFile(local, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	n, err := io.Copy(file, obj)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if obj.Size >= 0 && n != obj.Size {
		return fmt.Errorf("short read: got %d of %d bytes", n, obj.Size)
	}
	logger.Info("Source fetched", map[string]interface{}{
		"bucket":     bucket,
		"key":        key,
		"local_path": local,
		"size":       n,
	})
	return nil
}
