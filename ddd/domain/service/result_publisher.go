package service

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"streaming-engine/ddd/domain/gateway"
	"streaming-engine/ddd/domain/vo"
	"streaming-engine/pkg/logger"
)

const (
	segmentExtension       = ".ts"
	segmentContentType     = "video/mp2t"
	playlistContentType    = "application/vnd.apple.mpegurl"
	defaultContentType     = "application/octet-stream"
	defaultPublishDepth    = 16
	defaultPublishParallel = 4
)

func init() {
	_ = mime.AddExtensionType(".m3u8", playlistContentType)
	_ = mime.AddExtensionType(".key", defaultContentType)
}

// PublishOptions bounds the traversal and the upload pool.
type PublishOptions struct {
	Concurrency int
	MaxDepth    int
}

// ResultPublisher uploads a local tree to object storage, all or nothing.
type ResultPublisher interface {
	Publish(ctx context.Context, root, destination, bucket string) error
}

type resultPublisherImpl struct {
	storage gateway.ObjectStorage
	opts    PublishOptions
}

func NewResultPublisher(storage gateway.ObjectStorage, opts PublishOptions) ResultPublisher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultPublishParallel
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultPublishDepth
	}
	return &resultPublisherImpl{storage: storage, opts: opts}
}

type publishFile struct {
	local string
	rel   string
}

func (p *resultPublisherImpl) Publish(ctx context.Context, root, destination, bucket string) error {
	info, err := os.Stat(root)
	if err != nil {
		return vo.NewJobError(vo.ErrPublish, vo.JobStatePublishing, root, err)
	}
	if !info.IsDir() {
		return vo.NewJobError(vo.ErrPublish, vo.JobStatePublishing, root, fmt.Errorf("not a directory"))
	}

	files := make([]publishFile, 0, 64)
	visited := make(map[string]struct{})
	if err := p.collect(root, "", 0, visited, &files); err != nil {
		return vo.NewJobError(vo.ErrPublish, vo.JobStatePublishing, root, err)
	}

	destination = strings.Trim(destination, "/")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for _, f := range files {
		g.Go(func() error {
			key := path.Join(destination, f.rel)
			if err := p.upload(gctx, bucket, key, f.local); err != nil {
				return vo.NewJobError(vo.ErrPublish, vo.JobStatePublishing, key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Published tree", map[string]interface{}{
		"root":        root,
		"bucket":      bucket,
		"destination": destination,
		"files":       len(files),
	})
	return nil
}

// collect walks dir depth first. Directories are identified by their resolved path so a
// symlink pointing back up the tree is visited once.
func (p *resultPublisherImpl) collect(dir, rel string, depth int, visited map[string]struct{}, out *[]publishFile) error {
	if depth > p.opts.MaxDepth {
		return fmt.Errorf("directory %s exceeds max depth %d", dir, p.opts.MaxDepth)
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	if _, seen := visited[resolved]; seen {
		logger.Warnf("Skipping already visited directory path=%s resolved=%s", dir, resolved)
		return nil
	}
	visited[resolved] = struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		local := filepath.Join(dir, entry.Name())
		childRel := path.Join(rel, entry.Name())
		info, err := os.Stat(local)
		if err != nil {
			return err
		}
		switch {
		case info.IsDir():
			if err := p.collect(local, childRel, depth+1, visited, out); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			*out = append(*out, publishFile{local: local, rel: childRel})
		}
	}
	return nil
}

func (p *resultPublisherImpl) upload(ctx context.Context, bucket, key, local string) error {
	file, err := os.Open(local)
	if err != nil {
		return err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return err
	}
	return p.storage.Put(ctx, bucket, key, file, info.Size(), ContentTypeFor(local))
}

// ContentTypeFor infers the content type of a published file. Segments are always
// video/mp2t; other files use the extension table, then content sniffing.
func ContentTypeFor(local string) string {
	if ct := ContentTypeByName(local); ct != defaultContentType {
		return ct
	}
	if mt, err := mimetype.DetectFile(local); err == nil && mt.String() != "" {
		return mt.String()
	}
	return defaultContentType
}

// ContentTypeByName resolves a content type from the extension alone.
func ContentTypeByName(name string) string {
	ext := strings.ToLower(path.Ext(filepath.ToSlash(name)))
	if ext == segmentExtension {
		return segmentContentType
	}
	if ext != "" {
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	return defaultContentType
}
