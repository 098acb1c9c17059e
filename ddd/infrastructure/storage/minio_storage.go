package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"

	"streaming-engine/ddd/domain/gateway"
	"streaming-engine/pkg/config"
	"streaming-engine/pkg/logger"
)

// MinioStorage MinIO存储实现
type MinioStorage struct {
	client             *minio.Client
	multipartThreshold int64
	partSize           uint64
	partThreads        uint
}

// NewMinioStorage 创建MinIO存储实例
func NewMinioStorage(client *minio.Client, publish config.PublishConfig) *MinioStorage {
	return &MinioStorage{
		client:             client,
		multipartThreshold: publish.MultipartThreshold,
		partSize:           uint64(publish.PartSize),
		partThreads:        uint(publish.PartThreads),
	}
}

var _ gateway.ObjectStorage = (*MinioStorage)(nil)

// Exists 检查对象是否存在
func (s *MinioStorage) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat object %s/%s failed: %w", bucket, key, err)
}

// Put 上传对象，超过阈值的文件使用并发分片上传
func (s *MinioStorage) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if size < 0 || size > s.multipartThreshold {
		opts.PartSize = s.partSize
		opts.NumThreads = s.partThreads
	} else {
		opts.DisableMultipart = true
	}

	info, err := s.client.PutObject(ctx, bucket, key, r, size, opts)
	if err != nil {
		logger.Error("Failed to upload object to MinIO", map[string]interface{}{
			"bucket":     bucket,
			"object_key": key,
			"error":      err.Error(),
		})
		return fmt.Errorf("upload object to minio failed: %w", err)
	}
	logger.Debug("Uploaded object", map[string]interface{}{
		"bucket":       bucket,
		"object_key":   key,
		"size":         info.Size,
		"content_type": contentType,
	})
	return nil
}

// Get 读取对象
func (s *MinioStorage) Get(ctx context.Context, bucket, key string) (*gateway.Object, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object from minio failed: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isNotFound(err) {
			return nil, gateway.ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat object from minio failed: %w", err)
	}
	return &gateway.Object{ReadCloser: obj, Size: stat.Size, ContentType: stat.ContentType}, nil
}

// ListKeys 按前缀列出对象
func (s *MinioStorage) ListKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	keys := make([]string, 0, 16)
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects failed: %w", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Delete 删除前缀下的所有对象
func (s *MinioStorage) Delete(ctx context.Context, bucket, prefix string) error {
	objects := s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	var firstErr error
	for rErr := range s.client.RemoveObjects(ctx, bucket, objects, minio.RemoveObjectsOptions{}) {
		logger.Warn("Failed to remove object", map[string]interface{}{
			"bucket":     bucket,
			"object_key": rErr.ObjectName,
			"error":      rErr.Err.Error(),
		})
		if firstErr == nil {
			firstErr = fmt.Errorf("remove object %s failed: %w", rErr.ObjectName, rErr.Err)
		}
	}
	return firstErr
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == 404
}
