package gateway

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage 对象存储网关
type ObjectStorage interface {
	// Exists 检查对象是否存在
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// Put uploads size bytes from r. A negative size streams with an unknown length.
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error

	// Get 读取对象，调用方负责关闭
	Get(ctx context.Context, bucket, key string) (*Object, error)

	// ListKeys 按前缀列出对象键
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)

	// Delete removes every object under prefix. Deleting a missing prefix is not an error.
	Delete(ctx context.Context, bucket, prefix string) error
}

// Object is a readable stored object.
type Object struct {
	io.ReadCloser
	// Size is -1 when the backend does not report a length.
	Size        int64
	ContentType string
}
