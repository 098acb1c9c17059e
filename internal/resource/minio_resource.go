package resource

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"streaming-engine/pkg/assert"
	"streaming-engine/pkg/config"
	"streaming-engine/pkg/logger"
	"streaming-engine/pkg/manager"
)

var (
	minioResourceOnce      sync.Once
	singletonMinioResource *MinioResource
)

// MinioResource MinIO资源管理器
type MinioResource struct {
	client  *minio.Client
	buckets []string
}

// DefaultMinioResource 获取MinIO资源单例
func DefaultMinioResource() *MinioResource {
	assert.NotCircular()
	minioResourceOnce.Do(func() {
		singletonMinioResource = &MinioResource{}
	})
	assert.NotNil(singletonMinioResource)
	return singletonMinioResource
}

// MustOpen 初始化MinIO资源
func (r *MinioResource) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before MinioResource")
	}
	if !strings.EqualFold(cfg.Storage.Backend, "minio") {
		logger.Infof("Storage backend is %s, skip MinIO client", cfg.Storage.Backend)
		return
	}

	minioCfg := cfg.Minio
	if minioCfg.Endpoint == "" {
		panic("minio endpoint is required")
	}

	client, err := minio.New(minioCfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(minioCfg.AccessKeyID, minioCfg.SecretAccessKey, ""),
		Secure: minioCfg.UseSSL,
		Region: minioCfg.Region,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to create minio client: %v", err))
	}

	r.client = client
	r.buckets = uniqueBuckets(cfg.Storage.RawBucket, cfg.Storage.OutputBucket)
	for _, bucket := range r.buckets {
		r.ensureBucket(bucket, minioCfg.Region)
	}

	logger.Info("MinIO resource initialized", map[string]interface{}{
		"endpoint": minioCfg.Endpoint,
		"buckets":  r.buckets,
	})
}

// ensureBucket 确保桶存在
func (r *MinioResource) ensureBucket(bucket, region string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exists, err := r.client.BucketExists(ctx, bucket)
	if err != nil {
		panic(fmt.Sprintf("failed to check minio bucket %s: %v", bucket, err))
	}
	if exists {
		return
	}
	if err := r.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		panic(fmt.Sprintf("failed to create minio bucket %s: %v", bucket, err))
	}
}

func uniqueBuckets(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// GetClient 获取MinIO客户端
func (r *MinioResource) GetClient() *minio.Client {
	return r.client
}

// Buckets 返回已确认存在的桶
func (r *MinioResource) Buckets() []string {
	return r.buckets
}

// Close 释放资源
func (r *MinioResource) Close() {
	// minio-go客户端无需关闭连接
}

// MinioResourcePlugin MinIO资源插件
type MinioResourcePlugin struct{}

func (p *MinioResourcePlugin) Name() string {
	return "minioResource"
}

func (p *MinioResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultMinioResource()
}
