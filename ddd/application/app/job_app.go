package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"

	"streaming-engine/ddd/application/cqe"
	"streaming-engine/ddd/application/dto"
	"streaming-engine/ddd/domain/entity"
	"streaming-engine/ddd/domain/gateway"
	"streaming-engine/ddd/domain/service"
	"streaming-engine/ddd/domain/vo"
	"streaming-engine/ddd/infrastructure/queue"
	"streaming-engine/ddd/infrastructure/storage"
	"streaming-engine/pkg/assert"
	"streaming-engine/pkg/config"
	"streaming-engine/pkg/errno"
	"streaming-engine/pkg/logger"
)

var (
	singleJobApp JobApp
	onceJobApp   sync.Once
)

// JobApp 打包任务应用服务
type JobApp interface {
	// SubmitJob 校验请求并将任务放入队列
	SubmitJob(ctx context.Context, cmd *cqe.SubmitJobCmd) (*dto.JobDTO, error)
	// UploadSource 上传原始视频
	UploadSource(ctx context.Context, name string, r io.Reader, size int64, contentType string) (*dto.UploadDTO, error)
	// ListObjects 按前缀列出对象
	ListObjects(ctx context.Context, q *cqe.ObjectQuery) (*dto.ObjectListDTO, error)
	// DeleteObjects 按前缀删除对象
	DeleteObjects(ctx context.Context, q *cqe.ObjectQuery) error
	// OpenStream 读取已发布的播放列表或分片，rel为空时返回主播放列表
	OpenStream(ctx context.Context, id, rel string) (*gateway.Object, error)
	// OpenKey 读取任务的加密密钥
	OpenKey(ctx context.Context, id string) (*gateway.Object, error)
	// QueueSize 队列中等待的任务数
	QueueSize(ctx context.Context) int
}

type jobAppImpl struct {
	cfg     *config.Config
	storage gateway.ObjectStorage
	queue   queue.JobQueue
}

func DefaultJobApp() JobApp {
	assert.NotCircular()
	onceJobApp.Do(func() {
		cfg := config.GetGlobalConfig()
		store, err := storage.NewObjectStorage(cfg)
		if err != nil {
			panic("create object storage: " + err.Error())
		}
		singleJobApp = NewJobAppWith(cfg, store, queue.DefaultJobQueue())
	})
	assert.NotNil(singleJobApp)
	return singleJobApp
}

func NewJobAppWith(cfg *config.Config, store gateway.ObjectStorage, q queue.JobQueue) JobApp {
	return &jobAppImpl{cfg: cfg, storage: store, queue: q}
}

func (a *jobAppImpl) SubmitJob(ctx context.Context, cmd *cqe.SubmitJobCmd) (*dto.JobDTO, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	bucket := strings.TrimSpace(cmd.Bucket)
	if bucket == "" {
		bucket = a.cfg.Storage.RawBucket
	}
	ok, err := a.storage.Exists(ctx, bucket, cmd.Source)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrStorage, err)
	}
	if !ok {
		return nil, errno.NewBizError(errno.ErrSourceNotFound, fmt.Errorf("%s/%s", bucket, cmd.Source))
	}

	id := uuid.NewString()
	keyURL := ""
	if cmd.Encrypt {
		base := cmd.EncryptionURL
		if base == "" {
			base = a.cfg.Transcode.KeyURLBase
		}
		keyURL = strings.TrimRight(base, "/") + "/" + id
	}

	job, err := entity.NewTranscodeJob(entity.TranscodeJobParams{
		ID:            id,
		SourceLocator: cmd.Source,
		SourceBucket:  bucket,
		Renditions:    a.renditions(cmd),
		Destination:   path.Join(a.cfg.Storage.UploadPrefix, id),
		KeyURL:        keyURL,
		CallbackURL:   cmd.CallbackURL,
	})
	if err != nil {
		return nil, errno.NewBizError(errno.ErrInvalidParam, err)
	}

	if err := a.queue.Enqueue(ctx, job); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			return nil, errno.ErrQueueFull
		}
		return nil, errno.NewBizError(errno.ErrInternalServer, err)
	}
	logger.Info("Job queued", map[string]interface{}{
		"job_id":      id,
		"source":      cmd.Source,
		"bucket":      bucket,
		"renditions":  len(job.Renditions()),
		"encrypted":   job.Encrypted(),
		"destination": job.Destination(),
	})
	return dto.NewJobDTO(job, a.playlistURL(id)), nil
}

// renditions falls back to the configured preset table when the request carries none.
func (a *jobAppImpl) renditions(cmd *cqe.SubmitJobCmd) []vo.RenditionSpec {
	if len(cmd.Renditions) > 0 {
		return cmd.Renditions
	}
	return vo.SpecsFromPresets(a.cfg.Transcode.Renditions)
}

func (a *jobAppImpl) playlistURL(id string) string {
	return strings.TrimRight(a.cfg.Public.StorageBase, "/") + "/api/v1/streams/" + id
}

var sourceExtensions = map[string]struct{}{".mp4": {}, ".mkv": {}}

func (a *jobAppImpl) UploadSource(ctx context.Context, name string, r io.Reader, size int64, contentType string) (*dto.UploadDTO, error) {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "" || name == "." || name == "/" || strings.HasPrefix(name, ".") {
		return nil, errno.ErrFileNameIllegal
	}
	if _, ok := sourceExtensions[strings.ToLower(path.Ext(name))]; !ok {
		return nil, errno.ErrUnsupportedExtension
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = service.ContentTypeByName(name)
	}

	bucket := a.cfg.Storage.RawBucket
	key := path.Join(a.cfg.Storage.UploadPrefix, "raw", uuid.NewString(), name)
	if err := a.storage.Put(ctx, bucket, key, r, size, contentType); err != nil {
		return nil, errno.NewBizError(errno.ErrUploadError, err)
	}
	logger.Info("Source uploaded", map[string]interface{}{"bucket": bucket, "key": key, "size": size})
	return &dto.UploadDTO{Bucket: bucket, Key: key, Size: size, ContentType: contentType}, nil
}

func (a *jobAppImpl) ListObjects(ctx context.Context, q *cqe.ObjectQuery) (*dto.ObjectListDTO, error) {
	bucket, err := a.bucket(q.Bucket)
	if err != nil {
		return nil, err
	}
	keys, err := a.storage.ListKeys(ctx, bucket, q.Prefix)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrStorage, err)
	}
	return &dto.ObjectListDTO{Bucket: bucket, Prefix: q.Prefix, Keys: keys}, nil
}

func (a *jobAppImpl) DeleteObjects(ctx context.Context, q *cqe.ObjectQuery) error {
	if strings.Trim(q.Prefix, "/ ") == "" {
		return errno.NewBizError(errno.ErrMissingParam, errors.New("prefix"))
	}
	bucket, err := a.bucket(q.Bucket)
	if err != nil {
		return err
	}
	if err := a.storage.Delete(ctx, bucket, q.Prefix); err != nil {
		return errno.NewBizError(errno.ErrStorage, err)
	}
	logger.Info("Objects deleted", map[string]interface{}{"bucket": bucket, "prefix": q.Prefix})
	return nil
}

// bucket restricts admin calls to the configured buckets; empty means the output bucket.
func (a *jobAppImpl) bucket(name string) (string, error) {
	switch name {
	case "", a.cfg.Storage.OutputBucket:
		return a.cfg.Storage.OutputBucket, nil
	case a.cfg.Storage.RawBucket:
		return name, nil
	default:
		return "", errno.NewBizError(errno.ErrInvalidParam, fmt.Errorf("unknown bucket %q", name))
	}
}

func (a *jobAppImpl) OpenStream(ctx context.Context, id, rel string) (*gateway.Object, error) {
	if !validID(id) {
		return nil, errno.ErrInvalidParam
	}
	rel = strings.TrimPrefix(rel, "/")
	if strings.Contains("/"+rel+"/", "/../") {
		return nil, errno.ErrInvalidParam
	}
	switch {
	case rel == "":
		rel = path.Join(a.cfg.Transcode.VideoFolderName, a.cfg.Transcode.MasterManifestName)
	case strings.HasSuffix(rel, "/"):
		rel = path.Join(rel, a.cfg.Transcode.MasterManifestName)
	case path.Clean(rel) == a.cfg.Transcode.KeyFileName:
		// keys are only served through OpenKey
		return nil, errno.ErrForbidden
	}
	return a.open(ctx, path.Join(a.cfg.Storage.UploadPrefix, id, rel))
}

func (a *jobAppImpl) OpenKey(ctx context.Context, id string) (*gateway.Object, error) {
	if !validID(id) {
		return nil, errno.ErrInvalidParam
	}
	return a.open(ctx, path.Join(a.cfg.Storage.UploadPrefix, id, a.cfg.Transcode.KeyFileName))
}

func (a *jobAppImpl) open(ctx context.Context, key string) (*gateway.Object, error) {
	obj, err := a.storage.Get(ctx, a.cfg.Storage.OutputBucket, key)
	if errors.Is(err, gateway.ErrObjectNotFound) {
		return nil, errno.NewBizError(errno.ErrObjectNotFound, errors.New(key))
	}
	if err != nil {
		return nil, errno.NewBizError(errno.ErrStorage, err)
	}
	if obj.ContentType == "" || obj.ContentType == "application/octet-stream" {
		obj.ContentType = service.ContentTypeByName(key)
	}
	return obj, nil
}

func (a *jobAppImpl) QueueSize(ctx context.Context) int {
	return a.queue.Size(ctx)
}

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
