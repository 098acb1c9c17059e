package dto

import (
	"time"

	"streaming-engine/ddd/domain/entity"
	"streaming-engine/ddd/domain/vo"
)

// JobDTO 已受理的打包任务
type JobDTO struct {
	ID          string             `json:"id"`
	Source      string             `json:"source"`
	Bucket      string             `json:"bucket,omitempty"`
	Destination string             `json:"destination"`
	Renditions  []vo.RenditionSpec `json:"renditions"`
	KeyURL      string             `json:"key_url,omitempty"`
	PlaylistURL string             `json:"playlist_url"`
	CreatedAt   time.Time          `json:"created_at"`
}

func NewJobDTO(job *entity.TranscodeJob, playlistURL string) *JobDTO {
	return &JobDTO{
		ID:          job.ID(),
		Source:      job.SourceLocator(),
		Bucket:      job.SourceBucket(),
		Destination: job.Destination(),
		Renditions:  job.Renditions(),
		KeyURL:      job.KeyURL(),
		PlaylistURL: playlistURL,
		CreatedAt:   job.CreatedAt(),
	}
}

// UploadDTO 上传结果
type UploadDTO struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// ObjectListDTO 对象列表
type ObjectListDTO struct {
	Bucket string   `json:"bucket"`
	Prefix string   `json:"prefix"`
	Keys   []string `json:"keys"`
}
