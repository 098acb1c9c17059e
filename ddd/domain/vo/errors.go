package vo

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is against a *JobError.
var (
	ErrSourceNotFound         = errors.New("source not found")
	ErrFetch                  = errors.New("fetch failed")
	ErrProbe                  = errors.New("probe failed")
	ErrEncode                 = errors.New("encode failed")
	ErrNoSuccessfulRenditions = errors.New("no successful renditions")
	ErrCompose                = errors.New("compose failed")
	ErrPublish                = errors.New("publish failed")
	ErrNotificationDelivery   = errors.New("notification delivery failed")
	ErrStageDeadline          = errors.New("stage deadline exceeded")
)

// JobError 打包任务错误
type JobError struct {
	Kind  error
	Stage JobState
	// Detail identifies what failed inside the stage, e.g. a rendition or object key.
	Detail string
	Err    error
}

// NewJobError 创建任务错误
func NewJobError(kind error, stage JobState, detail string, err error) *JobError {
	return &JobError{Kind: kind, Stage: stage, Detail: detail, Err: err}
}

func (e *JobError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is matches on the error kind.
func (e *JobError) Is(target error) bool {
	return e.Kind == target
}

func (e *JobError) Unwrap() error {
	return e.Err
}
