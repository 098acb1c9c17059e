package vo

// JobState 打包任务状态
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateFetching   JobState = "fetching"
	JobStateEncoding   JobState = "encoding"
	JobStateComposing  JobState = "composing"
	JobStatePublishing JobState = "publishing"
	JobStateCleaning   JobState = "cleaning"
	JobStateFailed     JobState = "failed"
	JobStateNotified   JobState = "notified"
)

// String 返回状态字符串
func (s JobState) String() string {
	return string(s)
}

// IsValid 检查状态是否有效
func (s JobState) IsValid() bool {
	switch s {
	case JobStatePending, JobStateFetching, JobStateEncoding, JobStateComposing,
		JobStatePublishing, JobStateCleaning, JobStateFailed, JobStateNotified:
		return true
	default:
		return false
	}
}

// IsTerminal 检查是否为终态
func (s JobState) IsTerminal() bool {
	return s == JobStateNotified
}

// CanTransitionTo 检查是否可以转换到目标状态
func (s JobState) CanTransitionTo(target JobState) bool {
	switch s {
	case JobStatePending:
		return target == JobStateFetching
	case JobStateFetching:
		return target == JobStateEncoding || target == JobStateFailed
	case JobStateEncoding:
		return target == JobStateComposing || target == JobStateFailed
	case JobStateComposing:
		return target == JobStatePublishing || target == JobStateFailed
	case JobStatePublishing:
		return target == JobStateCleaning || target == JobStateFailed
	case JobStateCleaning, JobStateFailed:
		return target == JobStateNotified
	default:
		return false
	}
}
