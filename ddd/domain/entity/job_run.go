package entity

import (
	"fmt"
	"sync"
	"time"

	"streaming-engine/ddd/domain/vo"
)

// JobRun tracks the state and accumulated errors of one orchestration of a job.
type JobRun struct {
	job        *TranscodeJob
	state      vo.JobState
	errors     []string
	failedAt   vo.JobState
	startedAt  time.Time
	finishedAt time.Time
	mu         sync.RWMutex
}

func NewJobRun(job *TranscodeJob) *JobRun {
	return &JobRun{job: job, state: vo.JobStatePending, startedAt: time.Now()}
}

func (r *JobRun) Job() *TranscodeJob { return r.job }

func (r *JobRun) State() vo.JobState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// FailedAt returns the stage that moved the run to Failed, or "" if it never failed.
func (r *JobRun) FailedAt() vo.JobState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.failedAt
}

// TransitionTo 状态转换
func (r *JobRun) TransitionTo(target vo.JobState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.CanTransitionTo(target) {
		return fmt.Errorf("invalid job state transition %s -> %s", r.state, target)
	}
	if target == vo.JobStateFailed {
		r.failedAt = r.state
	}
	if target.IsTerminal() {
		r.finishedAt = time.Now()
	}
	r.state = target
	return nil
}

// Fail records err and moves the run to Failed.
func (r *JobRun) Fail(err error) error {
	r.AddError(err)
	return r.TransitionTo(vo.JobStateFailed)
}

// AddError appends err to the error list; nil is ignored.
func (r *JobRun) AddError(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err.Error())
}

func (r *JobRun) Errors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.errors))
	copy(out, r.errors)
	return out
}

// Succeeded is true once the run has reached Cleaning without failing.
func (r *JobRun) Succeeded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.failedAt == "" && (r.state == vo.JobStateCleaning || r.state == vo.JobStateNotified)
}

// Outcome builds the notification payload for the run.
func (r *JobRun) Outcome() vo.JobOutcome {
	success := r.Succeeded()
	return vo.NewJobOutcome(r.job.OutcomeID(success), success, r.Errors())
}

// Duration 运行时长
func (r *JobRun) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.finishedAt.IsZero() {
		return time.Since(r.startedAt)
	}
	return r.finishedAt.Sub(r.startedAt)
}
