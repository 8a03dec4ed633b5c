package scheduler

import "context"

// Signal is what a task returns from each resumption.
type Signal int

const (
	// Continue keeps the job at the head; Tick resumes it again if budget
	// remains.
	Continue Signal = iota
	// Stop completes the job and fires its callback.
	Stop
	// YieldFrame keeps the job at the head and ends the current Tick.
	YieldFrame
)

func (s Signal) String() string {
	switch s {
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	case YieldFrame:
		return "yield"
	default:
		return "unknown"
	}
}

// Task is a resumable unit of work. Each Resume call does a bounded slice
// of work and reports whether more remains.
type Task interface {
	Resume(ctx context.Context, job *Job) Signal
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func(ctx context.Context, job *Job) Signal

func (f TaskFunc) Resume(ctx context.Context, job *Job) Signal {
	return f(ctx, job)
}

// Status is the scheduling state of a job.
type Status string

const (
	StatusQueued      Status = "QUEUED"
	StatusExecuting   Status = "EXECUTING"
	StatusInterrupted Status = "INTERRUPTED"
	StatusCompleted   Status = "COMPLETED"
	StatusInvalid     Status = "INVALID"
)

// Job is a scheduled task.
type Job struct {
	ID   int
	Name string

	task    Task
	onDone  func(*Job)
	ctx     context.Context
	cancel  context.CancelFunc
	status  Status
	resumes int
	// interrupts counts priority insertions that bumped this job.
	interrupts int
}

// Status returns the job's current scheduling state.
func (j *Job) Status() Status {
	return j.status
}

// Interrupted reports whether a priority job bumped this one since it last
// ran. Tasks check it to wind down while keeping their progress.
func (j *Job) Interrupted() bool {
	return j.status == StatusInterrupted
}

// Resumes returns how many times the task has been resumed.
func (j *Job) Resumes() int {
	return j.resumes
}

// Context returns the job's context, cancelled when the job is cancelled.
func (j *Job) Context() context.Context {
	return j.ctx
}
