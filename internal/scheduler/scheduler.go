package scheduler

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/AaronLay10/ProgressionSim/internal/events"
)

// Scheduler runs jobs one at a time in FIFO order, with priority jobs
// placed at the front. It is cooperative: nothing runs except inside Tick,
// FlushTop or Flush, and a task that never returns cannot be stopped.
// A Scheduler is not safe for concurrent use.
type Scheduler struct {
	queue    []*Job
	finished map[int]*Job
	nextID   int

	now      func() time.Time
	recorder *events.Recorder
	logger   *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now for budget checks.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithRecorder records job lifecycle events.
func WithRecorder(r *events.Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithLogger sets the logger used for job transitions.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		finished: make(map[int]*Job),
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule appends a job to the back of the queue.
func (s *Scheduler) Schedule(name string, task Task, onDone func(*Job)) *Job {
	return s.ScheduleWithContext(context.Background(), name, task, onDone)
}

// ScheduleWithContext appends a job whose context derives from ctx.
func (s *Scheduler) ScheduleWithContext(ctx context.Context, name string, task Task, onDone func(*Job)) *Job {
	job := s.newJob(ctx, name, task, onDone)
	s.queue = append(s.queue, job)
	s.emit("task.scheduled", job, map[string]any{"priority": false})
	return job
}

// Priority inserts a job at the front of the queue. A head job that is
// already executing becomes INTERRUPTED and resumes after the new job.
func (s *Scheduler) Priority(name string, task Task, onDone func(*Job)) *Job {
	return s.PriorityWithContext(context.Background(), name, task, onDone)
}

// PriorityWithContext is Priority with a parent context.
func (s *Scheduler) PriorityWithContext(ctx context.Context, name string, task Task, onDone func(*Job)) *Job {
	job := s.newJob(ctx, name, task, onDone)
	if len(s.queue) > 0 {
		if head := s.queue[0]; head.status == StatusExecuting {
			head.status = StatusInterrupted
			head.interrupts++
			s.logger.Debug("job interrupted", "job_id", head.ID, "job", head.Name, "by", job.Name)
			s.emit("task.interrupted", head, map[string]any{"by": job.Name})
		}
	}
	s.queue = append([]*Job{job}, s.queue...)
	s.emit("task.scheduled", job, map[string]any{"priority": true})
	return job
}

func (s *Scheduler) newJob(ctx context.Context, name string, task Task, onDone func(*Job)) *Job {
	s.nextID++
	jctx, cancel := context.WithCancel(ctx)
	return &Job{
		ID:     s.nextID,
		Name:   name,
		task:   task,
		onDone: onDone,
		ctx:    jctx,
		cancel: cancel,
		status: StatusQueued,
	}
}

// Tick resumes the head job repeatedly until the queue is empty, the budget
// is spent or a task yields the frame. The budget is checked after every
// resumption, so a Tick always resumes at least once when work is queued.
// It returns the number of resumptions.
func (s *Scheduler) Tick(budget time.Duration) int {
	start := s.now()
	n := 0
	for len(s.queue) > 0 {
		sig := s.resume(s.queue[0])
		n++
		if sig == YieldFrame {
			break
		}
		if s.now().Sub(start) >= budget {
			break
		}
	}
	return n
}

// FlushTop runs until the current head job leaves the queue, ignoring the
// budget and frame yields. Jobs inserted ahead of it run first.
func (s *Scheduler) FlushTop() int {
	if len(s.queue) == 0 {
		return 0
	}
	top := s.queue[0]
	n := 0
	for s.indexOf(top) >= 0 {
		s.resume(s.queue[0])
		n++
	}
	return n
}

// Flush runs every queued job to completion.
func (s *Scheduler) Flush() int {
	n := 0
	for len(s.queue) > 0 {
		s.resume(s.queue[0])
		n++
	}
	return n
}

func (s *Scheduler) resume(job *Job) Signal {
	if job.status == StatusQueued {
		job.status = StatusExecuting
	}
	seen := job.interrupts

	job.resumes++
	sig := job.task.Resume(job.ctx, job)

	// Cancelled from inside its own resumption.
	if job.status == StatusInvalid {
		return sig
	}

	switch sig {
	case Stop:
		s.complete(job)
	default:
		if job.status == StatusInterrupted && job.interrupts == seen {
			job.status = StatusExecuting
		}
	}
	return sig
}

func (s *Scheduler) complete(job *Job) {
	s.remove(job)
	job.status = StatusCompleted
	job.cancel()
	s.finished[job.ID] = job
	s.logger.Debug("job completed", "job_id", job.ID, "job", job.Name, "resumes", job.resumes)
	s.emit("task.completed", job, map[string]any{"resumes": job.resumes})
	if job.onDone != nil {
		job.onDone(job)
	}
}

// Cancel marks the job INVALID, removes it and cancels its context. Code
// already running inside the job is not stopped; it sees the status flip
// and the cancelled context. Unknown ids return false.
func (s *Scheduler) Cancel(id int) bool {
	for _, job := range s.queue {
		if job.ID == id {
			s.cancelJob(job)
			return true
		}
	}
	return false
}

// CancelNamed cancels every queued job with the given name.
func (s *Scheduler) CancelNamed(name string) bool {
	var matched []*Job
	for _, job := range s.queue {
		if job.Name == name {
			matched = append(matched, job)
		}
	}
	for _, job := range matched {
		s.cancelJob(job)
	}
	return len(matched) > 0
}

func (s *Scheduler) cancelJob(job *Job) {
	s.remove(job)
	job.status = StatusInvalid
	job.cancel()
	s.finished[job.ID] = job
	s.logger.Debug("job cancelled", "job_id", job.ID, "job", job.Name)
	s.emit("task.cancelled", job, nil)
}

// StatusOf reports the status of a queued or finished job.
func (s *Scheduler) StatusOf(id int) (Status, bool) {
	for _, job := range s.queue {
		if job.ID == id {
			return job.status, true
		}
	}
	if job, ok := s.finished[id]; ok {
		return job.status, true
	}
	return "", false
}

// StatusOfNamed reports the status of the first queued job with name, or
// of the most recent finished one.
func (s *Scheduler) StatusOfNamed(name string) (Status, bool) {
	for _, job := range s.queue {
		if job.Name == name {
			return job.status, true
		}
	}
	var latest *Job
	for _, job := range s.finished {
		if job.Name == name && (latest == nil || job.ID > latest.ID) {
			latest = job
		}
	}
	if latest == nil {
		return "", false
	}
	return latest.status, true
}

// Len returns the number of queued jobs.
func (s *Scheduler) Len() int {
	return len(s.queue)
}

func (s *Scheduler) indexOf(job *Job) int {
	for i, j := range s.queue {
		if j == job {
			return i
		}
	}
	return -1
}

func (s *Scheduler) remove(job *Job) {
	if i := s.indexOf(job); i >= 0 {
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
	}
}

func (s *Scheduler) emit(name string, job *Job, fields map[string]any) {
	if s.recorder == nil {
		return
	}
	if fields == nil {
		fields = make(map[string]any)
	}
	fields["job_id"] = job.ID
	fields["job"] = job.Name
	fields["status"] = string(job.status)
	s.recorder.Emit("info", name, "", fields)
}
