package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/ProgressionSim/internal/events"
)

type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

// recordingTask stops after n resumptions and logs every resumption.
func recordingTask(name string, n int, log *[]string) Task {
	return TaskFunc(func(ctx context.Context, job *Job) Signal {
		*log = append(*log, name)
		if job.Resumes() >= n {
			return Stop
		}
		return Continue
	})
}

func TestPriorityRunsFirst(t *testing.T) {
	s := New()
	var order []string

	s.Schedule("X", recordingTask("X", 1, &order), nil)
	s.Schedule("Y", recordingTask("Y", 1, &order), nil)
	s.Priority("Z", recordingTask("Z", 1, &order), nil)

	require.Equal(t, 3, s.Flush())
	require.Equal(t, []string{"Z", "X", "Y"}, order)
	require.Zero(t, s.Len())
}

func TestPriorityInterruptsExecutingHead(t *testing.T) {
	s := New()
	var order []string
	var observed []Status

	x := s.Schedule("X", TaskFunc(func(ctx context.Context, job *Job) Signal {
		order = append(order, "X")
		observed = append(observed, job.Status())
		if job.Interrupted() {
			return Stop
		}
		return YieldFrame
	}), nil)
	s.Schedule("Y", recordingTask("Y", 1, &order), nil)

	require.Equal(t, 1, s.Tick(time.Hour))
	require.Equal(t, StatusExecuting, x.Status())

	var statusWhenZRan Status
	s.Priority("Z", TaskFunc(func(ctx context.Context, job *Job) Signal {
		order = append(order, "Z")
		statusWhenZRan = x.Status()
		return Stop
	}), nil)
	require.Equal(t, StatusInterrupted, x.Status())

	s.Flush()

	require.Equal(t, []string{"X", "Z", "X", "Y"}, order)
	require.Equal(t, StatusInterrupted, statusWhenZRan)
	require.Equal(t, []Status{StatusExecuting, StatusInterrupted}, observed)
	require.Equal(t, StatusCompleted, x.Status())
}

func TestInterruptedJobReturnsToExecuting(t *testing.T) {
	s := New()
	var seen []bool
	x := s.Schedule("X", TaskFunc(func(ctx context.Context, job *Job) Signal {
		seen = append(seen, job.Interrupted())
		if job.Resumes() == 3 {
			return Stop
		}
		return YieldFrame
	}), nil)

	s.Tick(time.Hour)
	s.Priority("Z", TaskFunc(func(context.Context, *Job) Signal { return Stop }), nil)
	s.Tick(time.Hour) // Z completes, X observes the interrupt and continues
	require.Equal(t, StatusExecuting, x.Status())

	s.Flush()
	require.Equal(t, []bool{false, true, false}, seen)
}

func TestPriorityDuringOwnResumption(t *testing.T) {
	s := New()
	x := s.Schedule("X", TaskFunc(func(ctx context.Context, job *Job) Signal {
		if job.Resumes() == 1 {
			s.Priority("urgent", TaskFunc(func(context.Context, *Job) Signal { return Stop }), nil)
			return Continue
		}
		return Stop
	}), nil)

	s.Tick(0)
	require.Equal(t, StatusInterrupted, x.Status(), "an interrupt raised mid-resumption must survive until the next one")
	require.Equal(t, 2, s.Len())

	s.Flush()
	require.Equal(t, StatusCompleted, x.Status())
}

func TestQueuedHeadIsNotInterrupted(t *testing.T) {
	s := New()
	x := s.Schedule("X", TaskFunc(func(context.Context, *Job) Signal { return Stop }), nil)
	s.Priority("Z", TaskFunc(func(context.Context, *Job) Signal { return Stop }), nil)
	require.Equal(t, StatusQueued, x.Status())
}

func TestTickBudget(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: 10 * time.Millisecond}
	s := New(WithClock(clock.Now))
	var order []string
	s.Schedule("long", recordingTask("long", 10, &order), nil)

	// Start at 0, then 10, 20, 30ms after each resumption.
	require.Equal(t, 3, s.Tick(25*time.Millisecond))
	require.Len(t, order, 3)

	status, ok := s.StatusOfNamed("long")
	require.True(t, ok)
	require.Equal(t, StatusExecuting, status)
}

func TestTickAlwaysResumesOnce(t *testing.T) {
	s := New()
	var order []string
	s.Schedule("a", recordingTask("a", 5, &order), nil)
	require.Equal(t, 1, s.Tick(0))
	require.Equal(t, 4, s.Flush())
}

func TestYieldFrameEndsTick(t *testing.T) {
	s := New()
	calls := 0
	s.Schedule("yield", TaskFunc(func(context.Context, *Job) Signal {
		calls++
		if calls == 3 {
			return Stop
		}
		return YieldFrame
	}), nil)

	require.Equal(t, 1, s.Tick(time.Hour))
	require.Equal(t, 1, s.Tick(time.Hour))
	require.Equal(t, 1, s.Len())
	require.Equal(t, 1, s.FlushTop(), "FlushTop ignores frame yields")
	require.Zero(t, s.Len())
}

func TestFlushTopStopsAfterHead(t *testing.T) {
	s := New()
	var order []string
	s.Schedule("A", recordingTask("A", 2, &order), nil)
	s.Schedule("B", recordingTask("B", 1, &order), nil)

	require.Equal(t, 2, s.FlushTop())
	require.Equal(t, []string{"A", "A"}, order)
	require.Equal(t, 1, s.Len())
	require.Zero(t, New().FlushTop())
}

func TestCompletionCallback(t *testing.T) {
	s := New()
	var done *Job
	job := s.Schedule("batch", TaskFunc(func(context.Context, *Job) Signal { return Stop }), func(j *Job) {
		done = j
	})

	s.Flush()
	require.Same(t, job, done)
	require.Equal(t, StatusCompleted, job.Status())
	require.Error(t, job.Context().Err(), "completed job context should be released")

	status, ok := s.StatusOf(job.ID)
	require.True(t, ok)
	require.Equal(t, StatusCompleted, status)
}

func TestCancel(t *testing.T) {
	s := New()
	called := false
	job := s.Schedule("batch", TaskFunc(func(context.Context, *Job) Signal { return Continue }), func(*Job) {
		called = true
	})
	s.Schedule("batch", TaskFunc(func(context.Context, *Job) Signal { return Continue }), nil)

	require.True(t, s.Cancel(job.ID))
	require.Equal(t, StatusInvalid, job.Status())
	require.ErrorIs(t, job.Context().Err(), context.Canceled)
	require.False(t, called, "cancelled jobs do not complete")
	require.Equal(t, 1, s.Len())

	require.False(t, s.Cancel(job.ID), "already removed")
	require.False(t, s.Cancel(999))
	require.False(t, s.CancelNamed("missing"))

	require.True(t, s.CancelNamed("batch"))
	require.Zero(t, s.Len())

	status, ok := s.StatusOf(job.ID)
	require.True(t, ok)
	require.Equal(t, StatusInvalid, status)

	_, ok = s.StatusOf(12345)
	require.False(t, ok)
}

func TestCancelFromInsideResumption(t *testing.T) {
	s := New()
	var sawCancel bool
	job := s.Schedule("self", TaskFunc(func(ctx context.Context, j *Job) Signal {
		s.Cancel(j.ID)
		sawCancel = ctx.Err() != nil && j.Status() == StatusInvalid
		return Continue
	}), nil)

	require.Equal(t, 1, s.Flush())
	require.True(t, sawCancel)
	require.Equal(t, StatusInvalid, job.Status())
}

func TestParentContextCancellation(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	job := s.ScheduleWithContext(ctx, "ctx", TaskFunc(func(ctx context.Context, j *Job) Signal {
		if ctx.Err() != nil {
			return Stop
		}
		return Continue
	}), nil)

	s.Tick(0)
	require.Equal(t, StatusExecuting, job.Status())
	cancel()
	s.Tick(0)
	require.Equal(t, StatusCompleted, job.Status())
}

func TestLifecycleEvents(t *testing.T) {
	rec := events.NewRecorder(32)
	s := New(WithRecorder(rec))

	x := s.Schedule("X", TaskFunc(func(ctx context.Context, j *Job) Signal {
		if j.Interrupted() {
			return Stop
		}
		return YieldFrame
	}), nil)
	s.Tick(time.Hour)
	s.Priority("Z", TaskFunc(func(context.Context, *Job) Signal { return Stop }), nil)
	y := s.Schedule("Y", TaskFunc(func(context.Context, *Job) Signal { return Continue }), nil)
	s.Cancel(y.ID)
	s.Flush()
	require.Equal(t, StatusCompleted, x.Status())

	var names []string
	for _, e := range rec.Snapshot() {
		names = append(names, e.Name+":"+e.Fields["job"].(string))
	}
	require.Equal(t, []string{
		"task.scheduled:X",
		"task.interrupted:X",
		"task.scheduled:Z",
		"task.scheduled:Y",
		"task.cancelled:Y",
		"task.completed:Z",
		"task.completed:X",
	}, names)
}
