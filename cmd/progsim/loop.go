package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/AaronLay10/ProgressionSim/internal/scheduler"
)

// frameLoop ticks the scheduler until its queue drains. The first signal
// inserts a priority job, which interrupts the running task so it can wrap
// up with partial results. A second signal abandons the queue and returns
// aborted.
func frameLoop(sched *scheduler.Scheduler, budget time.Duration, signals <-chan os.Signal, logger *slog.Logger) (frames int, aborted bool) {
	interrupted := false
	for sched.Len() > 0 {
		select {
		case sig := <-signals:
			if interrupted {
				logger.Warn("second signal, abandoning run", "signal", sig.String())
				return frames, true
			}
			interrupted = true
			logger.Info("signal received, finishing with partial results", "signal", sig.String())
			sched.Priority("interrupt", scheduler.TaskFunc(func(context.Context, *scheduler.Job) scheduler.Signal {
				return scheduler.Stop
			}), nil)
		default:
		}

		sched.Tick(budget)
		frames++
	}
	return frames, false
}

func signalChannel() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 2)
	notifySignals(ch)
	return ch, func() { stopSignals(ch) }
}
