package simulation

import (
	"context"
	"log/slog"

	"github.com/AaronLay10/ProgressionSim/internal/events"
	"github.com/AaronLay10/ProgressionSim/internal/logging"
	"github.com/AaronLay10/ProgressionSim/internal/progression"
	"github.com/AaronLay10/ProgressionSim/internal/scheduler"
	"github.com/AaronLay10/ProgressionSim/internal/stats"
)

// BatchOptions configures a Monte Carlo batch.
type BatchOptions struct {
	Trials    int
	Modifiers *progression.Modifiers
	Extended  bool
	// Run tags lifecycle events.
	Run      string
	Sink     Sink
	Recorder *events.Recorder
	Logger   *slog.Logger
}

type batchPhase int

const (
	phaseTrials batchPhase = iota
	phaseReport
	phaseDone
)

// BatchTask runs one trial per resume, folding each into an aggregator.
// Once every trial is done, or the job is interrupted or cancelled, it
// processes the report and prints one milestone line per resume.
type BatchTask struct {
	engine *progression.Engine
	agg    *stats.Aggregator
	state  *progression.State
	opts   BatchOptions

	phase       batchPhase
	done        int
	steps       int
	interrupted bool
	report      *stats.Report
	lines       []string
	next        int
}

// NewBatchTask creates a batch over engine's graph.
func NewBatchTask(engine *progression.Engine, opts BatchOptions) *BatchTask {
	if opts.Trials < 0 {
		opts.Trials = 0
	}
	if opts.Sink == nil {
		opts.Sink = discard
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &BatchTask{
		engine: engine,
		agg:    stats.NewAggregator(engine.Graph()),
		state:  progression.NewState(),
		opts:   opts,
	}
}

// Resume advances the batch by one trial or one report line.
func (b *BatchTask) Resume(ctx context.Context, job *scheduler.Job) scheduler.Signal {
	switch b.phase {
	case phaseTrials:
		if b.done == 0 && job.Resumes() == 1 {
			b.emit("info", "run.started", map[string]any{"trials": b.opts.Trials})
			b.opts.Logger.Debug("batch started", "run", b.opts.Run, "trials", b.opts.Trials)
		}
		if ctx.Err() != nil || job.Interrupted() {
			b.interrupted = true
			b.emit("warn", "run.interrupted", map[string]any{"completed": b.done, "trials": b.opts.Trials})
			b.opts.Logger.Info("batch interrupted, reporting partial results", "run", b.opts.Run, "completed", b.done)
			b.startReport()
			return scheduler.Continue
		}
		if b.done >= b.opts.Trials {
			b.startReport()
			return scheduler.Continue
		}
		b.runTrial()
		return scheduler.Continue

	case phaseReport:
		if b.next < len(b.lines) {
			b.opts.Sink.Line(b.lines[b.next])
			b.next++
			return scheduler.Continue
		}
		b.phase = phaseDone
		b.emit("info", "run.completed", map[string]any{
			"completed":   b.done,
			"steps":       b.steps,
			"interrupted": b.interrupted,
		})
		return scheduler.Stop
	}
	return scheduler.Stop
}

func (b *BatchTask) runTrial() {
	b.engine.Reset(b.state, b.opts.Modifiers)
	n := b.engine.Run(b.state)
	b.agg.Add(b.state)
	b.done++
	b.steps += n

	b.emit("info", "trial.completed", map[string]any{
		"trial":     b.done,
		"steps":     n,
		"remaining": len(b.state.Hidden),
	})
	logging.Trace(b.opts.Logger, "trial completed", "run", b.opts.Run, "trial", b.done, "steps", n)
	if b.opts.Trials >= 10 && b.done%(b.opts.Trials/10) == 0 {
		b.opts.Logger.Debug("batch progress", "run", b.opts.Run, "completed", b.done, "trials", b.opts.Trials)
	}
}

func (b *BatchTask) startReport() {
	b.report = b.agg.Process(b.opts.Extended)
	b.lines = stats.FormatReport(b.report)
	b.phase = phaseReport
}

func (b *BatchTask) emit(level, name string, fields map[string]any) {
	if b.opts.Recorder == nil {
		return
	}
	fields["run"] = b.opts.Run
	b.opts.Recorder.Emit(level, name, "", fields)
}

// Report returns the processed report, or nil while trials are running.
func (b *BatchTask) Report() *stats.Report {
	return b.report
}

// Completed returns the number of trials folded so far.
func (b *BatchTask) Completed() int {
	return b.done
}

// Interrupted reports whether the batch stopped before its trial count.
func (b *BatchTask) Interrupted() bool {
	return b.interrupted
}

// Done reports whether every report line has been emitted.
func (b *BatchTask) Done() bool {
	return b.phase == phaseDone
}
