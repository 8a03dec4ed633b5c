package simulation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AaronLay10/ProgressionSim/internal/logging"
	"github.com/AaronLay10/ProgressionSim/internal/progression"
	"github.com/AaronLay10/ProgressionSim/internal/scheduler"
)

// TrialOptions configures a debug trial.
type TrialOptions struct {
	Modifiers *progression.Modifiers
	// Picks are visited in order with StepNode before the random walk
	// takes over. A pick that is not available is reported and skipped.
	Picks  []string
	Sink   Sink
	Trace  *logging.StepTrace
	Logger *slog.Logger
}

// TrialTask runs a single traversal one step per frame, printing every
// step, then the final token totals and the nodes that stayed hidden.
type TrialTask struct {
	engine *progression.Engine
	state  *progression.State
	opts   TrialOptions

	started bool
	picked  int
	steps   int
}

// NewTrialTask creates a debug trial over engine's graph.
func NewTrialTask(engine *progression.Engine, opts TrialOptions) *TrialTask {
	if opts.Sink == nil {
		opts.Sink = discard
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &TrialTask{
		engine: engine,
		state:  progression.NewState(),
		opts:   opts,
	}
}

// State returns the traversal the task is driving.
func (t *TrialTask) State() *progression.State {
	return t.state
}

// Steps returns how many steps have been taken.
func (t *TrialTask) Steps() int {
	return t.steps
}

// Resume takes one step. Cancellation of the job context or an
// interrupt ends the walk early and still prints the summary.
func (t *TrialTask) Resume(ctx context.Context, job *scheduler.Job) scheduler.Signal {
	if !t.started {
		t.engine.Reset(t.state, t.opts.Modifiers)
		t.started = true
	}
	if ctx.Err() != nil || job.Interrupted() {
		t.opts.Sink.Line(fmt.Sprintf("interrupted after %d steps", t.steps))
		t.finish()
		return scheduler.Stop
	}

	step := t.next()
	if step == nil {
		t.finish()
		return scheduler.Stop
	}
	t.steps++

	line := progression.FormatStep(step)
	t.opts.Sink.Line(line)
	t.opts.Trace.Log(map[string]any{
		"step":      t.steps,
		"trigger":   step.Trigger,
		"line":      line,
		"available": step.AvailableByType,
	})
	logging.Trace(t.opts.Logger, "step", "n", t.steps, "trigger", step.Trigger)
	return scheduler.YieldFrame
}

func (t *TrialTask) next() *progression.Step {
	for t.picked < len(t.opts.Picks) {
		id := t.opts.Picks[t.picked]
		t.picked++
		step, err := t.engine.StepNode(t.state, id)
		if err != nil {
			t.opts.Sink.Line(fmt.Sprintf("skip %s: %v", id, err))
			continue
		}
		return step
	}
	return t.engine.Step(t.state)
}

func (t *TrialTask) finish() {
	for _, line := range progression.FormatTokens(t.state, t.engine.Graph()) {
		t.opts.Sink.Line(line)
	}
	remaining := t.engine.Remaining(t.state)
	if len(remaining) == 0 {
		return
	}
	t.opts.Sink.Line(fmt.Sprintf("remaining: %d", len(remaining)))
	for _, id := range remaining {
		needsUnlock, missing := t.engine.MissingRequirements(t.state, id)
		t.opts.Sink.Line(progression.FormatMissing(id, needsUnlock, missing))
	}
}
