package simulation

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AaronLay10/ProgressionSim/internal/events"
	"github.com/AaronLay10/ProgressionSim/internal/logging"
	"github.com/AaronLay10/ProgressionSim/internal/progression"
	"github.com/AaronLay10/ProgressionSim/internal/scheduler"
	"github.com/AaronLay10/ProgressionSim/internal/stats"
	"github.com/google/go-cmp/cmp"
)

type lineCollector struct {
	lines []string
}

func (c *lineCollector) Line(line string) {
	c.lines = append(c.lines, line)
}

// linearGraph always walks start -> quest and leaves vault hidden.
func linearGraph() *progression.Graph {
	g := progression.NewGraph()
	g.AddNode(&progression.NodeDefinition{ID: "gold", IsToken: true})
	g.AddNode(&progression.NodeDefinition{
		ID:      "start",
		Results: []progression.NodeReference{{Target: "gold", Amount: progression.Number(5)}},
	})
	g.AddNode(&progression.NodeDefinition{
		ID:       "quest",
		Type:     "quest",
		Requires: []progression.NodeReference{{Target: "start", Amount: progression.Bool(true)}},
	})
	g.AddNode(&progression.NodeDefinition{ID: "vault", Unlock: progression.UnlockManual})
	return g
}

func newEngine(g *progression.Graph) *progression.Engine {
	return progression.NewEngine(g, rand.New(rand.NewPCG(7, 11)), nil)
}

func eventNames(rec *events.Recorder) []string {
	var names []string
	for _, e := range rec.Snapshot() {
		names = append(names, e.Name)
	}
	return names
}

func TestTrialTaskPrintsStepsAndSummary(t *testing.T) {
	sink := &lineCollector{}
	task := NewTrialTask(newEngine(linearGraph()), TrialOptions{Sink: sink})

	sched := scheduler.New()
	sched.Schedule("debug", task, nil)

	if n := sched.Tick(0); n != 1 {
		t.Fatalf("expected one step per frame, got %d resumes", n)
	}
	if n := sched.Flush(); n != 2 {
		t.Fatalf("expected 2 more resumes, got %d", n)
	}

	if task.Steps() != 2 {
		t.Errorf("expected 2 steps, got %d", task.Steps())
	}
	if len(sink.lines) != 5 {
		t.Fatalf("expected 5 lines, got %q", sink.lines)
	}
	if !strings.HasPrefix(sink.lines[0], "start") || !strings.HasPrefix(sink.lines[1], "quest") {
		t.Errorf("unexpected step lines: %q", sink.lines[:2])
	}
	want := []string{"gold: 5 (+5 / -0)", "remaining: 1", "vault: needs unlock"}
	if diff := cmp.Diff(want, sink.lines[2:]); diff != "" {
		t.Errorf("summary lines (-want +got):\n%s", diff)
	}
}

func TestTrialTaskPicks(t *testing.T) {
	sink := &lineCollector{}
	task := NewTrialTask(newEngine(linearGraph()), TrialOptions{
		Sink:  sink,
		Picks: []string{"vault", "start"},
	})

	sched := scheduler.New()
	sched.Schedule("debug", task, nil)
	sched.Flush()

	if sink.lines[0] != "skip vault: node is not available: vault" {
		t.Errorf("expected vault to be skipped, got %q", sink.lines[0])
	}
	if !strings.HasPrefix(sink.lines[1], "start") {
		t.Errorf("expected start to be visited first, got %q", sink.lines[1])
	}
	if got := task.State().Path[0].Trigger; got != "start" {
		t.Errorf("expected first trigger start, got %s", got)
	}
}

func TestTrialTaskTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	trace, err := logging.OpenStepTrace(path)
	if err != nil {
		t.Fatalf("OpenStepTrace failed: %v", err)
	}

	sched := scheduler.New()
	sched.Schedule("debug", NewTrialTask(newEngine(linearGraph()), TrialOptions{Trace: trace}), nil)
	sched.Flush()
	if err := trace.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if n := bytes.Count(data, []byte("\n")); n != 2 {
		t.Errorf("expected 2 trace lines, got %d", n)
	}
	if !bytes.Contains(data, []byte(`"trigger":"quest"`)) {
		t.Errorf("expected quest step in trace, got %s", data)
	}
}

func TestBatchTaskRunsAllTrials(t *testing.T) {
	rec := events.NewRecorder(64)
	sink := &lineCollector{}
	task := NewBatchTask(newEngine(linearGraph()), BatchOptions{
		Trials:   3,
		Run:      "r1",
		Sink:     sink,
		Recorder: rec,
	})

	var completed bool
	sched := scheduler.New()
	sched.Schedule("batch", task, func(*scheduler.Job) { completed = true })
	sched.Flush()

	if !completed || !task.Done() {
		t.Fatal("expected batch to complete")
	}
	r := task.Report()
	if r == nil {
		t.Fatal("expected a report")
	}
	if r.Trials != 3 || r.Steps != 6 {
		t.Errorf("expected 3 trials and 6 steps, got %d / %d", r.Trials, r.Steps)
	}
	if diff := cmp.Diff(stats.FormatReport(r), sink.lines); diff != "" {
		t.Errorf("report lines (-want +got):\n%s", diff)
	}
	if u, ok := r.Lookup(stats.SectionUnfinished, "vault"); !ok || u.Mean != 1 {
		t.Errorf("expected vault unfinished in every trial, got %+v", u)
	}

	want := []string{"run.started", "trial.completed", "trial.completed", "trial.completed", "run.completed"}
	if diff := cmp.Diff(want, eventNames(rec)); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
	for _, e := range rec.Snapshot() {
		if e.Fields["run"] != "r1" {
			t.Errorf("event %s missing run tag: %v", e.Name, e.Fields)
		}
	}
}

func TestBatchTaskOneLinePerResume(t *testing.T) {
	task := NewBatchTask(newEngine(linearGraph()), BatchOptions{Trials: 2})

	sched := scheduler.New()
	sched.Schedule("batch", task, nil)
	n := sched.Flush()

	// trials, the switch to reporting, each line, then the final stop
	want := 2 + 1 + len(stats.FormatReport(task.Report())) + 1
	if n != want {
		t.Errorf("expected %d resumes, got %d", want, n)
	}
}

func TestBatchTaskZeroTrials(t *testing.T) {
	sink := &lineCollector{}
	task := NewBatchTask(newEngine(linearGraph()), BatchOptions{Trials: 0, Sink: sink})

	sched := scheduler.New()
	sched.Schedule("batch", task, nil)
	sched.Flush()

	if diff := cmp.Diff([]string{"trials: 0, steps: 0"}, sink.lines); diff != "" {
		t.Errorf("lines (-want +got):\n%s", diff)
	}
}

func TestBatchTaskInterruptedByPriority(t *testing.T) {
	rec := events.NewRecorder(256)
	task := NewBatchTask(newEngine(linearGraph()), BatchOptions{Trials: 100, Recorder: rec})

	sched := scheduler.New()
	sched.Schedule("batch", task, nil)
	sched.Tick(0)
	sched.Tick(0)

	ran := false
	sched.Priority("interrupt", scheduler.TaskFunc(func(context.Context, *scheduler.Job) scheduler.Signal {
		ran = true
		return scheduler.Stop
	}), nil)
	sched.Flush()

	if !ran {
		t.Error("expected priority job to run")
	}
	if !task.Interrupted() {
		t.Fatal("expected batch to be interrupted")
	}
	if task.Completed() != 2 || task.Report().Trials != 2 {
		t.Errorf("expected a partial report over 2 trials, got %d / %d", task.Completed(), task.Report().Trials)
	}

	names := eventNames(rec)
	if names[len(names)-2] != "run.interrupted" || names[len(names)-1] != "run.completed" {
		t.Errorf("expected run.interrupted then run.completed, got %v", names)
	}
}

func TestBatchTaskContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	task := NewBatchTask(newEngine(linearGraph()), BatchOptions{Trials: 50})

	sched := scheduler.New()
	sched.ScheduleWithContext(ctx, "batch", task, nil)
	sched.Tick(0)
	cancel()
	sched.Flush()

	if !task.Interrupted() || task.Completed() != 1 {
		t.Errorf("expected partial run of 1 trial, got interrupted=%v completed=%d", task.Interrupted(), task.Completed())
	}
	if task.Report() == nil || task.Report().Trials != 1 {
		t.Error("expected a report over the completed trial")
	}
}

func TestSinks(t *testing.T) {
	var buf bytes.Buffer
	WriterSink(&buf).Line("hello")
	if buf.String() != "hello\n" {
		t.Errorf("unexpected writer output %q", buf.String())
	}

	var logBuf bytes.Buffer
	LoggerSink(logging.NewLogger("info", &logBuf)).Line("gold: 5")
	if !strings.Contains(logBuf.String(), "gold: 5") {
		t.Errorf("expected line in log output, got %q", logBuf.String())
	}

	a, b := &lineCollector{}, &lineCollector{}
	Tee(a, nil, b).Line("x")
	if len(a.lines) != 1 || len(b.lines) != 1 {
		t.Errorf("expected tee to reach both sinks, got %v / %v", a.lines, b.lines)
	}
}
