package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AaronLay10/ProgressionSim/internal/events"
	"github.com/AaronLay10/ProgressionSim/internal/logging"
	"github.com/AaronLay10/ProgressionSim/internal/stats"
)

// Publisher is the part of Client a Reporter needs.
type Publisher interface {
	IsConnected() bool
	Publish(topic string, payload []byte) error
	PublishRetained(topic string, payload []byte) error
}

// ReportLine is the payload of every message on a report topic.
type ReportLine struct {
	Run  string `json:"run"`
	Seq  int    `json:"seq"`
	Time string `json:"ts"`
	Line string `json:"line"`
}

// Reporter publishes report lines to a topic. It is a line sink for
// simulation tasks; failures are recorded, never returned, so a broker
// outage cannot abort a run.
type Reporter struct {
	pub      Publisher
	topic    string
	run      string
	recorder *events.Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	seq     int
	dropped int
	warned  bool
}

// NewReporter creates a reporter publishing to topic, tagging every line
// with run. recorder and logger may be nil.
func NewReporter(pub Publisher, topic, run string, recorder *events.Recorder, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reporter{
		pub:      pub,
		topic:    topic,
		run:      run,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Line publishes one report line.
func (r *Reporter) Line(line string) {
	r.mu.Lock()
	r.seq++
	msg := ReportLine{
		Run:  r.run,
		Seq:  r.seq,
		Time: r.now().UTC().Format(time.RFC3339Nano),
		Line: line,
	}
	r.mu.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		r.fail(r.topic, fmt.Sprintf("failed to marshal line: %v", err))
		return
	}
	if r.pub == nil || !r.pub.IsConnected() {
		r.fail(r.topic, "MQTT client not connected")
		return
	}
	if err := r.pub.Publish(r.topic, payload); err != nil {
		r.fail(r.topic, fmt.Sprintf("MQTT publish failed: %v", err))
	}
}

// PublishReport publishes the processed report as one retained JSON
// document on <topic>/summary.
func (r *Reporter) PublishReport(report *stats.Report) error {
	topic := r.topic + "/summary"
	payload, err := json.Marshal(struct {
		Run string `json:"run"`
		*stats.Report
	}{Run: r.run, Report: report})
	if err != nil {
		return r.fail(topic, fmt.Sprintf("failed to marshal report: %v", err))
	}
	if r.pub == nil || !r.pub.IsConnected() {
		return r.fail(topic, "MQTT client not connected")
	}
	if err := r.pub.PublishRetained(topic, payload); err != nil {
		return r.fail(topic, fmt.Sprintf("MQTT publish failed: %v", err))
	}
	if r.recorder != nil {
		r.recorder.Emit("info", "report.published", "", map[string]any{
			"run":    r.run,
			"topic":  topic,
			"trials": report.Trials,
		})
	}
	return nil
}

// Dropped returns how many publishes failed.
func (r *Reporter) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// fail counts the drop, warns once per reporter to avoid flooding the log
// and records a report.failed event.
func (r *Reporter) fail(topic, msg string) error {
	r.mu.Lock()
	r.dropped++
	first := !r.warned
	r.warned = true
	r.mu.Unlock()

	if first {
		r.logger.Warn("report publish failed", "topic", topic, "error", msg)
	}
	if r.recorder != nil {
		r.recorder.Emit("error", "report.failed", msg, map[string]any{
			"run":   r.run,
			"topic": topic,
		})
	}
	return fmt.Errorf("%s", msg)
}
