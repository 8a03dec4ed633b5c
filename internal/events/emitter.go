package events

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

type Event struct {
	Timestamp string         `json:"ts"`
	Level     string         `json:"level"`
	Name      string         `json:"event"`
	Message   string         `json:"msg,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Recorder keeps the lifecycle trail of one simulation run: a ring buffer
// of recent events plus live subscribers. It is safe for concurrent use.
type Recorder struct {
	buffer      *RingBuffer
	broadcaster *Broadcaster
	total       atomic.Int64
	now         func() time.Time
}

// NewRecorder returns a recorder that retains the last size events.
func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = 256
	}
	return &Recorder{
		buffer:      NewRingBuffer(size),
		broadcaster: newBroadcaster(),
		now:         time.Now,
	}
}

// Emit validates and records an event, fans it out to subscribers and
// returns its JSON encoding.
func (r *Recorder) Emit(level, name, msg string, fields map[string]any) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	e := Event{
		Timestamp: r.now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	r.buffer.Add(e)
	r.total.Add(1)
	r.broadcaster.broadcast(e)

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return b, nil
}

func (r *Recorder) Snapshot() []Event {
	return r.buffer.Snapshot()
}

// RecentEvents returns the last n events from the ring buffer.
// If n is greater than available events, returns all available.
func (r *Recorder) RecentEvents(n int) []Event {
	all := r.buffer.Snapshot()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// TotalCount returns the number of events emitted, including those
// already evicted from the buffer.
func (r *Recorder) TotalCount() int64 {
	return r.total.Load()
}

// Clear resets the event buffer.
func (r *Recorder) Clear() {
	r.buffer.Clear()
}
