package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	r := NewRecorder(16)

	sub1 := r.Subscribe()
	if r.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber after first subscribe, got %d", r.SubscriberCount())
	}

	sub2 := r.Subscribe()
	if r.SubscriberCount() != 2 {
		t.Errorf("expected 2 subscribers after second subscribe, got %d", r.SubscriberCount())
	}

	r.Unsubscribe(sub1)
	if r.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber after unsubscribe, got %d", r.SubscriberCount())
	}

	r.Unsubscribe(sub2)
	if r.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after all unsubscribed, got %d", r.SubscriberCount())
	}

	// Unsubscribing twice must not panic on a closed channel
	r.Unsubscribe(sub2)
}

func TestBroadcastToSubscribers(t *testing.T) {
	r := NewRecorder(16)
	sub := r.Subscribe()
	defer r.Unsubscribe(sub)

	if _, err := r.Emit("info", "task.scheduled", "test", map[string]any{"job": "batch"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	select {
	case e := <-sub:
		if e.Name != "task.scheduled" {
			t.Errorf("expected event name 'task.scheduled', got '%s'", e.Name)
		}
		if e.Fields["job"] != "batch" {
			t.Errorf("expected job 'batch', got '%v'", e.Fields["job"])
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for broadcast event")
	}
}

func TestEmitRejectsUnknownEvent(t *testing.T) {
	r := NewRecorder(16)
	if _, err := r.Emit("info", "node.started", "", nil); err == nil {
		t.Error("expected error for unregistered event name")
	}
	if len(r.Snapshot()) != 0 || r.TotalCount() != 0 {
		t.Error("rejected events must not be recorded")
	}
}

func TestEmitReturnsJSON(t *testing.T) {
	r := NewRecorder(16)
	r.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	b, err := r.Emit("warn", "graph.warning", "dangling reference", map[string]any{"node_id": "ghost"})
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if e.Timestamp != "2026-01-02T03:04:05Z" || e.Level != "warn" || e.Message != "dangling reference" {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestRecentEvents(t *testing.T) {
	r := NewRecorder(16)

	for i := 0; i < 10; i++ {
		r.Emit("info", "trial.completed", "", map[string]any{"i": i})
	}

	recent := r.RecentEvents(5)
	if len(recent) != 5 {
		t.Errorf("expected 5 recent events, got %d", len(recent))
	}

	// First recent event should be i=5 (the 6th event, since we're getting last 5)
	if recent[0].Fields["i"] != 5 {
		t.Errorf("expected first recent event i=5, got %v", recent[0].Fields["i"])
	}

	if all := r.RecentEvents(100); len(all) != 10 {
		t.Errorf("expected 10 events when requesting 100, got %d", len(all))
	}
	if zero := r.RecentEvents(0); len(zero) != 10 {
		t.Errorf("expected 10 events when requesting 0, got %d", len(zero))
	}
}

func TestRingBufferWraps(t *testing.T) {
	r := NewRecorder(4)
	for i := 0; i < 6; i++ {
		r.Emit("info", "trial.completed", "", map[string]any{"i": i})
	}

	snap := r.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("expected buffer capped at 4, got %d", len(snap))
	}
	if snap[0].Fields["i"] != 2 || snap[3].Fields["i"] != 5 {
		t.Errorf("expected oldest-first 2..5, got %v .. %v", snap[0].Fields["i"], snap[3].Fields["i"])
	}
	if r.TotalCount() != 6 {
		t.Errorf("expected total 6, got %d", r.TotalCount())
	}

	r.Clear()
	if len(r.Snapshot()) != 0 {
		t.Error("expected empty buffer after Clear")
	}
	if r.TotalCount() != 6 {
		t.Error("Clear must not reset the emitted total")
	}
}

func TestMultipleSubscribersReceiveEvents(t *testing.T) {
	r := NewRecorder(16)
	sub1 := r.Subscribe()
	sub2 := r.Subscribe()
	defer r.Unsubscribe(sub1)
	defer r.Unsubscribe(sub2)

	r.Emit("info", "run.started", "", map[string]any{"trials": 10})

	select {
	case e := <-sub1:
		if e.Name != "run.started" {
			t.Errorf("sub1: expected 'run.started', got '%s'", e.Name)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("sub1: timeout waiting for event")
	}

	select {
	case e := <-sub2:
		if e.Name != "run.started" {
			t.Errorf("sub2: expected 'run.started', got '%s'", e.Name)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("sub2: timeout waiting for event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	r := NewRecorder(16)
	sub := r.Subscribe()
	r.Unsubscribe(sub)

	if _, ok := <-sub; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
}

func TestCloseAll(t *testing.T) {
	r := NewRecorder(16)
	sub1 := r.Subscribe()
	sub2 := r.Subscribe()
	sub3 := r.Subscribe()

	if r.SubscriberCount() != 3 {
		t.Errorf("expected 3 subscribers, got %d", r.SubscriberCount())
	}

	r.CloseAll()

	_, ok1 := <-sub1
	_, ok2 := <-sub2
	_, ok3 := <-sub3
	if ok1 || ok2 || ok3 {
		t.Error("expected all channels to be closed")
	}
	if r.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after CloseAll, got %d", r.SubscriberCount())
	}
}
