package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// graph
	"graph.loaded":  {},
	"graph.warning": {},

	// task
	"task.scheduled":   {},
	"task.interrupted": {},
	"task.completed":   {},
	"task.cancelled":   {},

	// run
	"run.started":     {},
	"run.interrupted": {},
	"run.completed":   {},

	// trial
	"trial.completed": {},

	// report
	"report.published": {},
	"report.failed":    {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
