// Package simulation holds the work units the CLI schedules: a debug
// trial that prints every step, and a batch of trials reduced into a
// statistics report.
package simulation

import (
	"fmt"
	"io"
	"log/slog"
)

// Sink receives formatted report lines.
type Sink interface {
	Line(line string)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(line string)

func (f SinkFunc) Line(line string) { f(line) }

// WriterSink writes each line to w followed by a newline. Write errors are
// ignored.
func WriterSink(w io.Writer) Sink {
	return SinkFunc(func(line string) {
		fmt.Fprintln(w, line)
	})
}

// LoggerSink logs each line at info level.
func LoggerSink(logger *slog.Logger) Sink {
	return SinkFunc(func(line string) {
		logger.Info(line)
	})
}

// Tee sends every line to each non-nil sink in order.
func Tee(sinks ...Sink) Sink {
	var out []Sink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return SinkFunc(func(line string) {
		for _, s := range out {
			s.Line(line)
		}
	})
}

var discard = SinkFunc(func(string) {})
