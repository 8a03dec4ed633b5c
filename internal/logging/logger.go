// Package logging builds the leveled loggers used by progsim and the
// optional JSONL step trace written alongside a debug trial.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. Per-step detail of every
// trial in a batch is logged at this level.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "warn", "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

func handlerOptions(level string) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
}

// NewLogger creates a leveled text logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, handlerOptions(level)))
}

// NewJSONLogger creates a leveled logger emitting one JSON object per line.
func NewJSONLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, handlerOptions(level)))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Trace logs msg at LevelTrace.
func Trace(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelTrace, msg, args...)
}

// StepTrace appends one JSON object per traversal step to a file.
// A nil StepTrace is safe to use; all methods are no-ops.
type StepTrace struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// OpenStepTrace opens path for append, creating parent directories.
// An empty path returns nil without error.
func OpenStepTrace(path string) (*StepTrace, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	return &StepTrace{file: f, now: time.Now}, nil
}

// Log writes entry as a single JSONL line with a "time" field added.
// The caller's map is not mutated.
func (st *StepTrace) Log(entry map[string]any) {
	if st == nil || st.file == nil {
		return
	}

	line := make(map[string]any, len(entry)+1)
	for k, v := range entry {
		line[k] = v
	}
	line["time"] = st.now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(line)
	if err != nil {
		return
	}
	data = append(data, '\n')

	st.mu.Lock()
	defer st.mu.Unlock()
	_, _ = st.file.Write(data)
}

// Close closes the underlying file.
func (st *StepTrace) Close() error {
	if st == nil || st.file == nil {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	err := st.file.Close()
	st.file = nil
	return err
}
