// Package audit records data-access and automation events. Sinks are
// fire-and-forget: a failing sink never interrupts the caller.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Categories used across homepilot.
const (
	CategoryBiometrics  = "biometrics"
	CategoryLocation    = "location"
	CategoryPlanning    = "planning"
	CategoryDecompose   = "decomposition"
	CategoryContext     = "context"
	CategoryAutomation  = "automation"
	CategoryCredentials = "credentials"
)

// Sink accepts audit events.
type Sink interface {
	Log(category, action string, details map[string]any)
}

// Nop discards every event.
type Nop struct{}

// Log implements Sink.
func (Nop) Log(string, string, map[string]any) {}

// Writer is the persistence contract of DBSink; *store.DB satisfies it.
type Writer interface {
	InsertAuditEntry(ctx context.Context, category, action string, details map[string]any) error
}

// DBSink persists events through a Writer. Write failures are reported to
// the logger and otherwise ignored.
type DBSink struct {
	w       Writer
	logger  *slog.Logger
	timeout time.Duration
}

// NewDBSink creates a sink writing to w. A nil logger uses slog.Default.
func NewDBSink(w Writer, logger *slog.Logger) *DBSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &DBSink{w: w, logger: logger.With("component", "audit"), timeout: 2 * time.Second}
}

// Log implements Sink.
func (s *DBSink) Log(category, action string, details map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.w.InsertAuditEntry(ctx, category, action, details); err != nil {
		s.logger.Warn("audit write failed", "category", category, "action", action, "err", err)
	}
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging at debug level.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "audit")}
}

// Log implements Sink.
func (s *LogSink) Log(category, action string, details map[string]any) {
	attrs := make([]any, 0, 2+2*len(details))
	attrs = append(attrs, "category", category)
	for k, v := range details {
		attrs = append(attrs, k, v)
	}
	s.logger.Debug(action, attrs...)
}

// Multi fans an event out to several sinks.
type Multi []Sink

// Log implements Sink.
func (m Multi) Log(category, action string, details map[string]any) {
	for _, s := range m {
		s.Log(category, action, details)
	}
}

// Recorder keeps events in memory. Tests use it to assert on audit output.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

// Event is one recorded audit call.
type Event struct {
	Category string
	Action   string
	Details  map[string]any
}

// Log implements Sink.
func (r *Recorder) Log(category, action string, details map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Event{Category: category, Action: action, Details: details})
}

// Has reports whether an event with the category and action was recorded.
func (r *Recorder) Has(category, action string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Events {
		if e.Category == category && e.Action == action {
			return true
		}
	}
	return false
}
