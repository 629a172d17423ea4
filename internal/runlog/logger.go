// Package runlog implements the logger contract described in spec.md §6:
// info/warn/error/debug, child(fields), publishMetric, validationFailure,
// synchronizationUploadStart/End, and on("event", handler). It wraps
// *slog.Logger the same way internal/ctxlog carries one through
// context.Context — the transport to a remote event sink is an external
// collaborator (spec.md §1); this package only emits locally and fans
// events out to subscribers.
package runlog

import (
	"log/slog"
)

// Metric is the shape published by PublishMetric, matching spec.md §4.5's
// disk-usage metric ({name, unit, value}).
type Metric struct {
	Name  string
	Unit  string
	Value float64
}

// SynchronizationJob is the minimal job-identity shape the upload
// start/end hooks receive.
type SynchronizationJob struct {
	ID     string
	Source string
}

// Logger implements the full contract. Use New to construct one backed by
// a *slog.Logger; Child returns a derived Logger with additional fields
// attached, mirroring slog's own .With().
type Logger struct {
	slog   *slog.Logger
	events *EventBus
}

// New wraps slog with the runtime's logger contract. events may be nil, in
// which case On/Emit become no-ops (useful in tests that don't exercise
// the uploader's event drain).
func New(base *slog.Logger, events *EventBus) *Logger {
	if base == nil {
		base = slog.Default()
	}
	return &Logger{slog: base, events: events}
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// Child returns a new Logger with fields permanently attached, the way
// slog.Logger.With works, sharing the same event bus as the parent.
func (l *Logger) Child(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{slog: l.slog.With(args...), events: l.events}
}

// PublishMetric emits a structured metric, the path the scheduler's
// post-run disk-usage measurement (spec.md §4.5) uses.
func (l *Logger) PublishMetric(m Metric) {
	l.slog.Info("metric", "name", m.Name, "unit", m.Unit, "value", m.Value)
	l.Emit("metric", m)
}

// ValidationFailure logs validateInvocation's rejection before the caller
// re-throws it to abort the run (spec.md §4.5 Validation phase).
func (l *Logger) ValidationFailure(err error) {
	l.slog.Error("validation failed", "error", err)
	l.Emit("validationFailure", err)
}

// SynchronizationUploadStart/End bracket the uploader's lifecycle.
func (l *Logger) SynchronizationUploadStart(job SynchronizationJob) {
	l.slog.Info("synchronization upload starting", "jobId", job.ID, "source", job.Source)
	l.Emit("synchronizationUploadStart", job)
}

func (l *Logger) SynchronizationUploadEnd(job SynchronizationJob) {
	l.slog.Info("synchronization upload finished", "jobId", job.ID)
	l.Emit("synchronizationUploadEnd", job)
}

// On subscribes handler to every event published through this Logger's
// bus, mirroring the embedder-facing logger.on("event", handler) contract.
func (l *Logger) On(eventName string, handler func(payload any)) {
	if l.events == nil {
		return
	}
	l.events.Subscribe(eventName, handler)
}

// Emit publishes an event payload under eventName. Step handlers and
// internal components use it to surface arbitrary structured events; the
// uploader's event drain (internal/uploader/eventdrain.go) is the
// canonical consumer.
func (l *Logger) Emit(eventName string, payload any) {
	if l.events == nil {
		return
	}
	l.events.Publish(eventName, payload)
}
