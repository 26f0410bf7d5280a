package tracker

import (
	"context"

	"github.com/go-logr/logr"
)

// LogTracker writes metrics and params as structured log lines. It is the
// default backend when no tracking database is configured.
type LogTracker struct {
	logger logr.Logger
	run    string
	active bool
}

// NewLogTracker returns a tracker logging through logger.
func NewLogTracker(logger logr.Logger) *LogTracker {
	return &LogTracker{logger: logger}
}

// StartRun logs the start of run name.
func (l *LogTracker) StartRun(_ context.Context, name string) error {
	if l.active {
		return ErrRunActive
	}
	l.active = true
	l.run = name
	l.logger.Info("Run started", "run", name)
	return nil
}

// EndRun logs the outcome of the active run.
func (l *LogTracker) EndRun(_ context.Context, success bool) error {
	if !l.active {
		return ErrRunNotStarted
	}
	l.logger.Info("Run ended", "run", l.run, "success", success)
	l.active = false
	l.run = ""
	return nil
}

// LogMetrics logs the numeric leaves of metrics as one line, keys sorted.
func (l *LogTracker) LogMetrics(_ context.Context, metrics map[string]any, step *int, prefix string) error {
	if !l.active {
		return ErrRunNotStarted
	}
	values := numericOnly(metrics, prefix)
	kv := make([]any, 0, 2*len(values)+4)
	kv = append(kv, "run", l.run)
	if step != nil {
		kv = append(kv, "step", *step)
	}
	for _, key := range sortedKeys(values) {
		kv = append(kv, key, values[key])
	}
	l.logger.Info("Metrics", kv...)
	return nil
}

// LogParams logs the flattened params as strings.
func (l *LogTracker) LogParams(_ context.Context, params map[string]any, prefix string) error {
	if !l.active {
		return ErrRunNotStarted
	}
	flat := Flatten(params, prefix)
	kv := make([]any, 0, 2*len(flat)+2)
	kv = append(kv, "run", l.run)
	for _, key := range sortedKeys(flat) {
		kv = append(kv, key, stringify(flat[key]))
	}
	l.logger.Info("Params", kv...)
	return nil
}
