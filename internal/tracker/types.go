package tracker

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/stopper/internal/stopper"
)

// #region errors
// Sentinel errors for the tracker package. ErrRunNotStarted also matches
// stopper.ErrPrecondition.
var (
	ErrRunNotStarted = fmt.Errorf("tracker: StartRun must be called before logging: %w", stopper.ErrPrecondition)
	ErrRunActive     = fmt.Errorf("tracker: a run is already active: %w", stopper.ErrPrecondition)
)

// #endregion errors

// #region tracker
// Tracker records metrics and parameters of a training run in an external
// experiment tracking backend. Logging outside StartRun/EndRun fails with
// ErrRunNotStarted.
type Tracker interface {
	StartRun(ctx context.Context, name string) error
	EndRun(ctx context.Context, success bool) error
	// LogMetrics records numeric values, optionally at step and under a key prefix.
	// Nested maps are flattened; non-numeric leaves are dropped.
	LogMetrics(ctx context.Context, metrics map[string]any, step *int, prefix string) error
	// LogParams records configuration values under an optional key prefix.
	LogParams(ctx context.Context, params map[string]any, prefix string) error
}

// #endregion tracker

// #region nop
// NopTracker discards everything. It still enforces the run lifecycle so
// callers behave the same against every backend.
type NopTracker struct {
	active bool
}

// StartRun marks a run active.
func (n *NopTracker) StartRun(context.Context, string) error {
	if n.active {
		return ErrRunActive
	}
	n.active = true
	return nil
}

// EndRun closes the active run.
func (n *NopTracker) EndRun(context.Context, bool) error {
	if !n.active {
		return ErrRunNotStarted
	}
	n.active = false
	return nil
}

// LogMetrics drops the metrics.
func (n *NopTracker) LogMetrics(context.Context, map[string]any, *int, string) error {
	if !n.active {
		return ErrRunNotStarted
	}
	return nil
}

// LogParams drops the params.
func (n *NopTracker) LogParams(context.Context, map[string]any, string) error {
	if !n.active {
		return ErrRunNotStarted
	}
	return nil
}

// #endregion nop
