package stopper

import "context"

// NopStopper never evaluates and never stops. It stands in for an
// EarlyStopper when stopping is disabled.
type NopStopper struct{}

// ShouldEvaluate always returns false.
func (NopStopper) ShouldEvaluate(int) bool { return false }

// ShouldStop always returns false.
func (NopStopper) ShouldStop(context.Context, int) (bool, error) { return false, nil }

// SummaryDict returns an empty mapping.
func (NopStopper) SummaryDict() map[string]any { return map[string]any{} }
