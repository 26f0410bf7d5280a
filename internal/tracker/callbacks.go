package tracker

import (
	"context"

	"github.com/danielpatrickdp/stopper/internal/stopper"
	"github.com/danielpatrickdp/stopper/internal/summary"
)

// StopperCallbacks reports an early stopper's progress to t: every result as
// a metric at step=epoch, and the final summary as params once it stops.
// Only the flat summary mapping crosses into the tracker.
func StopperCallbacks(ctx context.Context, t Tracker, prefix string) stopper.Callbacks {
	onResult := func(s *stopper.EarlyStopper, value float64, epoch int) error {
		sum := s.Summary()
		step := epoch
		return t.LogMetrics(ctx, map[string]any{
			sum.Metric:                   value,
			summary.KeyRemainingPatience: sum.RemainingPatience,
		}, &step, prefix)
	}
	onStopped := func(s *stopper.EarlyStopper, _ float64, epoch int) error {
		dict := s.SummaryDict()
		delete(dict, summary.KeyResults)
		dict["stopped_epoch"] = epoch
		return t.LogParams(ctx, dict, prefix)
	}
	return stopper.Callbacks{
		OnResult:  []stopper.Callback{onResult},
		OnStopped: []stopper.Callback{onStopped},
	}
}
