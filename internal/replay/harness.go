package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/danielpatrickdp/stopper/internal/policy"
	"github.com/danielpatrickdp/stopper/internal/stopper"
	"github.com/danielpatrickdp/stopper/internal/summary"
)

var (
	// ErrNoValue is returned by a fixture evaluator for an epoch with no value.
	ErrNoValue = errors.New("no value for epoch")
	// ErrUnavailable marks a null value in a fixture series.
	ErrUnavailable = errors.New("evaluation unavailable")
)

// #region types
// ActionUnavailable marks an evaluation epoch whose value could not be obtained.
const ActionUnavailable policy.Action = "unavailable"

// ReplayResult captures one evaluation epoch of a replay.
type ReplayResult struct {
	Epoch             int
	Value             float64
	Available         bool
	Action            policy.Action
	Threshold         float64
	RemainingPatience int
	Stopped           bool
	Reason            string
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	Evaluations    int
	Improvements   int
	NoImprovements int
	Unavailable    int
	EpochsTrained  int
	StopEpoch      *int // nil when the series ran out first
	Final          summary.Summary
}

// #endregion types

// #region replay
// Replay trains epochs 1..f.Epochs() against an EarlyStopper fed by the
// fixture series and records every evaluation epoch. It stops at the first
// epoch the stopper reports true. Operates entirely in-memory.
func Replay(ctx context.Context, f *Fixture, logger logr.Logger) ([]ReplayResult, ReplaySummary, error) {
	s, err := stopper.NewEarlyStopper(f.Config.StopperConfig(), f.Evaluator(), stopper.WithLogger(logger))
	if err != nil {
		return nil, ReplaySummary{}, err
	}

	var results []ReplayResult
	var sum ReplaySummary
	for epoch := 1; epoch <= f.Epochs(); epoch++ {
		sum.EpochsTrained = epoch
		if !s.ShouldEvaluate(epoch) {
			continue
		}

		// 1. Ask the stopper
		prev := s.Summary()
		stop, err := s.ShouldStop(ctx, epoch)
		if errors.Is(err, stopper.ErrEvaluationUnavailable) {
			results = append(results, ReplayResult{
				Epoch:             epoch,
				Action:            ActionUnavailable,
				RemainingPatience: prev.RemainingPatience,
				Reason:            err.Error(),
			})
			sum.Unavailable++
			continue
		}
		if err != nil {
			return results, sum, err
		}

		// 2. Explain the decision
		cur := s.Summary()
		value := cur.Results[len(cur.Results)-1]
		d := policy.Apply(prev, value, epoch)
		results = append(results, ReplayResult{
			Epoch:             epoch,
			Value:             value,
			Available:         true,
			Action:            d.Action,
			Threshold:         d.Threshold,
			RemainingPatience: cur.RemainingPatience,
			Stopped:           cur.Stopped,
			Reason:            d.Reason,
		})
		sum.Evaluations++
		if d.Improved || d.Action == policy.ActionBaseline {
			sum.Improvements++
		} else {
			sum.NoImprovements++
		}

		if stop {
			e := epoch
			sum.StopEpoch = &e
			break
		}
	}
	sum.Final = s.Summary()
	return results, sum, nil
}

// #endregion replay

// #region check
// Check compares a replay against the fixture's expectations and returns
// one line per mismatch. A fixture without expectations always passes.
func Check(f *Fixture, results []ReplayResult, sum ReplaySummary) []string {
	exp := f.Expected
	if exp == nil {
		return nil
	}
	var mismatches []string
	if !equalIntPtr(exp.StopEpoch, sum.StopEpoch) {
		mismatches = append(mismatches, fmt.Sprintf("stop_epoch: expected %s, got %s", fmtIntPtr(exp.StopEpoch), fmtIntPtr(sum.StopEpoch)))
	}
	if !equalIntPtr(exp.BestEpoch, sum.Final.BestEpoch) {
		mismatches = append(mismatches, fmt.Sprintf("best_epoch: expected %s, got %s", fmtIntPtr(exp.BestEpoch), fmtIntPtr(sum.Final.BestEpoch)))
	}
	if exp.BestMetric != nil && *exp.BestMetric != sum.Final.BestMetric {
		mismatches = append(mismatches, fmt.Sprintf("best_metric: expected %v, got %v", *exp.BestMetric, sum.Final.BestMetric))
	}
	if len(exp.Actions) > 0 {
		if len(exp.Actions) != len(results) {
			mismatches = append(mismatches, fmt.Sprintf("actions: expected %d, got %d", len(exp.Actions), len(results)))
		}
		for i := range min(len(exp.Actions), len(results)) {
			if got := string(results[i].Action); got != exp.Actions[i] {
				mismatches = append(mismatches, fmt.Sprintf("epoch %d: expected action=%s, got action=%s", results[i].Epoch, exp.Actions[i], got))
			}
		}
	}
	return mismatches
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtIntPtr(p *int) string {
	if p == nil {
		return "none"
	}
	return fmt.Sprint(*p)
}

// #endregion check
