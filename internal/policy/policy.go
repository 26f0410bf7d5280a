package policy

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/stopper/internal/summary"
)

// #region threshold
// Threshold returns the value an observation has to strictly beat to count as
// an improvement over best. The tolerance is scaled by |best| so it always
// points in the improving direction; for best >= 0 this is best*(1±delta),
// and a zero best degenerates to a strict comparison against zero.
func Threshold(best, relativeDelta float64, largerIsBetter bool) float64 {
	margin := math.Abs(best) * relativeDelta
	if largerIsBetter {
		return best + margin
	}
	return best - margin
}

// IsImprovement reports whether value beats best under the given tolerance.
// Ties never improve.
func IsImprovement(best, value, relativeDelta float64, largerIsBetter bool) bool {
	threshold := Threshold(best, relativeDelta, largerIsBetter)
	if largerIsBetter {
		return value > threshold
	}
	return value < threshold
}

// #endregion threshold

// #region apply
// Apply records one observation taken at epoch and returns the updated state.
// It is a pure function: the input summary is left untouched and identical
// inputs always produce identical decisions.
func Apply(s summary.Summary, value float64, epoch int) Decision {
	next := s.Clone()
	next.Results = append(next.Results, value)

	// 1. Baseline: the first observation always improves
	if len(s.Results) == 0 {
		markBest(&next, value, epoch)
		return Decision{
			Summary:  next,
			Action:   ActionBaseline,
			Improved: true,
			Reason:   fmt.Sprintf("baseline %s=%.6g at epoch %d", s.Metric, value, epoch),
		}
	}

	threshold := Threshold(s.BestMetric, s.RelativeDelta, s.LargerIsBetter)

	// 2. Improvement resets patience
	if IsImprovement(s.BestMetric, value, s.RelativeDelta, s.LargerIsBetter) {
		markBest(&next, value, epoch)
		return Decision{
			Summary:   next,
			Action:    ActionImproved,
			Improved:  true,
			Threshold: threshold,
			Reason:    fmt.Sprintf("%s=%.6g beat threshold %.6g", s.Metric, value, threshold),
		}
	}

	// 3. No improvement spends one unit of patience
	next.RemainingPatience = max(next.RemainingPatience-1, 0)
	if next.RemainingPatience == 0 {
		return Decision{
			Summary:   next,
			Action:    ActionExhausted,
			Exhausted: true,
			Threshold: threshold,
			Reason: fmt.Sprintf("%s=%.6g did not beat threshold %.6g; patience %d exhausted",
				s.Metric, value, threshold, s.Patience),
		}
	}
	return Decision{
		Summary:   next,
		Action:    ActionNoImprove,
		Threshold: threshold,
		Reason: fmt.Sprintf("%s=%.6g did not beat threshold %.6g; %d/%d patience left",
			s.Metric, value, threshold, next.RemainingPatience, s.Patience),
	}
}

// #endregion apply

// #region helpers
func markBest(s *summary.Summary, value float64, epoch int) {
	e := epoch
	s.BestEpoch = &e
	s.BestMetric = value
	s.RemainingPatience = s.Patience
}

// #endregion helpers
