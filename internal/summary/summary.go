package summary

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrInvalid is returned by Validate when a summary breaks one of its invariants.
var ErrInvalid = errors.New("summary: invalid")

// #region constructor
// New returns the fresh state of a stopper: no results, full patience, no best epoch.
func New(frequency, patience int, relativeDelta float64, metric string, largerIsBetter bool) Summary {
	return Summary{
		Frequency:         frequency,
		Patience:          patience,
		RemainingPatience: patience,
		RelativeDelta:     relativeDelta,
		Metric:            metric,
		LargerIsBetter:    largerIsBetter,
		Results:           []float64{},
	}
}

// #endregion constructor

// #region clone
// Clone returns a deep copy that shares no memory with s.
func (s Summary) Clone() Summary {
	out := s
	out.Results = slices.Clone(s.Results)
	if out.Results == nil {
		out.Results = []float64{}
	}
	if s.BestEpoch != nil {
		epoch := *s.BestEpoch
		out.BestEpoch = &epoch
	}
	return out
}

// #endregion clone

// #region validate
// ValidateConfig checks only the configuration fields of the summary.
func (s Summary) ValidateConfig() error {
	if s.Frequency < 1 {
		return fmt.Errorf("%w: frequency must be positive, got %d", ErrInvalid, s.Frequency)
	}
	if s.Patience < 1 {
		return fmt.Errorf("%w: patience must be positive, got %d", ErrInvalid, s.Patience)
	}
	if s.RelativeDelta < 0 || math.IsNaN(s.RelativeDelta) || math.IsInf(s.RelativeDelta, 0) {
		return fmt.Errorf("%w: relative_delta must be a non-negative number, got %v", ErrInvalid, s.RelativeDelta)
	}
	if s.Metric == "" {
		return fmt.Errorf("%w: metric must not be empty", ErrInvalid)
	}
	return nil
}

// Validate checks configuration and decision state invariants.
func (s Summary) Validate() error {
	if err := s.ValidateConfig(); err != nil {
		return err
	}
	if s.RemainingPatience < 0 || s.RemainingPatience > s.Patience {
		return fmt.Errorf("%w: remaining_patience %d outside [0, %d]", ErrInvalid, s.RemainingPatience, s.Patience)
	}
	if (s.BestEpoch == nil) != (len(s.Results) == 0) {
		return fmt.Errorf("%w: best_epoch must be set exactly when results are present", ErrInvalid)
	}
	if len(s.Results) > 0 {
		if !slices.Contains(s.Results, s.BestMetric) {
			return fmt.Errorf("%w: best_metric %v is not one of the results", ErrInvalid, s.BestMetric)
		}
		if s.BestMetric != s.best() {
			return fmt.Errorf("%w: best_metric %v is not the best result %v", ErrInvalid, s.BestMetric, s.best())
		}
	}
	if s.Stopped && s.RemainingPatience != 0 {
		return fmt.Errorf("%w: stopped with %d patience remaining", ErrInvalid, s.RemainingPatience)
	}
	return nil
}

// best returns the extreme of Results in the configured direction. With a
// positive relative delta a slightly better result never replaces the best,
// so only delta-free summaries are held to the extreme.
func (s Summary) best() float64 {
	if s.RelativeDelta > 0 {
		return s.BestMetric
	}
	if s.LargerIsBetter {
		return slices.Max(s.Results)
	}
	return slices.Min(s.Results)
}

// #endregion validate

// #region evaluations
// Evaluations returns the number of evaluations recorded so far.
func (s Summary) Evaluations() int {
	return len(s.Results)
}

// #endregion evaluations

// #region to-map
// ToMap flattens the summary into the mapping handed to reporting backends.
// best_epoch is nil before the first evaluation.
func (s Summary) ToMap() map[string]any {
	var bestEpoch any
	if s.BestEpoch != nil {
		bestEpoch = *s.BestEpoch
	}
	return map[string]any{
		KeyFrequency:         s.Frequency,
		KeyPatience:          s.Patience,
		KeyRemainingPatience: s.RemainingPatience,
		KeyRelativeDelta:     s.RelativeDelta,
		KeyMetric:            s.Metric,
		KeyLargerIsBetter:    s.LargerIsBetter,
		KeyResults:           slices.Clone(s.Results),
		KeyStopped:           s.Stopped,
		KeyBestEpoch:         bestEpoch,
		KeyBestMetric:        s.BestMetric,
	}
}

// #endregion to-map
