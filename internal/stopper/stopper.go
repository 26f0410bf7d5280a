package stopper

import (
	"context"
	"fmt"
	"math"

	"github.com/go-logr/logr"

	"github.com/danielpatrickdp/stopper/internal/policy"
	"github.com/danielpatrickdp/stopper/internal/summary"
)

// Log verbosity levels.
const (
	logDecision = 1
	logCadence  = 2
)

// #region options
// Option configures an EarlyStopper.
type Option func(*EarlyStopper)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger logr.Logger) Option {
	return func(s *EarlyStopper) { s.logger = logger }
}

// WithCallbacks appends hooks fired after each evaluation.
func WithCallbacks(cb Callbacks) Option {
	return func(s *EarlyStopper) { s.callbacks = s.callbacks.Merge(cb) }
}

// WithLastEvaluatedEpoch tells a restored stopper which epoch it evaluated
// last, so earlier epochs are rejected after a resume.
func WithLastEvaluatedEpoch(epoch int) Option {
	return func(s *EarlyStopper) {
		e := epoch
		s.lastEpoch = &e
	}
}

// #endregion options

// #region early-stopper
// EarlyStopper stops training once the tracked metric has failed to improve
// for patience consecutive evaluations. It owns one summary for its lifetime
// and is not safe for concurrent use.
type EarlyStopper struct {
	sum       summary.Summary
	evaluator Evaluator
	callbacks Callbacks
	logger    logr.Logger
	lastEpoch *int
}

// New builds the stopper described by cfg. A disabled config yields a
// NopStopper so callers never need to special-case it.
func New(cfg Config, evaluator Evaluator, opts ...Option) (Stopper, error) {
	if !cfg.Enabled {
		return NopStopper{}, nil
	}
	return NewEarlyStopper(cfg, evaluator, opts...)
}

// NewEarlyStopper validates cfg and returns a fresh stopper.
func NewEarlyStopper(cfg Config, evaluator Evaluator, opts ...Option) (*EarlyStopper, error) {
	s, err := cfg.Summary()
	if err != nil {
		return nil, err
	}
	return newEarlyStopper(s, evaluator, opts)
}

// FromSummary rebuilds a stopper from a persisted summary, e.g. one returned
// by LoadSummaryFromCheckpoint.
func FromSummary(s summary.Summary, evaluator Evaluator, opts ...Option) (*EarlyStopper, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return newEarlyStopper(s.Clone(), evaluator, opts)
}

func newEarlyStopper(s summary.Summary, evaluator Evaluator, opts []Option) (*EarlyStopper, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("%w: evaluator is required", ErrConfiguration)
	}
	es := &EarlyStopper{
		sum:       s,
		evaluator: evaluator,
		logger:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(es)
	}
	es.logger = es.logger.WithValues("metric", s.Metric)
	return es, nil
}

// #endregion early-stopper

// #region should-evaluate
// ShouldEvaluate reports whether epoch is a positive multiple of the frequency.
func (s *EarlyStopper) ShouldEvaluate(epoch int) bool {
	return epoch > 0 && epoch%s.sum.Frequency == 0
}

// #endregion should-evaluate

// #region should-stop
// ShouldStop evaluates the metric on cadence epochs and applies the patience
// policy. Off-cadence epochs return the stored decision without side effects;
// once stopped, every call returns true without evaluating.
//
// Calling again for the last evaluated epoch returns the stored decision
// without evaluating twice. A cadence epoch earlier than the last evaluated
// one fails with ErrPrecondition. If the evaluator fails or returns a
// non-finite value the error wraps ErrEvaluationUnavailable and the summary is
// left untouched.
func (s *EarlyStopper) ShouldStop(ctx context.Context, epoch int) (bool, error) {
	if s.sum.Stopped {
		return true, nil
	}
	if !s.ShouldEvaluate(epoch) {
		s.logger.V(logCadence).Info("Skipping evaluation off cadence", "epoch", epoch, "frequency", s.sum.Frequency)
		return false, nil
	}
	if s.lastEpoch != nil {
		if epoch == *s.lastEpoch {
			return s.sum.Stopped, nil
		}
		if epoch < *s.lastEpoch {
			return false, fmt.Errorf("%w: epoch %d already passed, last evaluated epoch is %d",
				ErrPrecondition, epoch, *s.lastEpoch)
		}
	}

	// 1. Evaluate
	value, err := s.evaluator.Evaluate(ctx, epoch)
	if err != nil {
		return false, fmt.Errorf("%w: epoch %d: %w", ErrEvaluationUnavailable, epoch, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return false, fmt.Errorf("%w: epoch %d: non-finite %s %v", ErrEvaluationUnavailable, epoch, s.sum.Metric, value)
	}

	// 2. Apply the policy and commit the new state
	d := policy.Apply(s.sum, value, epoch)
	s.sum = d.Summary
	if d.Exhausted {
		s.sum.Stopped = true
	}
	e := epoch
	s.lastEpoch = &e

	s.logger.V(logDecision).Info("Evaluated",
		"epoch", epoch,
		"value", value,
		"action", d.Action,
		"remainingPatience", s.sum.RemainingPatience,
		"reason", d.Reason,
	)

	// 3. Notify
	s.fire(s.callbacks.OnResult, value, epoch)
	if d.Improved {
		s.fire(s.callbacks.OnImprovement, value, epoch)
	}
	if s.sum.Stopped {
		s.logger.Info("Stopping early",
			"epoch", epoch,
			"bestEpoch", *s.sum.BestEpoch,
			"bestMetric", s.sum.BestMetric,
			"patience", s.sum.Patience,
		)
		s.fire(s.callbacks.OnStopped, value, epoch)
	}
	return s.sum.Stopped, nil
}

func (s *EarlyStopper) fire(hooks []Callback, value float64, epoch int) {
	for i, hook := range hooks {
		if err := hook(s, value, epoch); err != nil {
			s.logger.Error(err, "Callback failed", "epoch", epoch, "index", i)
		}
	}
}

// #endregion should-stop

// #region accessors
// Summary returns a deep copy of the decision state.
func (s *EarlyStopper) Summary() summary.Summary {
	return s.sum.Clone()
}

// SummaryDict returns the decision state as a flat mapping.
func (s *EarlyStopper) SummaryDict() map[string]any {
	return s.sum.ToMap()
}

// Phase reports the lifecycle state.
func (s *EarlyStopper) Phase() Phase {
	return PhaseOf(s.sum)
}

// Stopped reports whether patience has been exhausted.
func (s *EarlyStopper) Stopped() bool {
	return s.sum.Stopped
}

// BestEpoch returns the epoch of the best result and false before the first evaluation.
func (s *EarlyStopper) BestEpoch() (int, bool) {
	if s.sum.BestEpoch == nil {
		return 0, false
	}
	return *s.sum.BestEpoch, true
}

// LastEvaluatedEpoch returns the last epoch that produced a result, if known.
func (s *EarlyStopper) LastEvaluatedEpoch() (int, bool) {
	if s.lastEpoch == nil {
		return 0, false
	}
	return *s.lastEpoch, true
}

// #endregion accessors
