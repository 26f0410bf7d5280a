package stopper

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/stopper/internal/summary"
)

// #region stopper
// Stopper decides, epoch by epoch, whether training should continue.
// Implementations are driven by a single caller in increasing epoch order.
type Stopper interface {
	// ShouldEvaluate reports whether epoch is an evaluation point.
	ShouldEvaluate(epoch int) bool
	// ShouldStop evaluates on cadence epochs and reports whether to stop.
	ShouldStop(ctx context.Context, epoch int) (bool, error)
	// SummaryDict returns a flat copy of the decision state for reporting.
	SummaryDict() map[string]any
}

// #endregion stopper

// #region evaluator
// Evaluator supplies the tracked metric for an epoch, typically by running
// inference over a validation set.
type Evaluator interface {
	Evaluate(ctx context.Context, epoch int) (float64, error)
}

// EvaluatorFunc adapts a plain function to Evaluator.
type EvaluatorFunc func(ctx context.Context, epoch int) (float64, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, epoch int) (float64, error) {
	return f(ctx, epoch)
}

// #endregion evaluator

// #region callbacks
// Callback observes a stopper right after it recorded value for epoch.
type Callback func(s *EarlyStopper, value float64, epoch int) error

// Callbacks groups the hooks fired after each evaluation. OnResult runs for
// every evaluation, OnImprovement when the best metric changed and OnStopped
// once, on the evaluation that exhausted patience.
type Callbacks struct {
	OnResult      []Callback
	OnImprovement []Callback
	OnStopped     []Callback
}

// Merge appends other's hooks after c's.
func (c Callbacks) Merge(other Callbacks) Callbacks {
	return Callbacks{
		OnResult:      append(append([]Callback{}, c.OnResult...), other.OnResult...),
		OnImprovement: append(append([]Callback{}, c.OnImprovement...), other.OnImprovement...),
		OnStopped:     append(append([]Callback{}, c.OnStopped...), other.OnStopped...),
	}
}

// #endregion callbacks

// #region phase
// Phase is the lifecycle state of an EarlyStopper.
type Phase string

const (
	PhaseFresh      Phase = "fresh"
	PhaseEvaluating Phase = "evaluating"
	PhaseStopped    Phase = "stopped"
)

// PhaseOf derives the lifecycle state from a summary.
func PhaseOf(s summary.Summary) Phase {
	switch {
	case s.Stopped:
		return PhaseStopped
	case len(s.Results) == 0:
		return PhaseFresh
	default:
		return PhaseEvaluating
	}
}

// #endregion phase

// #region config
// Direction names the optimization direction of the tracked metric.
type Direction string

const (
	Maximize Direction = "maximize"
	Minimize Direction = "minimize"
)

// Config holds the early stopping parameters.
type Config struct {
	Enabled       bool      `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Frequency     int       `mapstructure:"frequency" json:"frequency" yaml:"frequency"`
	Patience      int       `mapstructure:"patience" json:"patience" yaml:"patience"`
	RelativeDelta float64   `mapstructure:"relative_delta" json:"relative_delta" yaml:"relative_delta"`
	Metric        string    `mapstructure:"metric" json:"metric" yaml:"metric"`
	Direction     Direction `mapstructure:"direction" json:"direction" yaml:"direction"`
}

// DefaultConfig returns the defaults used by the training harness.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Frequency:     10,
		Patience:      2,
		RelativeDelta: 0.01,
		Metric:        "hits_at_k",
		Direction:     Maximize,
	}
}

// LargerIsBetter resolves the direction. An empty direction means maximize.
func (c Config) LargerIsBetter() (bool, error) {
	switch c.Direction {
	case Maximize, "":
		return true, nil
	case Minimize:
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown direction %q", ErrConfiguration, c.Direction)
	}
}

// Summary validates c and returns the matching fresh summary.
func (c Config) Summary() (summary.Summary, error) {
	larger, err := c.LargerIsBetter()
	if err != nil {
		return summary.Summary{}, err
	}
	s := summary.New(c.Frequency, c.Patience, c.RelativeDelta, c.Metric, larger)
	if err := s.ValidateConfig(); err != nil {
		return summary.Summary{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return s, nil
}

// #endregion config
