package trainloop

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/danielpatrickdp/stopper/internal/checkpoint"
	"github.com/danielpatrickdp/stopper/internal/stopper"
	"github.com/danielpatrickdp/stopper/internal/tracker"
)

// #region types
// StepFunc trains one epoch.
type StepFunc func(ctx context.Context, epoch int) error

// SectionsFunc returns extra checkpoint sections (model, optimizer, ...)
// to be written next to the stopper state.
type SectionsFunc func(epoch int) map[string]any

// Config controls how long the loop runs and how often it checkpoints.
type Config struct {
	MaxEpochs       int    `mapstructure:"max_epochs" json:"max_epochs" yaml:"max_epochs"`
	CheckpointPath  string `mapstructure:"path" json:"path" yaml:"path"`
	CheckpointEvery int    `mapstructure:"every" json:"every" yaml:"every"` // 0 checkpoints only at the end
	RunName         string `mapstructure:"run_name" json:"run_name" yaml:"run_name"`
}

// Result summarizes a Run.
type Result struct {
	LastEpoch int            // last epoch fully trained
	Stopped   bool           // the stopper ended training before MaxEpochs
	Skipped   []int          // cadence epochs whose evaluation was unavailable
	Summary   map[string]any // final stopper summary
}

// #endregion types

// #region loop
// Loop drives epochs, asks the stopper after each one and checkpoints its state.
type Loop struct {
	cfg      Config
	stopper  stopper.Stopper
	step     StepFunc
	sections SectionsFunc
	tracker  tracker.Tracker
	logger   logr.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithSections adds extra checkpoint sections.
func WithSections(f SectionsFunc) Option {
	return func(l *Loop) { l.sections = f }
}

// WithTracker reports the run to t. The loop starts and ends the run.
func WithTracker(t tracker.Tracker) Option {
	return func(l *Loop) { l.tracker = t }
}

// WithLogger sets the logger.
func WithLogger(logger logr.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New returns a loop; s may be a NopStopper.
func New(cfg Config, s stopper.Stopper, step StepFunc, opts ...Option) (*Loop, error) {
	if cfg.MaxEpochs < 1 {
		return nil, fmt.Errorf("%w: max_epochs must be positive, got %d", stopper.ErrConfiguration, cfg.MaxEpochs)
	}
	if cfg.CheckpointEvery < 0 {
		return nil, fmt.Errorf("%w: checkpoint every must not be negative", stopper.ErrConfiguration)
	}
	if s == nil || step == nil {
		return nil, fmt.Errorf("%w: stopper and step are required", stopper.ErrConfiguration)
	}
	l := &Loop{cfg: cfg, stopper: s, step: step, logger: logr.Discard()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// #endregion loop

// #region run
// Run trains epochs start+1..MaxEpochs until the stopper says stop. An
// unavailable evaluation is logged and training continues; any other error
// ends the run. The checkpoint is written every CheckpointEvery epochs and
// once more when the run ends, including on error and cancellation. A stopper
// that is already stopped trains nothing and reports no run.
func (l *Loop) Run(ctx context.Context, start int) (res Result, err error) {
	if st, ok := l.stopper.(interface{ Stopped() bool }); ok && st.Stopped() {
		l.logger.Info("Stopper already stopped, nothing to train", "epoch", start)
		return Result{LastEpoch: start, Stopped: true, Summary: l.stopper.SummaryDict()}, nil
	}

	if l.tracker != nil {
		if err := l.tracker.StartRun(ctx, l.cfg.RunName); err != nil {
			return res, fmt.Errorf("start run: %w", err)
		}
		if err := l.tracker.LogParams(ctx, map[string]any{
			"max_epochs": l.cfg.MaxEpochs,
			"stopper":    l.stopper.SummaryDict(),
		}, ""); err != nil {
			l.logger.Error(err, "Logging params failed")
		}
		defer func() {
			if endErr := l.tracker.EndRun(context.WithoutCancel(ctx), err == nil); endErr != nil {
				l.logger.Error(endErr, "Ending run failed")
			}
		}()
	}

	res.LastEpoch = start
	defer func() {
		res.Summary = l.stopper.SummaryDict()
		if res.LastEpoch > start || err == nil {
			if saveErr := l.save(res.LastEpoch); saveErr != nil {
				err = errors.Join(err, saveErr)
			}
		}
	}()

	for epoch := start + 1; epoch <= l.cfg.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		// 1. Train
		if err := l.step(ctx, epoch); err != nil {
			return res, fmt.Errorf("train epoch %d: %w", epoch, err)
		}
		res.LastEpoch = epoch

		// 2. Ask the stopper
		stop, err := l.stopper.ShouldStop(ctx, epoch)
		switch {
		case errors.Is(err, stopper.ErrEvaluationUnavailable):
			l.logger.Error(err, "Evaluation unavailable, continuing", "epoch", epoch)
			res.Skipped = append(res.Skipped, epoch)
		case err != nil:
			return res, fmt.Errorf("stopper at epoch %d: %w", epoch, err)
		}

		// 3. Stop or checkpoint
		if stop {
			res.Stopped = true
			l.logger.Info("Training stopped early", "epoch", epoch)
			return res, nil
		}
		if l.cfg.CheckpointEvery > 0 && epoch%l.cfg.CheckpointEvery == 0 && epoch < l.cfg.MaxEpochs {
			if err := l.save(epoch); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// #endregion run

// #region save
func (l *Loop) save(epoch int) error {
	if l.cfg.CheckpointPath == "" {
		return nil
	}
	sections := map[string]any{}
	if l.sections != nil {
		for k, v := range l.sections(epoch) {
			sections[k] = v
		}
	}
	sections[checkpoint.SectionEpoch] = epoch
	sections[checkpoint.SectionStopper] = l.stopper.SummaryDict()

	store, err := checkpoint.Create(l.cfg.CheckpointPath)
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	defer store.Close()
	if err := store.PutMany(sections); err != nil {
		return fmt.Errorf("save checkpoint at epoch %d: %w", epoch, err)
	}
	l.logger.V(1).Info("Saved checkpoint", "path", l.cfg.CheckpointPath, "epoch", epoch)
	return nil
}

// #endregion save
