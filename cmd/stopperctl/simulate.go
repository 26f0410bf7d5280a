package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/stopper/internal/config"
	"github.com/danielpatrickdp/stopper/internal/evaluation"
	"github.com/danielpatrickdp/stopper/internal/stopper"
	"github.com/danielpatrickdp/stopper/internal/tracker"
	"github.com/danielpatrickdp/stopper/internal/trainloop"
)

var (
	simulateResume    bool
	simulateEpochs    int
	simulateStepDelay time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive a training loop against a remote evaluator",
	Long: `Simulate runs the training loop with empty epochs. Every cadence epoch is
evaluated by the evaluation service at evaluator.addr, the stopper state is
checkpointed to training.path and results are reported to the configured
tracker. Pair it with serve-eval to exercise a stopper configuration end to end.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runSimulate(ctx, cmd)
	},
}

func init() {
	simulateCmd.Flags().BoolVar(&simulateResume, "resume", false, "continue from the checkpoint at training.path if it exists")
	simulateCmd.Flags().IntVar(&simulateEpochs, "epochs", 0, "override training.max_epochs")
	simulateCmd.Flags().DurationVar(&simulateStepDelay, "step-delay", 0, "time spent per simulated epoch")
}

func runSimulate(ctx context.Context, cmd *cobra.Command) error {
	cfg := *appCfg
	if simulateEpochs > 0 {
		cfg.Training.MaxEpochs = simulateEpochs
	}

	// 1. Evaluator
	client, err := evaluation.NewClient(cfg.Evaluator.Addr, cfg.Stopper.Metric)
	if err != nil {
		return err
	}
	defer client.Close()
	ev := withTimeout(client, cfg.Evaluator.Timeout)

	// 2. Tracker
	tr, closeTracker, err := newTracker(cfg.Tracker)
	if err != nil {
		return err
	}
	defer closeTracker()

	// 3. Stopper, fresh or restored
	opts := []stopper.Option{
		stopper.WithLogger(logger.WithName("stopper")),
		stopper.WithCallbacks(tracker.StopperCallbacks(ctx, tr, cfg.Tracker.Prefix)),
	}
	var s stopper.Stopper
	start := 0
	if _, statErr := os.Stat(cfg.Training.CheckpointPath); simulateResume && statErr == nil {
		s, start, err = trainloop.Resume(cfg.Training.CheckpointPath, cfg.Stopper.Config, ev, logger, opts...)
	} else {
		s, err = stopper.New(cfg.Stopper.Config, ev, opts...)
	}
	if err != nil {
		return err
	}

	// 4. Loop
	step := func(ctx context.Context, epoch int) error {
		if simulateStepDelay <= 0 {
			return nil
		}
		select {
		case <-time.After(simulateStepDelay):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	loop, err := trainloop.New(cfg.Training, s, step,
		trainloop.WithTracker(tr),
		trainloop.WithLogger(logger.WithName("trainloop")),
	)
	if err != nil {
		return err
	}
	res, err := loop.Run(ctx, start)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	w := cmd.OutOrStdout()
	status := "ran to max epochs"
	if res.Stopped {
		status = "stopped early"
	}
	fmt.Fprintf(w, "Trained through epoch %d (%s), %d evaluations unavailable\n", res.LastEpoch, status, len(res.Skipped))
	if cfg.Training.CheckpointPath != "" {
		if out, err := loadInspect(cfg.Training.CheckpointPath); err == nil && cfg.Stopper.Enabled {
			printInspect(w, out)
		}
	}
	return nil
}

func withTimeout(ev stopper.Evaluator, timeout time.Duration) stopper.Evaluator {
	if timeout <= 0 {
		return ev
	}
	return stopper.EvaluatorFunc(func(ctx context.Context, epoch int) (float64, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return ev.Evaluate(ctx, epoch)
	})
}

func newTracker(cfg config.TrackerConfig) (tracker.Tracker, func(), error) {
	switch cfg.Backend {
	case config.TrackerSQLite:
		t, err := tracker.NewSQLiteTracker(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open tracker: %w", err)
		}
		return t, func() { t.Close() }, nil
	case config.TrackerLog:
		return tracker.NewLogTracker(logger.WithName("tracker")), func() {}, nil
	default:
		return &tracker.NopTracker{}, func() {}, nil
	}
}
