package trainloop

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/danielpatrickdp/stopper/internal/checkpoint"
	"github.com/danielpatrickdp/stopper/internal/stopper"
)

// Resume rebuilds the stopper from the checkpoint at path and returns the
// epoch training should continue after. A disabled cfg yields a NopStopper
// and only the epoch is read. The restored stopper rejects epochs before the
// checkpointed one.
func Resume(path string, cfg stopper.Config, ev stopper.Evaluator, logger logr.Logger, opts ...stopper.Option) (stopper.Stopper, int, error) {
	var epoch int
	if err := checkpoint.ReadSection(path, checkpoint.SectionEpoch, &epoch); err != nil {
		return nil, 0, err
	}
	if epoch < 0 {
		return nil, 0, fmt.Errorf("%w: negative epoch %d", stopper.ErrCheckpointFormat, epoch)
	}
	if !cfg.Enabled {
		return stopper.NopStopper{}, epoch, nil
	}

	sum, err := stopper.LoadSummaryFromCheckpoint(path, logger)
	if err != nil {
		return nil, 0, err
	}
	if epoch > 0 {
		opts = append(opts, stopper.WithLastEvaluatedEpoch(epoch))
	}
	opts = append([]stopper.Option{stopper.WithLogger(logger)}, opts...)
	s, err := stopper.FromSummary(sum, ev, opts...)
	if err != nil {
		return nil, 0, err
	}
	return s, epoch, nil
}
