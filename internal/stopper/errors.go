package stopper

import (
	"errors"

	"github.com/danielpatrickdp/stopper/internal/checkpoint"
)

// Sentinel errors for the stopper package.
// Use errors.Is to check: errors.Is(err, stopper.ErrEvaluationUnavailable)
var (
	ErrConfiguration         = errors.New("stopper: invalid configuration")
	ErrEvaluationUnavailable = errors.New("stopper: evaluation unavailable")
	ErrPrecondition          = errors.New("stopper: precondition violated")

	// Checkpoint failures surface the checkpoint package's sentinels unchanged.
	ErrCheckpointIO     = checkpoint.ErrIO
	ErrCheckpointFormat = checkpoint.ErrFormat
)
