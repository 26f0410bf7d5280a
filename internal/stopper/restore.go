package stopper

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/danielpatrickdp/stopper/internal/checkpoint"
	"github.com/danielpatrickdp/stopper/internal/summary"
)

// #region load-summary
// LoadSummaryFromCheckpoint reads the stopper_dict section of the training
// checkpoint at path without building a stopper or loading other sections.
// It fails with ErrCheckpointIO when path cannot be read and with
// ErrCheckpointFormat when the section is missing or not a valid summary;
// no partially populated summary is returned in either case.
func LoadSummaryFromCheckpoint(path string, logger logr.Logger) (summary.Summary, error) {
	logger.Info("Loading stopper summary from training loop checkpoint", "path", path)

	var s summary.Summary
	if err := checkpoint.ReadSection(path, checkpoint.SectionStopper, &s); err != nil {
		return summary.Summary{}, fmt.Errorf("load stopper summary: %w", err)
	}
	if s.Results == nil {
		s.Results = []float64{}
	}
	if err := s.Validate(); err != nil {
		return summary.Summary{}, fmt.Errorf("%w: %s: %w", ErrCheckpointFormat, path, err)
	}

	logger.Info("Loaded stopper summary from checkpoint", "path", path,
		"evaluations", s.Evaluations(), "stopped", s.Stopped)
	return s, nil
}

// #endregion load-summary

// #region save-summary
// SaveSummary writes the stopper's summary into the stopper_dict section of store.
func SaveSummary(store *checkpoint.Store, s *EarlyStopper) error {
	if err := store.Put(checkpoint.SectionStopper, s.Summary()); err != nil {
		return fmt.Errorf("save stopper summary: %w", err)
	}
	return nil
}

// #endregion save-summary
