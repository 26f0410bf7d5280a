package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/stopper/internal/checkpoint"
	"github.com/danielpatrickdp/stopper/internal/stopper"
	"github.com/danielpatrickdp/stopper/internal/summary"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <checkpoint>",
	Short: "Print the stopper summary stored in a checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := loadInspect(args[0])
		if err != nil {
			return err
		}
		if inspectJSON {
			return printJSON(cmd.OutOrStdout(), out)
		}
		printInspect(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON instead of table")
}

// #region load

type inspectOutput struct {
	Path    string          `json:"path"`
	Epoch   *int            `json:"epoch,omitempty"`
	Phase   stopper.Phase   `json:"phase"`
	Summary summary.Summary `json:"summary"`
}

func loadInspect(path string) (inspectOutput, error) {
	sum, err := stopper.LoadSummaryFromCheckpoint(path, logger)
	if err != nil {
		return inspectOutput{}, err
	}
	out := inspectOutput{Path: path, Phase: stopper.PhaseOf(sum), Summary: sum}

	// The epoch section is optional: checkpoints written by other tools may
	// carry only the stopper state.
	var epoch int
	switch err := checkpoint.ReadSection(path, checkpoint.SectionEpoch, &epoch); {
	case err == nil:
		out.Epoch = &epoch
	case errors.Is(err, checkpoint.ErrFormat):
	default:
		return inspectOutput{}, err
	}
	return out, nil
}

// #endregion load

// #region output

var phaseColors = map[stopper.Phase]color.Attribute{
	stopper.PhaseFresh:      color.FgYellow,
	stopper.PhaseEvaluating: color.FgGreen,
	stopper.PhaseStopped:    color.FgRed,
}

func printInspect(w io.Writer, out inspectOutput) {
	s := out.Summary
	direction := stopper.Maximize
	if !s.LargerIsBetter {
		direction = stopper.Minimize
	}

	fmt.Fprintf(w, "Checkpoint: %s\n", out.Path)
	if out.Epoch != nil {
		fmt.Fprintf(w, "Epoch:      %d\n", *out.Epoch)
	}
	fmt.Fprintf(w, "Status:     %s\n", color.New(phaseColors[out.Phase]).Sprint(strings.ToUpper(string(out.Phase))))
	fmt.Fprintf(w, "Metric:     %s (%s)\n", s.Metric, direction)
	fmt.Fprintf(w, "Frequency:  every %d epochs\n", s.Frequency)
	fmt.Fprintf(w, "Patience:   %d/%d remaining\n", s.RemainingPatience, s.Patience)
	fmt.Fprintf(w, "Delta:      %g\n", s.RelativeDelta)
	if s.BestEpoch != nil {
		fmt.Fprintf(w, "Best:       %.4f at epoch %d\n", s.BestMetric, *s.BestEpoch)
	} else {
		fmt.Fprintf(w, "Best:       —\n")
	}

	if len(s.Results) == 0 {
		return
	}
	fmt.Fprintf(w, "\nResults (%d):\n", len(s.Results))
	best := -1
	for i, v := range s.Results {
		if best < 0 && v == s.BestMetric {
			best = i
		}
	}
	for i, v := range s.Results {
		mark := " "
		if i == best {
			mark = color.New(color.FgGreen).Sprint("*")
		}
		fmt.Fprintf(w, "  %s %4d  %.4f\n", mark, i+1, v)
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// #endregion output
