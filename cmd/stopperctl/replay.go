package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/stopper/internal/policy"
	"github.com/danielpatrickdp/stopper/internal/replay"
)

var replayJSON bool

var replayCmd = &cobra.Command{
	Use:   "replay <fixture>...",
	Short: "Replay recorded metric series through the patience policy",
	Long: `Replay runs each fixture (JSON, or YAML for .yaml/.yml files) through an
early stopper and checks the outcome against the fixture's expectations.
The command fails if any fixture does not match.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			ok, err := runReplay(cmd, w, path)
			if err != nil {
				return err
			}
			if !ok {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d fixtures did not match", failed, len(args))
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "output results as JSON")
}

type replayOutput struct {
	Fixture    string                `json:"fixture"`
	Results    []replay.ReplayResult `json:"results"`
	Summary    replay.ReplaySummary  `json:"summary"`
	Mismatches []string              `json:"mismatches,omitempty"`
}

func runReplay(cmd *cobra.Command, w io.Writer, path string) (bool, error) {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return false, err
	}
	results, sum, err := replay.Replay(cmd.Context(), f, logger.WithValues("fixture", path))
	if err != nil {
		return false, fmt.Errorf("replay %s: %w", path, err)
	}
	mismatches := replay.Check(f, results, sum)

	if replayJSON {
		return len(mismatches) == 0, printJSON(w, replayOutput{path, results, sum, mismatches})
	}

	fmt.Fprintf(w, "%s", path)
	if f.Description != "" {
		fmt.Fprintf(w, ": %s", f.Description)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%6s  %8s  %10s  %-15s  %s\n", "Epoch", "Value", "Threshold", "Action", "Patience")
	for _, r := range results {
		value, threshold := "—", "—"
		if r.Available {
			value = fmt.Sprintf("%.4f", r.Value)
			if r.Action != policy.ActionBaseline {
				threshold = fmt.Sprintf("%.4f", r.Threshold)
			}
		}
		fmt.Fprintf(w, "%6d  %8s  %10s  %s  %d\n", r.Epoch, value, threshold, colorAction(r.Action), r.RemainingPatience)
	}

	stopped := "ran to completion"
	if sum.StopEpoch != nil {
		stopped = fmt.Sprintf("stopped at epoch %d", *sum.StopEpoch)
	}
	fmt.Fprintf(w, "%d evaluations, %d unavailable, %s\n", sum.Evaluations, sum.Unavailable, stopped)

	red, green := color.New(color.FgRed), color.New(color.FgGreen)
	if len(mismatches) == 0 {
		if f.Expected != nil {
			fmt.Fprintln(w, green.Sprint("✓ matches expectations"))
		}
		fmt.Fprintln(w)
		return true, nil
	}
	for _, m := range mismatches {
		fmt.Fprintln(w, red.Sprint("✗ "+m))
	}
	fmt.Fprintln(w)
	return false, nil
}

func colorAction(a policy.Action) string {
	s := fmt.Sprintf("%-15s", a)
	switch a {
	case policy.ActionImproved, policy.ActionBaseline:
		return color.New(color.FgGreen).Sprint(s)
	case policy.ActionExhausted:
		return color.New(color.FgRed).Sprint(s)
	case replay.ActionUnavailable:
		return color.New(color.FgYellow).Sprint(s)
	default:
		return s
	}
}
