package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/stopper/internal/replay"
	"github.com/danielpatrickdp/stopper/internal/tracker"
)

var (
	exportDB  string
	exportRun string
	exportOut string
)

var exportFixtureCmd = &cobra.Command{
	Use:   "export-fixture",
	Short: "Export a run recorded by the sqlite tracker as a replay fixture",
	Long: `Export-fixture reads the stopper metric logged for a run in the tracking
database and writes it as a replay fixture, using the stopper section of the
config. The run's stopped_epoch and best_epoch params become the fixture's
expectations, so replaying it checks the policy still reaches the same outcome.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dbPath := exportDB
		if dbPath == "" {
			dbPath = appCfg.Tracker.DBPath
		}
		t, err := tracker.NewSQLiteTracker(dbPath)
		if err != nil {
			return fmt.Errorf("open tracker: %w", err)
		}
		defer t.Close()

		runID := exportRun
		if runID == "" {
			if runID, err = t.LatestRunID(ctx); err != nil {
				return err
			}
		}

		sc := appCfg.Stopper
		prefix := appCfg.Tracker.Prefix
		points, err := t.History(ctx, runID, joinKey(prefix, sc.Metric))
		if err != nil {
			return err
		}
		params, err := t.Params(ctx, runID)
		if err != nil {
			return err
		}

		cfg := replay.FixtureConfig{
			Frequency:     sc.Frequency,
			Patience:      sc.Patience,
			RelativeDelta: sc.RelativeDelta,
			Metric:        sc.Metric,
			Direction:     string(sc.Direction),
		}
		f, err := replay.FixtureFromHistory(cfg, points,
			intParam(params, joinKey(prefix, "stopped_epoch")),
			intParam(params, joinKey(prefix, "best_epoch")),
		)
		if err != nil {
			return fmt.Errorf("run %s: %w", runID, err)
		}
		f.Description = fmt.Sprintf("exported from run %s in %s", runID, dbPath)
		if err := replay.SaveFixture(exportOut, f); err != nil {
			return err
		}
		logger.Info("Exported fixture", "run", runID, "values", len(f.Values), "out", exportOut)
		return nil
	},
}

func init() {
	exportFixtureCmd.Flags().StringVar(&exportDB, "db", "", "tracking database (default tracker.db_path from config)")
	exportFixtureCmd.Flags().StringVar(&exportRun, "run", "", "run ID (default latest run)")
	exportFixtureCmd.Flags().StringVar(&exportOut, "out", "", "output fixture path, .yaml/.yml for YAML (required)")
	_ = exportFixtureCmd.MarkFlagRequired("out")
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + tracker.Separator + key
}

func intParam(params map[string]string, key string) *int {
	v, ok := params[key]
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}
