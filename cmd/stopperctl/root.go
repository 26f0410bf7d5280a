package main

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/stopper/internal/config"
)

var (
	cfgFile string
	verbose bool

	appCfg *config.Config
	logger = logr.Discard()
	flush  = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "stopperctl",
	Short: "Early stopping checkpoint tools",
	Long: `stopperctl works with the early stopping state saved in training checkpoints.

It can print the stopper summary stored in a checkpoint, follow a checkpoint
while training writes it, replay recorded metric series through the patience
policy, serve a series over the evaluation gRPC service, and drive a
simulated training loop against a remote evaluator.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Verbose = true
		}
		appCfg = cfg

		l, sync, err := newLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		logger, flush = l.WithName("stopperctl"), sync
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		flush()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		flush()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./stopper.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log per-evaluation decisions")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(serveEvalCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(exportFixtureCmd)
}
