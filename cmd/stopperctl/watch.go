package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/stopper/internal/checkpoint"
)

var watchCmd = &cobra.Command{
	Use:   "watch <checkpoint>",
	Short: "Re-print the stopper summary each time the checkpoint is written",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := cmd.OutOrStdout()
		show := func() {
			out, err := loadInspect(path)
			if err != nil {
				logger.Error(err, "Reading checkpoint failed", "path", path)
				return
			}
			fmt.Fprintln(w)
			printInspect(w, out)
		}

		if _, err := os.Stat(path); err == nil {
			show()
		} else {
			logger.Info("Waiting for checkpoint", "path", path)
		}
		err := checkpoint.Watch(ctx, path, logger, show)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}
