package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/stopper/internal/evaluation"
	"github.com/danielpatrickdp/stopper/internal/replay"
)

var (
	serveFixture string
	serveAddr    string
)

var serveEvalCmd = &cobra.Command{
	Use:   "serve-eval",
	Short: "Serve a fixture's metric series over the evaluation gRPC service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := replay.LoadFixture(serveFixture)
		if err != nil {
			return err
		}
		addr := serveAddr
		if addr == "" {
			addr = appCfg.Evaluator.Addr
		}
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := evaluation.NewServer(f.Evaluator(), f.Config.Metric, logger.WithName("evaluation"))
		logger.Info("Loaded evaluation fixture", "fixture", serveFixture, "values", len(f.Values))
		return srv.Serve(ctx, lis)
	},
}

func init() {
	serveEvalCmd.Flags().StringVar(&serveFixture, "fixture", "", "fixture whose values are served (required)")
	serveEvalCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default evaluator.addr from config)")
	_ = serveEvalCmd.MarkFlagRequired("fixture")
}
