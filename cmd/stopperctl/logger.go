package main

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/danielpatrickdp/stopper/internal/config"
)

// newLogger builds the process logger. Verbose mode uses the zap development
// encoder and enables logr levels up to cfg.Level.
func newLogger(cfg config.LogConfig) (logr.Logger, func(), error) {
	var zc zap.Config
	if cfg.Verbose {
		zc = zap.NewDevelopmentConfig()
		zc.Level = zap.NewAtomicLevelAt(zapcore.Level(-cfg.Level))
	} else {
		zc = zap.NewProductionConfig()
		zc.Sampling = nil
	}
	z, err := zc.Build()
	if err != nil {
		return logr.Discard(), func() {}, err
	}
	return zapr.NewLogger(z), func() { _ = z.Sync() }, nil
}
