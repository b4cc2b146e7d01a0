// File: cmd/fwd/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Engine entrypoint: load the resolved configuration, build the logger,
// wire the engine over the in-memory driver backend, run until signaled.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/momentics/hioload-fwd/config"
	"github.com/momentics/hioload-fwd/driver"
	"github.com/momentics/hioload-fwd/engine"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "fwd",
		Short: "L2/L3 packet-forwarding engine",
		Long: "fwd ingests packets from port receive queues, learns MAC/IPv4 routes\n" +
			"from observed traffic, and fans packets out to registered sibling\n" +
			"processes over per-client shared rings.",
		RunE: run,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	eng, err := engine.New(cfg, driver.NewMem(), log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return eng.Run(ctx)
}

// newLogger builds the process logger from config.
func newLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	if format == "json" {
		cfg.Encoding = "json"
	} else {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return cfg.Build()
}
