package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshp123/overlap-go/internal/config"
	"github.com/joshp123/overlap-go/internal/logging"
	"github.com/joshp123/overlap-go/internal/report"
)

type globalOptions struct {
	output    string
	outPath   string
	logLevel  string
	logFormat string
	logger    *slog.Logger
}

var globalOpts = &globalOptions{}

func bindGlobalFlags(cmd *cobra.Command, cfg *config.Config) {
	cmd.PersistentFlags().StringVar(&globalOpts.output, "output", report.ModeSummary, "Output format (summary|json|path)")
	cmd.PersistentFlags().StringVar(&globalOpts.outPath, "out", "", "Output path when --output=path")
	cmd.PersistentFlags().StringVar(&globalOpts.logLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&globalOpts.logFormat, "log-format", cfg.LogFormat, "Log format (text|json)")
}

func applyGlobalOptions(_ *cobra.Command) error {
	if !report.ValidMode(globalOpts.output) {
		return errors.New("--output must be summary|json|path")
	}
	if globalOpts.logFormat != "text" && globalOpts.logFormat != "json" {
		return errors.New("--log-format must be text|json")
	}
	globalOpts.logger = logging.Init(globalOpts.logLevel, globalOpts.logFormat, os.Stderr)
	return nil
}

func requireArgs(count int, errMsg string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != count {
			return errors.New(errMsg)
		}
		return nil
	}
}

func maxArgs(max int, errMsg string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) > max {
			return errors.New(errMsg)
		}
		return nil
	}
}
