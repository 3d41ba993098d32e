// Package main provides the CLI entry point for soroscope, a resource
// profiler for smart contract modules.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fortiblox/soroscope/pkg/history"
)

// Version information
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

// Environment variables read by the CLI.
const (
	envLogLevel = "SOROSCOPE_LOG_LEVEL"
	envHistory  = "SOROSCOPE_HISTORY"
	envPort     = "SOROSCOPE_PORT"
	envPortAlt  = "PORT"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds state shared by all subcommands.
type app struct {
	logLevel       string
	historyPath    string
	historyTimeout time.Duration
	logger         *slog.Logger
}

// history returns a handle that locks the history file only per operation.
func (a *app) history() *history.Shared {
	cfg := history.DefaultConfig(a.historyPath)
	cfg.Timeout = a.historyTimeout
	return history.NewShared(cfg)
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "soroscope",
		Short: "Resource profiler for smart contract modules",
		Long: `SoroScope loads a compiled contract module, runs a scenario of
invocations against it in a metered sandbox and reports per-operation
time, metered units, memory and storage use.`,
		Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), a.logLevel)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.logLevel, "log-level", envOr("info", envLogLevel),
		"Log level: debug, info, warn, error (env "+envLogLevel+")")
	flags.StringVar(&a.historyPath, "history", envOr(defaultHistoryPath(), envHistory),
		"Path of the run history database (env "+envHistory+")")
	flags.DurationVar(&a.historyTimeout, "history-timeout", history.DefaultConfig("").Timeout,
		"How long to wait for the history file lock")

	root.AddCommand(
		newBenchmarkCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
		newContractCmd(a),
	)
	return root
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func defaultHistoryPath() string {
	return filepath.Join(".soroscope", "history.db")
}

// envOr returns the first non-empty environment variable of keys, or def.
func envOr(def string, keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}
