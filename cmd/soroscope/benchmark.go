package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fortiblox/soroscope/pkg/bench"
	"github.com/fortiblox/soroscope/pkg/ledger"
	"github.com/fortiblox/soroscope/pkg/report"
	"github.com/fortiblox/soroscope/pkg/sandbox"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatLog  = "log"
)

type benchmarkConfig struct {
	paths         []string
	scenarioPath  string
	iterations    int
	warmup        int
	engine        string
	compiler      bool
	resourceLimit uint64
	timeLimit     time.Duration
	memoryPages   uint32
	storage       string
	storageDir    string
	format        string
	save          bool
}

func newBenchmarkCmd(a *app) *cobra.Command {
	var cfg benchmarkConfig

	cmd := &cobra.Command{
		Use:   "benchmark [module...]",
		Short: "Run a scenario against a contract module and report resource use",
		Long: `Load the first module found among the given paths (default: the
cargo target paths of soroban_token_contract.wasm), run the scenario on a
fresh sandbox for every iteration and print the report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				cfg.paths = args
			}
			return runBenchmark(cmd.Context(), a, cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.scenarioPath, "scenario", "",
		"HCL scenario file (default: built-in token scenario)")
	flags.IntVar(&cfg.iterations, "iterations", 1,
		"Number of recorded iterations")
	flags.IntVar(&cfg.warmup, "warmup", 0,
		"Number of unrecorded warm-up iterations")
	flags.StringVar(&cfg.engine, "engine", bench.EngineAuto,
		"Host engine: wasm or native (default: from module format)")
	flags.BoolVar(&cfg.compiler, "compiler", false,
		"Run wasm on the compiler instead of the interpreter")
	flags.Uint64Var(&cfg.resourceLimit, "limit", sandbox.UnitsDefaultLimit,
		"Metered units allowed per invocation")
	flags.DurationVar(&cfg.timeLimit, "time-limit", sandbox.DefaultTimeLimit,
		"Wall-clock bound per invocation (0 disables)")
	flags.Uint32Var(&cfg.memoryPages, "memory-pages", sandbox.DefaultConfig().MaxMemoryPages,
		"Maximum linear memory pages per module")
	flags.StringVar(&cfg.storage, "storage", ledger.BackendMemory,
		"Contract storage backend: memory or badger")
	flags.StringVar(&cfg.storageDir, "storage-dir", "",
		"Directory for badger storage (default: in memory)")
	flags.StringVar(&cfg.format, "format", formatText,
		"Report format: text, json or log")
	flags.BoolVar(&cfg.save, "save", true,
		"Store the report in the run history")

	return cmd
}

func runBenchmark(ctx context.Context, a *app, cfg benchmarkConfig, out io.Writer) error {
	bcfg, err := cfg.benchConfig(a)
	if err != nil {
		return err
	}

	var sink report.Sink
	switch cfg.format {
	case formatText:
		sink = report.TextSink{W: out}
	case formatJSON:
		sink = report.JSONSink{W: out}
	case formatLog:
		sink = report.LogSink{Logger: a.logger}
	default:
		return fmt.Errorf("unknown format %q", cfg.format)
	}

	rep, err := bench.Run(ctx, bcfg, nil)
	if err != nil {
		logBenchmarkError(a, bcfg.Paths, err)
		return err
	}

	// A history failure doesn't fail the benchmark.
	if cfg.save && a.historyPath != "" {
		if _, err := a.history().Put(rep); err != nil {
			a.logger.Warn("could not save report", "history", a.historyPath, "err", err)
		} else {
			a.logger.Info("report saved", "id", rep.ID, "history", a.historyPath)
		}
	}

	return sink.Emit(ctx, rep)
}

func (cfg benchmarkConfig) benchConfig(a *app) (bench.Config, error) {
	bcfg := bench.DefaultConfig()
	if len(cfg.paths) > 0 {
		bcfg.Paths = cfg.paths
	}
	if cfg.scenarioPath != "" {
		sc, err := bench.LoadScenarioFile(cfg.scenarioPath)
		if err != nil {
			return bcfg, err
		}
		bcfg.Scenario = sc
	}
	if cfg.iterations < 1 {
		return bcfg, fmt.Errorf("iterations must be at least 1")
	}
	if cfg.warmup < 0 {
		return bcfg, fmt.Errorf("warmup must not be negative")
	}
	bcfg.Iterations = cfg.iterations
	bcfg.Warmup = cfg.warmup
	bcfg.Engine = cfg.engine
	bcfg.Compiler = cfg.compiler
	bcfg.Logger = a.logger

	bcfg.Host.ResourceLimit = cfg.resourceLimit
	bcfg.Host.TimeLimit = cfg.timeLimit
	bcfg.Host.MaxMemoryPages = cfg.memoryPages
	bcfg.Host.Storage.Backend = cfg.storage
	if cfg.storageDir != "" {
		bcfg.Host.Storage.Badger.InMemory = false
		bcfg.Host.Storage.Badger.Path = cfg.storageDir
	}
	return bcfg, nil
}

func logBenchmarkError(a *app, paths []string, err error) {
	if errors.Is(err, sandbox.ErrNotFound) && len(paths) > 0 {
		a.logger.Error(fmt.Sprintf("Could not find %s. Build the contract first.", filepath.Base(paths[0])))
		return
	}
	a.logger.Error(fmt.Sprintf("Benchmark failed: %v", err))
}
