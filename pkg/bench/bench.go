// Package bench runs benchmark scenarios against contract modules.
//
// A benchmark loads a module once, then for every iteration constructs a
// fresh host, runs the scenario through a Runner and records each invocation.
// Warm-up iterations run first and are not recorded. The records are
// summarized into a report and handed to a sink.
package bench

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fortiblox/soroscope/pkg/loader"
	"github.com/fortiblox/soroscope/pkg/metrics"
	"github.com/fortiblox/soroscope/pkg/report"
	"github.com/fortiblox/soroscope/pkg/sandbox"
	"github.com/fortiblox/soroscope/pkg/sandbox/native"
	"github.com/fortiblox/soroscope/pkg/sandbox/wasm"
)

// Engine names.
const (
	EngineAuto   = ""
	EngineWasm   = "wasm"
	EngineNative = "native"
)

// Config configures a benchmark.
type Config struct {
	// Paths are the candidate module paths, tried in order.
	Paths []string

	// Engine is EngineWasm, EngineNative or EngineAuto to pick from the
	// module's magic bytes.
	Engine string

	// Compiler runs wasm on the wazero compiler instead of the interpreter.
	Compiler bool

	// Host configures each host context.
	Host sandbox.Config

	Scenario Scenario

	// Iterations is the number of recorded runs, each on a fresh host.
	Iterations int

	// Warmup is the number of unrecorded runs before the first iteration.
	Warmup int

	Logger *slog.Logger

	// Clock overrides the wall clock for measurements.
	Clock metrics.Clock
}

// DefaultConfig returns a single iteration of the default scenario against
// the default module paths.
func DefaultConfig() Config {
	return Config{
		Paths:      loader.DefaultPaths,
		Engine:     EngineAuto,
		Host:       sandbox.DefaultConfig(),
		Scenario:   DefaultScenario(),
		Iterations: 1,
		Warmup:     0,
	}
}

// NewEngine returns the engine for name. format picks the engine when name is
// EngineAuto.
func NewEngine(name, format string, compiler bool) (sandbox.Engine, error) {
	if name == EngineAuto {
		name = EngineWasm
		if format == loader.FormatNative {
			name = EngineNative
		}
	}
	switch name {
	case EngineWasm:
		return wasm.New(wasm.Config{Compiler: compiler}), nil
	case EngineNative:
		return native.New(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}

// Run loads the module, runs the scenario and emits the report to sink.
//
// On failure the report of the records collected so far is returned with the
// error and nothing is emitted.
func Run(ctx context.Context, cfg Config, sink report.Sink) (*report.Report, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	if cfg.Iterations < 1 {
		cfg.Iterations = 1
	}
	if cfg.Host.Logger == nil {
		cfg.Host.Logger = logger
	}
	if err := cfg.Scenario.Validate(); err != nil {
		return nil, err
	}

	mod, err := loader.Load(cfg.Paths...)
	if err != nil {
		return nil, err
	}
	engine, err := NewEngine(cfg.Engine, mod.Format(), cfg.Compiler)
	if err != nil {
		return nil, err
	}

	logger.Info("benchmark starting",
		"module", mod.Path,
		"size", mod.Size(),
		"hash", mod.Hash,
		"engine", engine.Name(),
		"scenario", cfg.Scenario.Name,
		"iterations", cfg.Iterations,
		"warmup", cfg.Warmup,
	)

	for i := 0; i < cfg.Warmup; i++ {
		if _, err := runOnce(ctx, engine, mod.Code, cfg, metrics.NewCollectorWithClock(clock), logger, i); err != nil {
			return nil, fmt.Errorf("warmup %d: %w", i, err)
		}
	}

	collector := metrics.NewCollectorWithClock(clock)
	var (
		runErr    error
		attempted int
	)
	for attempted < cfg.Iterations {
		_, runErr = runOnce(ctx, engine, mod.Code, cfg, collector, logger, attempted)
		attempted++
		if runErr != nil {
			break
		}
	}

	rep := report.Summarize(collector.Records())
	rep.Module = mod.Path
	rep.ModuleHash = mod.Hash.String()
	rep.Engine = engine.Name()
	rep.Scenario = cfg.Scenario.Name
	// Iterations counts the runs started, including a failed last one.
	rep.Iterations = attempted
	rep.Created = clock()

	if runErr != nil {
		rep.Error = runErr.Error()
		return rep, runErr
	}

	if sink != nil {
		if err := sink.Emit(ctx, rep); err != nil {
			return rep, fmt.Errorf("emit report: %w", err)
		}
	}
	return rep, nil
}

// runOnce runs the scenario on a fresh host.
func runOnce(ctx context.Context, engine sandbox.Engine, code []byte, cfg Config, collector *metrics.Collector, logger *slog.Logger, run int) ([]*sandbox.Outcome, error) {
	host, err := engine.Construct(ctx, code, cfg.Host)
	if err != nil {
		return nil, err
	}
	defer host.Close(ctx)

	return NewRunner(host, collector, logger).RunIteration(ctx, cfg.Scenario, run)
}
