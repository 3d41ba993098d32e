package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fortiblox/soroscope/pkg/metrics"
	"github.com/fortiblox/soroscope/pkg/sandbox"
)

// ErrUnexpectedResult is the cause when a step returns something other than
// its expected value.
var ErrUnexpectedResult = errors.New("unexpected result")

// BenchmarkError is returned when a step fails. It ends the run.
type BenchmarkError struct {
	// Step is the zero-based index of the failed step.
	Step int

	Operation string

	// Cause is the invocation error or ErrUnexpectedResult.
	Cause error

	// Completed is the number of steps that succeeded before the failure.
	Completed int
}

func (e *BenchmarkError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Operation, e.Cause)
}

func (e *BenchmarkError) Unwrap() error {
	return e.Cause
}

// Runner drives a scenario against one host.
type Runner struct {
	host      sandbox.Host
	collector *metrics.Collector
	logger    *slog.Logger
}

// NewRunner creates a runner. Every invocation is measured by collector.
func NewRunner(host sandbox.Host, collector *metrics.Collector, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		host:      host,
		collector: collector,
		logger:    logger,
	}
}

// Run creates the scenario accounts and runs its steps in order.
func (r *Runner) Run(ctx context.Context, sc Scenario) ([]*sandbox.Outcome, error) {
	return r.RunIteration(ctx, sc, 0)
}

// RunIteration is Run with records tagged as iteration run.
//
// The first failing step stops the run. The outcomes of the steps completed
// before it are returned along with a *BenchmarkError.
func (r *Runner) RunIteration(ctx context.Context, sc Scenario, run int) ([]*sandbox.Outcome, error) {
	for _, name := range sc.Accounts {
		if _, err := r.host.CreateAccount(name); err != nil {
			return nil, fmt.Errorf("create account %s: %w", name, err)
		}
	}

	outcomes := make([]*sandbox.Outcome, 0, len(sc.Steps))
	for i, step := range sc.Steps {
		fail := func(cause error) ([]*sandbox.Outcome, error) {
			return outcomes, &BenchmarkError{
				Step:      i,
				Operation: step.Operation,
				Cause:     cause,
				Completed: len(outcomes),
			}
		}

		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		out, err := r.collector.Measure(run, i, step.Operation, func() (*sandbox.Outcome, error) {
			return r.host.Invoke(ctx, step.Invocation())
		})
		if err != nil {
			return fail(err)
		}
		if step.Expect != nil && out.Return != *step.Expect {
			return fail(fmt.Errorf("%w: got %s, want %s", ErrUnexpectedResult, out.Return, *step.Expect))
		}

		r.logger.Debug("step complete",
			"run", run,
			"step", i,
			"operation", step.Operation,
			"units", out.Units,
			"return", out.Return,
		)
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}
