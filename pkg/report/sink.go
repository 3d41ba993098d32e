package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Sink receives a finished report.
type Sink interface {
	Emit(ctx context.Context, r *Report) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r *Report) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, r *Report) error {
	return f(ctx, r)
}

// Multi emits to every sink in order and joins their errors.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, r *Report) error {
		var errs []error
		for _, s := range sinks {
			if err := s.Emit(ctx, r); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// LogSink writes one info line per operation and one for the totals.
type LogSink struct {
	Logger *slog.Logger
}

// Emit implements Sink.
func (s LogSink) Emit(ctx context.Context, r *Report) error {
	for _, op := range r.Operations {
		s.Logger.InfoContext(ctx, "operation",
			"name", op.Operation,
			"calls", op.Count,
			"failures", op.Failures,
			"min", op.MinElapsed,
			"avg", op.MeanElapsed,
			"max", op.MaxElapsed,
			"units_avg", fmt.Sprintf("%.0f", op.MeanUnits),
			"units_total", op.TotalUnits,
		)
	}
	s.Logger.InfoContext(ctx, "benchmark complete",
		"calls", r.TotalCalls,
		"failures", r.TotalFailures,
		"total_units", r.TotalUnits,
	)
	return nil
}

// TextSink writes the report as a markdown table.
type TextSink struct {
	W io.Writer
}

// Emit implements Sink.
func (s TextSink) Emit(_ context.Context, r *Report) error {
	return Generate(s.W, r)
}

// JSONSink writes the report as indented JSON.
type JSONSink struct {
	W io.Writer
}

// Emit implements Sink.
func (s JSONSink) Emit(_ context.Context, r *Report) error {
	return GenerateJSON(s.W, r)
}

// Generate writes a markdown summary of r to w.
func Generate(w io.Writer, r *Report) error {
	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)

	if r.Module != "" {
		fmt.Fprintf(w, "Module: `%s`", r.Module)
		if r.ModuleHash != "" {
			fmt.Fprintf(w, " (%s)", shortHash(r.ModuleHash))
		}
		fmt.Fprintln(w)
	}
	if r.Engine != "" {
		fmt.Fprintf(w, "Engine: %s, scenario: %s, iterations: %d\n", r.Engine, r.Scenario, r.Iterations)
	}
	if r.Module != "" || r.Engine != "" {
		fmt.Fprintln(w)
	}

	if r.Empty() {
		fmt.Fprintln(w, "No invocations recorded.")
		return nil
	}

	fmt.Fprintln(w, "| Operation | Calls | Failed | Min | Avg | Max | Avg Units | Total Units | Memory | Storage |")
	fmt.Fprintln(w, "|-----------|-------|--------|-----|-----|-----|-----------|-------------|--------|---------|")

	for _, op := range r.Operations {
		fmt.Fprintf(w, "| %s | %d | %d | %s | %s | %s | %.0f | %d | %s | %s |\n",
			op.Operation,
			op.Count,
			op.Failures,
			formatDuration(op.MinElapsed),
			formatDuration(op.MeanElapsed),
			formatDuration(op.MaxElapsed),
			op.MeanUnits,
			op.TotalUnits,
			formatBytes(op.MaxMemoryBytes),
			formatBytes(op.MaxStorageBytes),
		)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total: %d calls, %d failed, %d units\n", r.TotalCalls, r.TotalFailures, r.TotalUnits)

	if r.Error != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Benchmark failed: %s\n", r.Error)
	}
	return nil
}

// GenerateJSON writes r as JSON to w.
func GenerateJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(r)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.1fµs", float64(d.Nanoseconds())/1e3)
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

func formatBytes(b uint64) string {
	if b == 0 {
		return "-"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(b)
	unit := 0

	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}

	formatted := strings.TrimSuffix(fmt.Sprintf("%.1f", size), ".0")

	return formatted + " " + units[unit]
}
