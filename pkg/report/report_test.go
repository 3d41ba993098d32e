package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fortiblox/soroscope/pkg/metrics"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func rec(op string, d time.Duration, units uint64, err error) metrics.Record {
	return metrics.Record{Operation: op, Start: t0, End: t0.Add(d), Units: units, Err: err}
}

func TestSummarizeEmpty(t *testing.T) {
	r := Summarize(nil)
	require.NotNil(t, r)
	require.True(t, r.Empty())
	require.Empty(t, r.Operations)
	require.Zero(t, r.TotalUnits)
	require.Zero(t, r.TotalCalls)
}

func TestSummarizeGroups(t *testing.T) {
	records := []metrics.Record{
		rec("initialize", 5*time.Millisecond, 100, nil),
		rec("mint", 2*time.Millisecond, 200, nil),
		rec("mint", 4*time.Millisecond, 400, nil),
		rec("mint", 6*time.Millisecond, 300, errors.New("trap")),
		rec("balance", time.Millisecond, 50, nil),
	}

	r := Summarize(records)

	var names []string
	for _, op := range r.Operations {
		names = append(names, op.Operation)
	}
	require.Equal(t, []string{"initialize", "mint", "balance"}, names)

	mint, ok := r.Operation("mint")
	require.True(t, ok)
	require.Equal(t, 3, mint.Count)
	require.Equal(t, 1, mint.Failures)
	require.Equal(t, 2*time.Millisecond, mint.MinElapsed)
	require.Equal(t, 4*time.Millisecond, mint.MeanElapsed)
	require.Equal(t, 6*time.Millisecond, mint.MaxElapsed)
	require.Equal(t, uint64(200), mint.MinUnits)
	require.Equal(t, uint64(400), mint.MaxUnits)
	require.InDelta(t, 300.0, mint.MeanUnits, 1e-9)
	require.Equal(t, uint64(900), mint.TotalUnits)

	require.Equal(t, 5, r.TotalCalls)
	require.Equal(t, 1, r.TotalFailures)
	require.Equal(t, uint64(1050), r.TotalUnits)

	_, ok = r.Operation("transfer")
	require.False(t, ok)
}

func TestSummarizeMinMaxMean(t *testing.T) {
	records := []metrics.Record{
		rec("op", 3*time.Millisecond, 30, nil),
		rec("op", 1*time.Millisecond, 10, nil),
		rec("op", 8*time.Millisecond, 80, nil),
	}
	s := Summarize(records).Operations[0]

	require.LessOrEqual(t, s.MinElapsed, s.MeanElapsed)
	require.LessOrEqual(t, s.MeanElapsed, s.MaxElapsed)
	require.LessOrEqual(t, float64(s.MinUnits), s.MeanUnits)
	require.LessOrEqual(t, s.MeanUnits, float64(s.MaxUnits))
	require.Equal(t, 4*time.Millisecond, s.MeanElapsed)
}

func TestGenerate(t *testing.T) {
	r := Summarize([]metrics.Record{
		rec("mint", 2*time.Millisecond, 2000, nil),
		rec("transfer", 1500*time.Microsecond, 3000, nil),
	})
	r.Module = "token.wasm"
	r.ModuleHash = "abcdef0123456789"
	r.Engine = "wasm"
	r.Scenario = "default"
	r.Iterations = 1

	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, r))
	out := buf.String()

	require.Contains(t, out, "## Benchmark Results")
	require.Contains(t, out, "`token.wasm` (abcdef012345)")
	require.Contains(t, out, "| mint | 1 | 0 | 2.00ms |")
	require.Contains(t, out, "| transfer |")
	require.Contains(t, out, "Total: 2 calls, 0 failed, 5000 units")
}

func TestGenerateEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, Summarize(nil)))
	require.Contains(t, buf.String(), "No invocations recorded.")
}

func TestJSONSink(t *testing.T) {
	r := Summarize([]metrics.Record{rec("balance", time.Millisecond, 10, nil)})

	var buf bytes.Buffer
	require.NoError(t, JSONSink{W: &buf}.Emit(context.Background(), r))

	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Operations, 1)
	require.Equal(t, "balance", decoded.Operations[0].Operation)
	require.Equal(t, uint64(10), decoded.TotalUnits)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := Summarize([]metrics.Record{
		rec("mint", time.Millisecond, 10, nil),
		rec("balance", time.Millisecond, 5, nil),
	})
	require.NoError(t, LogSink{Logger: logger}.Emit(context.Background(), r))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "name=mint")
	require.Contains(t, lines[2], "total_units=15")
}

func TestMulti(t *testing.T) {
	var calls []string
	ok := SinkFunc(func(context.Context, *Report) error { calls = append(calls, "ok"); return nil })
	bad := SinkFunc(func(context.Context, *Report) error { calls = append(calls, "bad"); return errors.New("disk full") })

	err := Multi(bad, ok).Emit(context.Background(), Summarize(nil))
	require.ErrorContains(t, err, "disk full")
	require.Equal(t, []string{"bad", "ok"}, calls)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "-"},
		{10, "10 B"},
		{512, "512 B"},
		{1024, "1 KB"},
		{65536, "64 KB"},
		{1536, "1.5 KB"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, formatBytes(tt.in))
	}
}
