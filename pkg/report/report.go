// Package report aggregates invocation records into a benchmark report and
// writes it to a sink.
package report

import (
	"time"

	"github.com/fortiblox/soroscope/pkg/metrics"
)

// OperationStats summarizes all calls of one operation.
type OperationStats struct {
	Operation string `json:"operation"`
	Count     int    `json:"count"`
	Failures  int    `json:"failures"`

	MinElapsed  time.Duration `json:"min_elapsed_ns"`
	MeanElapsed time.Duration `json:"mean_elapsed_ns"`
	MaxElapsed  time.Duration `json:"max_elapsed_ns"`

	MinUnits   uint64  `json:"min_units"`
	MeanUnits  float64 `json:"mean_units"`
	MaxUnits   uint64  `json:"max_units"`
	TotalUnits uint64  `json:"total_units"`

	MaxMemoryBytes  uint64 `json:"max_memory_bytes"`
	MaxStorageBytes uint64 `json:"max_storage_bytes"`
}

// Report is the result of one benchmark.
type Report struct {
	// ID is assigned when the report is stored in history.
	ID uint64 `json:"id,omitempty"`

	Module     string    `json:"module,omitempty"`
	ModuleHash string    `json:"module_hash,omitempty"`
	Engine     string    `json:"engine,omitempty"`
	Scenario   string    `json:"scenario,omitempty"`
	Iterations int       `json:"iterations,omitempty"`
	Created    time.Time `json:"created"`

	// Operations are in order of first appearance.
	Operations []OperationStats `json:"operations"`

	TotalCalls    int    `json:"total_calls"`
	TotalFailures int    `json:"total_failures"`
	TotalUnits    uint64 `json:"total_units"`

	// Error is the failure that ended the benchmark, if any.
	Error string `json:"error,omitempty"`
}

// Empty reports whether the report holds no calls.
func (r *Report) Empty() bool {
	return r.TotalCalls == 0
}

// Operation returns the stats for op.
func (r *Report) Operation(op string) (OperationStats, bool) {
	for _, s := range r.Operations {
		if s.Operation == op {
			return s, true
		}
	}
	return OperationStats{}, false
}

// Summarize groups records by operation. Failed calls count toward every
// statistic and toward Failures. An empty input gives an empty report.
func Summarize(records []metrics.Record) *Report {
	r := &Report{Operations: []OperationStats{}}

	index := make(map[string]int)
	var elapsed []time.Duration // per group total

	for _, rec := range records {
		i, ok := index[rec.Operation]
		if !ok {
			i = len(r.Operations)
			index[rec.Operation] = i
			r.Operations = append(r.Operations, OperationStats{
				Operation:  rec.Operation,
				MinElapsed: rec.Elapsed(),
				MinUnits:   rec.Units,
			})
			elapsed = append(elapsed, 0)
		}
		s := &r.Operations[i]

		d := rec.Elapsed()
		s.Count++
		if rec.Failed() {
			s.Failures++
		}
		s.MinElapsed = min(s.MinElapsed, d)
		s.MaxElapsed = max(s.MaxElapsed, d)
		s.MinUnits = min(s.MinUnits, rec.Units)
		s.MaxUnits = max(s.MaxUnits, rec.Units)
		s.TotalUnits += rec.Units
		s.MaxMemoryBytes = max(s.MaxMemoryBytes, rec.MemoryBytes)
		s.MaxStorageBytes = max(s.MaxStorageBytes, rec.StorageBytes)
		elapsed[i] += d
	}

	for i := range r.Operations {
		s := &r.Operations[i]
		s.MeanElapsed = elapsed[i] / time.Duration(s.Count)
		s.MeanUnits = float64(s.TotalUnits) / float64(s.Count)

		r.TotalCalls += s.Count
		r.TotalFailures += s.Failures
		r.TotalUnits += s.TotalUnits
	}
	return r
}
