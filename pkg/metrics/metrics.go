// Package metrics records one measurement per contract invocation.
package metrics

import (
	"sync"
	"time"

	"github.com/fortiblox/soroscope/pkg/sandbox"
)

// Record is the measurement of one invocation. Records are never modified
// after they are appended.
type Record struct {
	// Run is the iteration the call belongs to.
	Run int

	// Step is the zero-based scenario step index.
	Step int

	Operation string

	Start time.Time
	End   time.Time

	// Units is the resource consumption; for failed calls, the units
	// consumed before the failure.
	Units uint64

	MemoryBytes  uint64
	StorageBytes uint64

	// Err is the invocation error, nil on success.
	Err error
}

// Elapsed returns End - Start.
func (r Record) Elapsed() time.Duration {
	return r.End.Sub(r.Start)
}

// Failed reports whether the call failed.
func (r Record) Failed() bool {
	return r.Err != nil
}

// Clock returns the current time.
type Clock func() time.Time

// Collector appends a Record for every measured call, in call order.
type Collector struct {
	mu      sync.Mutex
	clock   Clock
	records []Record
}

// NewCollector creates a collector using the wall clock.
func NewCollector() *Collector {
	return NewCollectorWithClock(time.Now)
}

// NewCollectorWithClock creates a collector with an injected clock.
func NewCollectorWithClock(clock Clock) *Collector {
	return &Collector{clock: clock}
}

// Measure calls fn and records its outcome. Start and end are taken around
// fn whether or not it fails; fn's results are passed through unchanged.
func (c *Collector) Measure(run, step int, op string, fn func() (*sandbox.Outcome, error)) (*sandbox.Outcome, error) {
	start := c.clock()
	out, err := fn()
	end := c.clock()
	if end.Before(start) {
		end = start
	}

	rec := Record{
		Run:       run,
		Step:      step,
		Operation: op,
		Start:     start,
		End:       end,
		Err:       err,
	}
	switch {
	case err != nil:
		rec.Units = sandbox.UnitsOf(err)
	case out != nil:
		rec.Units = out.Units
		rec.MemoryBytes = out.MemoryBytes
		rec.StorageBytes = out.StorageBytes
	}

	c.mu.Lock()
	c.records = append(c.records, rec)
	c.mu.Unlock()

	return out, err
}

// Records returns a copy of the records in call order.
func (c *Collector) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Len returns the number of records.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Reset drops all records.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.records = nil
	c.mu.Unlock()
}
