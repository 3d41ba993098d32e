package sandbox

import (
	"errors"
	"sync/atomic"
)

// Resource unit cost constants.
// Units are an internal measure of work, not a fee model.
const (
	// Limits
	UnitsDefaultLimit = uint64(1_000_000)  // Default per-invocation ceiling
	UnitsMaxLimit     = uint64(50_000_000) // Largest accepted ceiling

	// Invocation
	CostInvokeBase = uint64(1_000) // Charged once per invocation
	CostGuestCall  = uint64(20)    // Each guest function entered
	CostHostCall   = uint64(100)   // Each host function called

	// Storage
	CostStorageReadBase     = uint64(50)
	CostStorageReadPerByte  = uint64(1)
	CostStorageWriteBase    = uint64(200)
	CostStorageWritePerByte = uint64(4)

	// Authorization
	CostRequireAuth = uint64(720) // Same weight as one signature check

	// Events
	CostEventBase = uint64(150)
)

var (
	// ErrBudgetExceeded is returned by Meter.Consume when the limit is hit.
	ErrBudgetExceeded = errors.New("resource budget exceeded")

	// ErrTimeLimit is returned when an invocation runs past Config.TimeLimit.
	ErrTimeLimit = errors.New("invocation time limit exceeded")

	// ErrInvalidLimit is returned for a zero or oversized limit.
	ErrInvalidLimit = errors.New("invalid resource limit")
)

// Meter tracks resource units for one host context.
//
// The per-invocation counter is reset by Begin; the cumulative total keeps
// growing across invocations for the lifetime of the host.
type Meter struct {
	limit     uint64
	used      uint64
	total     uint64
	exhausted atomic.Bool
	disabled  bool
}

// NewMeter creates a meter with the given per-invocation limit.
func NewMeter(limit uint64) (*Meter, error) {
	if limit == 0 || limit > UnitsMaxLimit {
		return nil, ErrInvalidLimit
	}
	return &Meter{limit: limit}, nil
}

// NewMeterDisabled creates a meter that counts but never fails (for testing).
func NewMeterDisabled() *Meter {
	return &Meter{limit: UnitsMaxLimit, disabled: true}
}

// Begin starts a new invocation.
func (m *Meter) Begin() {
	atomic.StoreUint64(&m.used, 0)
	m.exhausted.Store(false)
}

// Consume charges cost units to the current invocation.
// Returns ErrBudgetExceeded if the limit would be passed; the invocation is
// then charged up to the limit.
func (m *Meter) Consume(cost uint64) error {
	for {
		used := atomic.LoadUint64(&m.used)
		next := used + cost
		if !m.disabled && (next > m.limit || next < used) {
			if atomic.CompareAndSwapUint64(&m.used, used, m.limit) {
				atomic.AddUint64(&m.total, m.limit-used)
				m.exhausted.Store(true)
				return ErrBudgetExceeded
			}
			continue
		}
		if atomic.CompareAndSwapUint64(&m.used, used, next) {
			atomic.AddUint64(&m.total, cost)
			return nil
		}
	}
}

// Used returns the units consumed by the current invocation.
func (m *Meter) Used() uint64 {
	return atomic.LoadUint64(&m.used)
}

// Remaining returns the units left for the current invocation.
func (m *Meter) Remaining() uint64 {
	used := atomic.LoadUint64(&m.used)
	if used >= m.limit {
		return 0
	}
	return m.limit - used
}

// Total returns the units consumed across all invocations.
func (m *Meter) Total() uint64 {
	return atomic.LoadUint64(&m.total)
}

// Limit returns the per-invocation limit.
func (m *Meter) Limit() uint64 {
	return m.limit
}

// Exhausted reports whether the current invocation hit the limit.
func (m *Meter) Exhausted() bool {
	return m.exhausted.Load()
}
