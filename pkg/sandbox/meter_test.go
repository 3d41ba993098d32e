package sandbox

import (
	"errors"
	"testing"
)

func TestMeterConsume(t *testing.T) {
	m, err := NewMeter(1000)
	if err != nil {
		t.Fatalf("NewMeter failed: %v", err)
	}

	m.Begin()
	if err := m.Consume(400); err != nil {
		t.Fatalf("Consume(400) failed: %v", err)
	}
	if m.Used() != 400 || m.Remaining() != 600 {
		t.Errorf("Used = %d, Remaining = %d, want 400, 600", m.Used(), m.Remaining())
	}

	// Exactly at the limit is allowed
	if err := m.Consume(600); err != nil {
		t.Errorf("Consume up to limit failed: %v", err)
	}
	if m.Exhausted() {
		t.Error("meter should not be exhausted at exactly the limit")
	}

	if err := m.Consume(1); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("Consume past limit: got %v, want ErrBudgetExceeded", err)
	}
	if !m.Exhausted() {
		t.Error("meter should be exhausted")
	}
	if m.Used() != 1000 {
		t.Errorf("Used after exhaustion = %d, want 1000", m.Used())
	}
}

func TestMeterTotalAcrossInvocations(t *testing.T) {
	m, _ := NewMeter(100)

	m.Begin()
	m.Consume(60)
	m.Begin()
	if m.Used() != 0 {
		t.Errorf("Used after Begin = %d, want 0", m.Used())
	}
	m.Consume(30)
	m.Consume(500) // exhausts, charged up to the limit

	if m.Total() != 160 {
		t.Errorf("Total = %d, want 160", m.Total())
	}

	m.Begin()
	if m.Exhausted() {
		t.Error("Begin should clear exhaustion")
	}
}

func TestMeterInvalidLimit(t *testing.T) {
	if _, err := NewMeter(0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("NewMeter(0): got %v, want ErrInvalidLimit", err)
	}
	if _, err := NewMeter(UnitsMaxLimit + 1); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("NewMeter(max+1): got %v, want ErrInvalidLimit", err)
	}
}

func TestMeterDisabled(t *testing.T) {
	m := NewMeterDisabled()
	m.Begin()
	if err := m.Consume(UnitsMaxLimit * 2); err != nil {
		t.Errorf("disabled meter should not fail: %v", err)
	}
}
