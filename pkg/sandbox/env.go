package sandbox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fortiblox/soroscope/internal/types"
	"github.com/fortiblox/soroscope/pkg/ledger"
)

// Env is the ledger state and meter behind a host. Engines route every host
// function through it.
type Env struct {
	meter    *Meter
	storage  ledger.Storage
	accounts *ledger.Registry
	contract types.Address
	logger   *slog.Logger

	// Per-invocation state
	invoker ledger.Account
	events  []Event
}

// NewEnv opens fresh storage and an empty account registry for a contract.
func NewEnv(cfg Config, contract types.Address) (*Env, error) {
	meter, err := NewMeter(cfg.ResourceLimit)
	if err != nil {
		return nil, err
	}
	storage, err := ledger.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open contract storage: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Env{
		meter:    meter,
		storage:  storage,
		accounts: ledger.NewRegistry(),
		contract: contract,
		logger:   logger.With("contract", contract.Short()),
	}, nil
}

// Meter returns the host's resource meter.
func (e *Env) Meter() *Meter {
	return e.meter
}

// CreateAccount registers a named account.
func (e *Env) CreateAccount(name string) (ledger.Account, error) {
	acc, err := e.accounts.Create(name)
	if err != nil {
		return ledger.Account{}, err
	}
	e.logger.Debug("account created", "name", name, "handle", acc.Handle, "address", acc.Address)
	return acc, nil
}

// Begin validates inv and starts metering it. It returns the entry point and
// the arguments in wire form. Validation failures are InvalidArguments and
// consume no units.
func (e *Env) Begin(inv Invocation) (Entrypoint, []int64, error) {
	ep, ok := LookupEntrypoint(inv.Operation)
	if !ok {
		return Entrypoint{}, nil, &InvocationError{
			Kind:      KindInvalidArguments,
			Operation: inv.Operation,
			Err:       fmt.Errorf("unknown operation %q", inv.Operation),
		}
	}
	invoker, err := e.accounts.ByName(inv.Invoker)
	if err != nil {
		return Entrypoint{}, nil, &InvocationError{
			Kind:      KindInvalidArguments,
			Operation: inv.Operation,
			Err:       fmt.Errorf("invoker: %w", err),
		}
	}
	args, err := resolveArgs(e.accounts, ep, inv.Args)
	if err != nil {
		return Entrypoint{}, nil, &InvocationError{
			Kind:      KindInvalidArguments,
			Operation: inv.Operation,
			Err:       err,
		}
	}

	e.invoker = invoker
	e.events = nil
	e.meter.Begin()
	if err := e.meter.Consume(CostInvokeBase); err != nil {
		return Entrypoint{}, nil, e.Fail(inv.Operation, err)
	}
	return ep, args, nil
}

// Finish builds the outcome of a successful invocation.
func (e *Env) Finish(op string, ret Value, memoryBytes uint64) (*Outcome, error) {
	size, err := e.storage.SizeBytes()
	if err != nil {
		return nil, e.Fail(op, err)
	}
	e.logger.Debug("invocation finished", "operation", op, "units", e.meter.Used(), "return", ret)
	return &Outcome{
		Operation:    op,
		Units:        e.meter.Used(),
		Return:       ret,
		MemoryBytes:  memoryBytes,
		StorageBytes: size,
		Events:       e.events,
	}, nil
}

// Fail classifies an execution error as ResourceExhausted or Trap and
// attaches the units consumed so far.
func (e *Env) Fail(op string, err error) *InvocationError {
	var ie *InvocationError
	if errors.As(err, &ie) {
		return ie
	}
	kind := KindTrap
	if e.meter.Exhausted() || errors.Is(err, ErrBudgetExceeded) || errors.Is(err, ErrTimeLimit) {
		kind = KindResourceExhausted
	}
	e.logger.Debug("invocation failed", "operation", op, "kind", kind, "units", e.meter.Used(), "err", err)
	return &InvocationError{
		Kind:      kind,
		Operation: op,
		Units:     e.meter.Used(),
		Err:       err,
	}
}

// Close closes contract storage.
func (e *Env) Close() error {
	return e.storage.Close()
}

// Host functions. Every call is charged before it touches state.

// Guest charges for one guest function entry.
func (e *Env) Guest() error {
	return e.meter.Consume(CostGuestCall)
}

// StorageGet returns the value under key, or 0 if it is unset.
func (e *Env) StorageGet(key int64) (int64, error) {
	k := e.storageKey(key)
	if err := e.meter.Consume(CostHostCall + CostStorageReadBase + CostStorageReadPerByte*uint64(len(k))); err != nil {
		return 0, err
	}
	v, err := e.storage.Get(k)
	if errors.Is(err, ledger.ErrEntryNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := e.meter.Consume(CostStorageReadPerByte * uint64(len(v))); err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("storage value under key %d has %d bytes", key, len(v))
	}
	return int64(binary.LittleEndian.Uint64(v)), nil
}

// StorageHas reports whether key is set.
func (e *Env) StorageHas(key int64) (bool, error) {
	k := e.storageKey(key)
	if err := e.meter.Consume(CostHostCall + CostStorageReadBase + CostStorageReadPerByte*uint64(len(k))); err != nil {
		return false, err
	}
	return e.storage.Has(k)
}

// StoragePut stores value under key.
func (e *Env) StoragePut(key, value int64) error {
	k := e.storageKey(key)
	v := binary.LittleEndian.AppendUint64(nil, uint64(value))
	if err := e.meter.Consume(CostHostCall + CostStorageWriteBase + CostStorageWritePerByte*uint64(len(k)+len(v))); err != nil {
		return err
	}
	return e.storage.Put(k, v)
}

// StorageDel removes key.
func (e *Env) StorageDel(key int64) error {
	k := e.storageKey(key)
	if err := e.meter.Consume(CostHostCall + CostStorageWriteBase + CostStorageWritePerByte*uint64(len(k))); err != nil {
		return err
	}
	return e.storage.Delete(k)
}

// RequireAuth fails with ErrUnauthorized unless handle is the invoker.
func (e *Env) RequireAuth(handle int64) error {
	if err := e.meter.Consume(CostHostCall + CostRequireAuth); err != nil {
		return err
	}
	if handle <= 0 || handle > int64(^uint32(0)) {
		return fmt.Errorf("%w: invalid account handle %d", ErrUnauthorized, handle)
	}
	acc, err := e.accounts.ByHandle(uint32(handle))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if acc.Handle != e.invoker.Handle {
		return fmt.Errorf("%w: %s required, invoked by %s", ErrUnauthorized, acc.Name, e.invoker.Name)
	}
	return nil
}

// EmitEvent records a contract event.
func (e *Env) EmitEvent(topic, value int64) error {
	if err := e.meter.Consume(CostHostCall + CostEventBase); err != nil {
		return err
	}
	e.events = append(e.events, Event{Topic: topic, Value: value})
	return nil
}

func (e *Env) storageKey(key int64) []byte {
	return ledger.ScopedKey(e.contract, binary.BigEndian.AppendUint64(nil, uint64(key)))
}
