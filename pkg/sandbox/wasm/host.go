package wasm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	"github.com/fortiblox/soroscope/pkg/ledger"
	"github.com/fortiblox/soroscope/pkg/sandbox"
)

// host is one instantiated contract.
type host struct {
	rt    wazero.Runtime
	mod   api.Module
	env   *sandbox.Env
	funcs map[string]api.Function

	// timeLimit bounds each call; the runtime closes the module when the
	// call's context expires.
	timeLimit time.Duration
}

// newListener charges every guest function entry to the meter.
func (h *host) newListener(def api.FunctionDefinition) experimental.FunctionListener {
	if _, _, isImport := def.Import(); isImport {
		return nil
	}
	return experimental.FunctionListenerFunc(func(context.Context, api.Module, api.FunctionDefinition, []uint64, experimental.StackIterator) {
		if err := h.env.Guest(); err != nil {
			panic(err)
		}
	})
}

func (h *host) instantiateHostModule(ctx context.Context) error {
	_, err := h.rt.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().WithFunc(h.storageGet).Export("storage_get").
		NewFunctionBuilder().WithFunc(h.storageHas).Export("storage_has").
		NewFunctionBuilder().WithFunc(h.storagePut).Export("storage_put").
		NewFunctionBuilder().WithFunc(h.storageDel).Export("storage_del").
		NewFunctionBuilder().WithFunc(h.requireAuth).Export("require_auth").
		NewFunctionBuilder().WithFunc(h.emitEvent).Export("emit_event").
		Instantiate(ctx)
	return err
}

// Host functions. Errors abort the guest by panicking; wazero recovers the
// panic and returns it from Call.

func (h *host) storageGet(_ context.Context, key int64) int64 {
	v, err := h.env.StorageGet(key)
	if err != nil {
		panic(err)
	}
	return v
}

func (h *host) storageHas(_ context.Context, key int64) int32 {
	ok, err := h.env.StorageHas(key)
	if err != nil {
		panic(err)
	}
	if ok {
		return 1
	}
	return 0
}

func (h *host) storagePut(_ context.Context, key, value int64) {
	if err := h.env.StoragePut(key, value); err != nil {
		panic(err)
	}
}

func (h *host) storageDel(_ context.Context, key int64) {
	if err := h.env.StorageDel(key); err != nil {
		panic(err)
	}
}

func (h *host) requireAuth(_ context.Context, account int64) {
	if err := h.env.RequireAuth(account); err != nil {
		panic(err)
	}
}

func (h *host) emitEvent(_ context.Context, topic, value int64) {
	if err := h.env.EmitEvent(topic, value); err != nil {
		panic(err)
	}
}

// CreateAccount registers a named account.
func (h *host) CreateAccount(name string) (ledger.Account, error) {
	return h.env.CreateAccount(name)
}

// Invoke calls the exported entry point for inv.Operation.
func (h *host) Invoke(ctx context.Context, inv sandbox.Invocation) (*sandbox.Outcome, error) {
	ep, args, err := h.env.Begin(inv)
	if err != nil {
		return nil, err
	}

	fn := h.funcs[ep.Name]
	params := make([]uint64, len(args))
	for i, a := range args {
		params[i] = api.EncodeI64(a)
	}

	callCtx := ctx
	if h.timeLimit > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, h.timeLimit)
		defer cancel()
	}

	results, err := fn.Call(callCtx, params...)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			if !errors.Is(err, ctx.Err()) {
				err = fmt.Errorf("%w: %v", ctx.Err(), err)
			}
		case callCtx.Err() != nil:
			err = fmt.Errorf("%w after %s: %v", sandbox.ErrTimeLimit, h.timeLimit, err)
		}
		return nil, h.env.Fail(ep.Name, err)
	}

	var ret sandbox.Value
	if ep.Returns {
		if len(results) != 1 {
			return nil, h.env.Fail(ep.Name, fmt.Errorf("%s returned %d results", ep.Name, len(results)))
		}
		ret = sandbox.Int(int64(results[0]))
	}
	return h.env.Finish(ep.Name, ret, h.memoryBytes())
}

func (h *host) memoryBytes() uint64 {
	if h.mod == nil {
		return 0
	}
	mem := h.mod.Memory()
	if mem == nil {
		return 0
	}
	return uint64(mem.Size())
}

// Close releases the runtime and storage.
func (h *host) Close(ctx context.Context) error {
	rtErr := h.rt.Close(ctx)
	envErr := h.env.Close()
	return errors.Join(rtErr, envErr)
}

var _ sandbox.Host = (*host)(nil)
