package bench

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fortiblox/soroscope/internal/wasmbin"
	"github.com/fortiblox/soroscope/pkg/contract/token"
	"github.com/fortiblox/soroscope/pkg/metrics"
	"github.com/fortiblox/soroscope/pkg/sandbox"
	"github.com/fortiblox/soroscope/pkg/sandbox/wasm"
)

func newHost(t *testing.T, code []byte, cfg sandbox.Config) sandbox.Host {
	t.Helper()
	ctx := context.Background()
	h, err := wasm.New(wasm.DefaultConfig()).Construct(ctx, code, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close(ctx) })
	return h
}

func TestRunDefaultScenario(t *testing.T) {
	h := newHost(t, token.WASM(), sandbox.DefaultConfig())
	c := metrics.NewCollector()

	outcomes, err := NewRunner(h, c, nil).Run(context.Background(), DefaultScenario())
	require.NoError(t, err)
	require.Len(t, outcomes, 4)
	require.Equal(t, sandbox.Int(30), outcomes[3].Return)

	recs := c.Records()
	require.Len(t, recs, 4)
	for i, op := range []string{"initialize", "mint", "transfer", "balance"} {
		require.Equal(t, op, recs[i].Operation)
		require.Equal(t, i, recs[i].Step)
		require.NotZero(t, recs[i].Units)
		require.False(t, recs[i].End.Before(recs[i].Start))
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	m := token.Module()
	m.Export("mint").Body = new(wasmbin.Code).Unreachable().Bytes()

	h := newHost(t, m.Encode(), sandbox.DefaultConfig())
	c := metrics.NewCollector()

	outcomes, err := NewRunner(h, c, nil).Run(context.Background(), DefaultScenario())

	var be *BenchmarkError
	require.True(t, errors.As(err, &be))
	require.Equal(t, 1, be.Step)
	require.Equal(t, "mint", be.Operation)
	require.Equal(t, 1, be.Completed)
	require.ErrorIs(t, err, sandbox.ErrTrap)
	require.Len(t, outcomes, 1)

	// Steps after the failure never run
	recs := c.Records()
	require.Len(t, recs, 2)
	require.True(t, recs[1].Failed())
}

func TestRunResourceExhausted(t *testing.T) {
	m := token.Module()
	m.Export("transfer").Body = new(wasmbin.Code).
		Loop().I64Const(1).Call(uint32(m.ImportIndex("storage_has"))).Drop().Br(0).End().
		Bytes()

	cfg := sandbox.DefaultConfig()
	cfg.ResourceLimit = 100_000
	h := newHost(t, m.Encode(), cfg)

	outcomes, err := NewRunner(h, metrics.NewCollector(), nil).Run(context.Background(), DefaultScenario())
	require.ErrorIs(t, err, sandbox.ErrResourceExhausted)

	var be *BenchmarkError
	require.True(t, errors.As(err, &be))
	require.Equal(t, 2, be.Step)
	require.Equal(t, 2, be.Completed)
	require.Len(t, outcomes, 2)
	require.Equal(t, cfg.ResourceLimit, sandbox.UnitsOf(err))
}

func TestRunUnexpectedResult(t *testing.T) {
	h := newHost(t, token.WASM(), sandbox.DefaultConfig())

	sc := DefaultScenario()
	wrong := sandbox.Int(31)
	sc.Steps[3].Expect = &wrong

	outcomes, err := NewRunner(h, metrics.NewCollector(), nil).Run(context.Background(), sc)
	require.ErrorIs(t, err, ErrUnexpectedResult)
	require.Len(t, outcomes, 3)

	var be *BenchmarkError
	require.True(t, errors.As(err, &be))
	require.Equal(t, 3, be.Step)
}

func TestRunInvalidArguments(t *testing.T) {
	h := newHost(t, token.WASM(), sandbox.DefaultConfig())

	sc := Scenario{
		Accounts: []string{"admin"},
		Steps: []Step{
			{Operation: "mint", Invoker: "admin", Args: []sandbox.Value{sandbox.Account("ghost"), sandbox.Int(1)}},
		},
	}
	_, err := NewRunner(h, metrics.NewCollector(), nil).Run(context.Background(), sc)
	require.ErrorIs(t, err, sandbox.ErrInvalidArguments)
}

func TestRunCanceledContext(t *testing.T) {
	h := newHost(t, token.WASM(), sandbox.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := NewRunner(h, metrics.NewCollector(), nil).Run(ctx, DefaultScenario())
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, outcomes)
}

func TestRunDuplicateAccount(t *testing.T) {
	h := newHost(t, token.WASM(), sandbox.DefaultConfig())
	_, err := h.CreateAccount("admin")
	require.NoError(t, err)

	_, err = NewRunner(h, metrics.NewCollector(), nil).Run(context.Background(), DefaultScenario())
	require.Error(t, err)
}
