// Package token builds the reference token contract as a WebAssembly module.
//
// The contract implements the benchmark entry points against the env host
// functions. Storage layout: key 0 holds the admin handle, key h holds the
// balance of the account with handle h. Handles start at 1, so the two never
// collide.
package token

import (
	"github.com/fortiblox/soroscope/internal/wasmbin"
)

// Event topics emitted by the contract.
const (
	TopicInitialize = 1
	TopicMint       = 2
	TopicTransfer   = 3
)

const adminKey = 0

// Host function indices, in import order.
const (
	fnStorageGet = iota
	fnStorageHas
	fnStoragePut
	fnRequireAuth
	fnEmitEvent
	numImports
)

var i64 = []wasmbin.ValType{wasmbin.I64}

func i64s(n int) []wasmbin.ValType {
	out := make([]wasmbin.ValType, n)
	for i := range out {
		out[i] = wasmbin.I64
	}
	return out
}

// Module returns the contract as an editable module.
func Module() *wasmbin.Module {
	// Defined function indices follow the imports.
	const credit = numImports + 4

	// initialize(admin)
	initialize := new(wasmbin.Code).
		I64Const(adminKey).Call(fnStorageHas).TrapIf().
		I64Const(adminKey).LocalGet(0).Call(fnStoragePut).
		I64Const(TopicInitialize).LocalGet(0).Call(fnEmitEvent)

	// mint(to, amount)
	mint := new(wasmbin.Code).
		I64Const(adminKey).Call(fnStorageHas).I32Eqz().TrapIf().
		I64Const(adminKey).Call(fnStorageGet).Call(fnRequireAuth).
		LocalGet(1).I64Const(0).I64LtS().TrapIf().
		LocalGet(0).LocalGet(1).Call(credit).
		I64Const(TopicMint).LocalGet(1).Call(fnEmitEvent)

	// transfer(from, to, amount); local 3 holds the sender balance
	transfer := new(wasmbin.Code).
		LocalGet(0).Call(fnRequireAuth).
		LocalGet(2).I64Const(0).I64LtS().TrapIf().
		LocalGet(0).Call(fnStorageGet).LocalSet(3).
		LocalGet(3).LocalGet(2).I64LtS().TrapIf().
		LocalGet(0).LocalGet(3).LocalGet(2).I64Sub().Call(fnStoragePut).
		LocalGet(1).LocalGet(2).Call(credit).
		I64Const(TopicTransfer).LocalGet(2).Call(fnEmitEvent)

	// balance(id) -> i64
	balance := new(wasmbin.Code).
		LocalGet(0).Call(fnStorageGet)

	// credit(account, amount): internal
	creditBody := new(wasmbin.Code).
		LocalGet(0).
		LocalGet(0).Call(fnStorageGet).LocalGet(1).I64Add().
		Call(fnStoragePut)

	return &wasmbin.Module{
		Imports: []wasmbin.Import{
			{Module: "env", Name: "storage_get", Type: wasmbin.FuncType{Params: i64, Results: i64}},
			{Module: "env", Name: "storage_has", Type: wasmbin.FuncType{Params: i64, Results: []wasmbin.ValType{wasmbin.I32}}},
			{Module: "env", Name: "storage_put", Type: wasmbin.FuncType{Params: i64s(2)}},
			{Module: "env", Name: "require_auth", Type: wasmbin.FuncType{Params: i64}},
			{Module: "env", Name: "emit_event", Type: wasmbin.FuncType{Params: i64s(2)}},
		},
		Funcs: []wasmbin.Func{
			{Export: "initialize", Type: wasmbin.FuncType{Params: i64s(1)}, Body: initialize.Bytes()},
			{Export: "mint", Type: wasmbin.FuncType{Params: i64s(2)}, Body: mint.Bytes()},
			{Export: "transfer", Type: wasmbin.FuncType{Params: i64s(3)}, Locals: i64s(1), Body: transfer.Bytes()},
			{Export: "balance", Type: wasmbin.FuncType{Params: i64s(1), Results: i64}, Body: balance.Bytes()},
			{Type: wasmbin.FuncType{Params: i64s(2)}, Body: creditBody.Bytes()},
		},
		MemoryPages:  1,
		MemoryExport: "memory",
	}
}

// WASM returns the encoded contract.
func WASM() []byte {
	return Module().Encode()
}
