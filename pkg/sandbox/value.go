package sandbox

import (
	"strconv"
)

// ValueKind is the type of an argument or return value.
type ValueKind uint8

const (
	// KindVoid is the zero Value: no return value.
	KindVoid ValueKind = iota
	KindInt
	KindAccount
)

func (k ValueKind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindAccount:
		return "account"
	default:
		return "unknown"
	}
}

// Value is an argument to or result of an invocation.
type Value struct {
	Kind ValueKind `json:"kind"`

	// Int is set for KindInt.
	Int int64 `json:"int,omitempty"`

	// Account is the account name for KindAccount.
	Account string `json:"account,omitempty"`
}

// Int returns an integer value.
func Int(v int64) Value {
	return Value{Kind: KindInt, Int: v}
}

// Account returns a reference to a named account.
func Account(name string) Value {
	return Value{Kind: KindAccount, Account: name}
}

// IsVoid reports whether v carries no value.
func (v Value) IsVoid() bool {
	return v.Kind == KindVoid
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindAccount:
		return "@" + v.Account
	default:
		return "void"
	}
}

// Invocation is one call into a contract.
type Invocation struct {
	// Operation is the entry point name.
	Operation string

	// Invoker is the account name that authorizes the call.
	Invoker string

	// Args are the entry point arguments in order.
	Args []Value
}

// Event is a contract event emitted through emit_event.
type Event struct {
	Topic int64 `json:"topic"`
	Value int64 `json:"value"`
}

// Outcome is the result of a successful invocation.
type Outcome struct {
	Operation string

	// Units is the resource consumption of this invocation alone.
	Units uint64

	// Return is the returned value, void for operations without a result.
	Return Value

	// MemoryBytes is the contract's linear memory size after the call.
	MemoryBytes uint64

	// StorageBytes is the total size of contract storage after the call.
	StorageBytes uint64

	// Events are the events emitted during the call.
	Events []Event
}
