package sandbox

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no candidate module path exists.
	ErrNotFound = errors.New("module not found")

	// ErrReadFailure is returned when a module path exists but can't be read.
	ErrReadFailure = errors.New("module read failure")

	// ErrInvalidModule is returned when module bytes are not a well-formed module.
	ErrInvalidModule = errors.New("invalid module")

	// ErrUnsupportedInterface is returned when the module lacks an expected
	// entry point or imports a host function the host doesn't provide.
	ErrUnsupportedInterface = errors.New("unsupported module interface")

	// ErrTrap is returned when the module aborts during an invocation.
	ErrTrap = errors.New("module trapped")

	// ErrResourceExhausted is returned when an invocation exceeds its resource limit.
	ErrResourceExhausted = errors.New("resource limit exceeded")

	// ErrInvalidArguments is returned for unknown operations, unknown accounts
	// or arguments that don't match the entry point.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrUnauthorized is the trap cause when require_auth names an account
	// other than the invoker.
	ErrUnauthorized = errors.New("authorization failed")
)

// ErrorKind classifies load and invocation failures.
type ErrorKind uint8

const (
	KindNotFound ErrorKind = iota + 1
	KindReadFailure
	KindInvalidModule
	KindUnsupportedInterface
	KindTrap
	KindResourceExhausted
	KindInvalidArguments
)

var kindSentinels = map[ErrorKind]error{
	KindNotFound:             ErrNotFound,
	KindReadFailure:          ErrReadFailure,
	KindInvalidModule:        ErrInvalidModule,
	KindUnsupportedInterface: ErrUnsupportedInterface,
	KindTrap:                 ErrTrap,
	KindResourceExhausted:    ErrResourceExhausted,
	KindInvalidArguments:     ErrInvalidArguments,
}

// Sentinel returns the package error matching the kind.
func (k ErrorKind) Sentinel() error {
	return kindSentinels[k]
}

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindReadFailure:
		return "ReadFailure"
	case KindInvalidModule:
		return "InvalidModule"
	case KindUnsupportedInterface:
		return "UnsupportedInterface"
	case KindTrap:
		return "Trap"
	case KindResourceExhausted:
		return "ResourceExhausted"
	case KindInvalidArguments:
		return "InvalidArguments"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// LoadError is returned while locating, reading or instantiating a module.
type LoadError struct {
	Kind ErrorKind

	// Path is the module path, if known.
	Path string

	// Err is the underlying cause.
	Err error
}

func (e *LoadError) Error() string {
	msg := e.Kind.Sentinel().Error()
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is matches the sentinel for the error's kind.
func (e *LoadError) Is(target error) bool {
	return target == e.Kind.Sentinel()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// InvocationError is returned when a single operation fails.
type InvocationError struct {
	Kind ErrorKind

	// Operation is the entry point that was invoked.
	Operation string

	// Units is the resource consumption up to the failure.
	Units uint64

	// Err is the underlying cause.
	Err error
}

func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("invoke %s: %s", e.Operation, e.Kind.Sentinel())
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is matches the sentinel for the error's kind.
func (e *InvocationError) Is(target error) bool {
	return target == e.Kind.Sentinel()
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// UnitsOf returns the units recorded on an InvocationError anywhere in err's
// chain, or zero.
func UnitsOf(err error) uint64 {
	var ie *InvocationError
	if errors.As(err, &ie) {
		return ie.Units
	}
	return 0
}
