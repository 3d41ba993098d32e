package bench

import (
	"errors"
	"fmt"

	"github.com/fortiblox/soroscope/pkg/sandbox"
)

// ErrInvalidScenario is returned for scenarios that can't be run.
var ErrInvalidScenario = errors.New("invalid scenario")

// Step is one scripted invocation.
type Step struct {
	Operation string
	Invoker   string
	Args      []sandbox.Value

	// Expect is the required return value, if set.
	Expect *sandbox.Value
}

// Invocation returns the host invocation for the step.
func (s Step) Invocation() sandbox.Invocation {
	return sandbox.Invocation{
		Operation: s.Operation,
		Invoker:   s.Invoker,
		Args:      s.Args,
	}
}

func (s Step) String() string {
	return fmt.Sprintf("%s%v by %s", s.Operation, s.Args, s.Invoker)
}

// Scenario is an ordered list of steps and the accounts they use.
type Scenario struct {
	Name string

	// Accounts are created before the first step, in order.
	Accounts []string

	Steps []Step
}

// DefaultScenario is the reference token workload.
func DefaultScenario() Scenario {
	expect := sandbox.Int(30)
	return Scenario{
		Name:     "default",
		Accounts: []string{"admin", "alice", "bob"},
		Steps: []Step{
			{Operation: "initialize", Invoker: "admin", Args: []sandbox.Value{sandbox.Account("admin")}},
			{Operation: "mint", Invoker: "admin", Args: []sandbox.Value{sandbox.Account("alice"), sandbox.Int(100)}},
			{Operation: "transfer", Invoker: "alice", Args: []sandbox.Value{sandbox.Account("alice"), sandbox.Account("bob"), sandbox.Int(30)}},
			{Operation: "balance", Invoker: "bob", Args: []sandbox.Value{sandbox.Account("bob")}, Expect: &expect},
		},
	}
}

// Validate checks that every account is declared once and every step names
// an operation and a declared invoker. Argument shapes are left to the host.
func (s Scenario) Validate() error {
	declared := make(map[string]bool, len(s.Accounts))
	for _, name := range s.Accounts {
		if name == "" {
			return fmt.Errorf("%w: empty account name", ErrInvalidScenario)
		}
		if declared[name] {
			return fmt.Errorf("%w: account %q declared twice", ErrInvalidScenario, name)
		}
		declared[name] = true
	}

	for i, step := range s.Steps {
		if step.Operation == "" {
			return fmt.Errorf("%w: step %d has no operation", ErrInvalidScenario, i)
		}
		if !declared[step.Invoker] {
			return fmt.Errorf("%w: step %d invoker %q is not a declared account", ErrInvalidScenario, i, step.Invoker)
		}
	}
	return nil
}
