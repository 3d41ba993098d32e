package bench

import (
	"fmt"
	"math/big"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/fortiblox/soroscope/pkg/sandbox"
)

// hclScenarioFile is the top-level structure of a scenario file.
//
//	name = "token"
//
//	account "admin" {}
//	account "alice" {}
//
//	step "mint" {
//	  invoker = "admin"
//	  args    = ["alice", 100]
//	}
//
//	step "balance" {
//	  invoker = "alice"
//	  args    = ["alice"]
//	  expect  = 100
//	}
type hclScenarioFile struct {
	Name     *string       `hcl:"name,optional"`
	Accounts []*hclAccount `hcl:"account,block"`
	Steps    []*hclStep    `hcl:"step,block"`
}

type hclAccount struct {
	Name string `hcl:"name,label"`
}

type hclStep struct {
	Operation string         `hcl:"operation,label"`
	Invoker   string         `hcl:"invoker"`
	Args      hcl.Expression `hcl:"args,optional"`
	Expect    hcl.Expression `hcl:"expect,optional"`
}

// LoadScenarioFile reads a scenario from an HCL file. The scenario name
// defaults to the file name without extension.
func LoadScenarioFile(path string) (Scenario, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return Scenario{}, fmt.Errorf("failed to parse scenario file %s: %w", path, diags)
	}

	sc, err := decodeScenario(file.Body)
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario file %s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// ParseScenario reads a scenario from HCL source. filename is used in
// diagnostics only.
func ParseScenario(src []byte, filename string) (Scenario, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return Scenario{}, fmt.Errorf("failed to parse scenario %s: %w", filename, diags)
	}
	return decodeScenario(file.Body)
}

func decodeScenario(body hcl.Body) (Scenario, error) {
	var parsed hclScenarioFile
	if diags := gohcl.DecodeBody(body, nil, &parsed); diags.HasErrors() {
		return Scenario{}, fmt.Errorf("failed to decode scenario: %w", diags)
	}

	var sc Scenario
	if parsed.Name != nil {
		sc.Name = *parsed.Name
	}
	for _, acc := range parsed.Accounts {
		sc.Accounts = append(sc.Accounts, acc.Name)
	}

	for i, hs := range parsed.Steps {
		step := Step{Operation: hs.Operation, Invoker: hs.Invoker}

		args, err := decodeArgs(hs.Args)
		if err != nil {
			return Scenario{}, fmt.Errorf("step %d (%s): %w", i, hs.Operation, err)
		}
		step.Args = args

		expect, err := decodeExpect(hs.Expect)
		if err != nil {
			return Scenario{}, fmt.Errorf("step %d (%s): %w", i, hs.Operation, err)
		}
		step.Expect = expect

		sc.Steps = append(sc.Steps, step)
	}

	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

func decodeArgs(expr hcl.Expression) ([]sandbox.Value, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("args: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsKnown() {
		return nil, fmt.Errorf("%w: args must be known", ErrInvalidScenario)
	}
	ty := val.Type()
	if !ty.IsTupleType() && !ty.IsListType() {
		return nil, fmt.Errorf("%w: args must be a list, got %s", ErrInvalidScenario, ty.FriendlyName())
	}

	var out []sandbox.Value
	for it := val.ElementIterator(); it.Next(); {
		_, v := it.Element()
		arg, err := ctyToValue(v)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", len(out), err)
		}
		out = append(out, arg)
	}
	return out, nil
}

func decodeExpect(expr hcl.Expression) (*sandbox.Value, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("expect: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	if val.Type() != cty.Number {
		return nil, fmt.Errorf("%w: expect must be a number, got %s", ErrInvalidScenario, val.Type().FriendlyName())
	}
	v, err := ctyToValue(val)
	if err != nil {
		return nil, fmt.Errorf("expect: %w", err)
	}
	return &v, nil
}

// ctyToValue maps strings to account references and whole numbers to ints.
func ctyToValue(v cty.Value) (sandbox.Value, error) {
	if v.IsNull() || !v.IsKnown() {
		return sandbox.Value{}, fmt.Errorf("%w: null or unknown value", ErrInvalidScenario)
	}
	switch v.Type() {
	case cty.String:
		return sandbox.Account(v.AsString()), nil
	case cty.Number:
		bf := v.AsBigFloat()
		if !bf.IsInt() {
			return sandbox.Value{}, fmt.Errorf("%w: %s is not an integer", ErrInvalidScenario, bf.Text('g', -1))
		}
		n, acc := bf.Int64()
		if acc != big.Exact {
			return sandbox.Value{}, fmt.Errorf("%w: %s overflows int64", ErrInvalidScenario, bf.Text('g', -1))
		}
		return sandbox.Int(n), nil
	default:
		return sandbox.Value{}, fmt.Errorf("%w: unsupported type %s", ErrInvalidScenario, v.Type().FriendlyName())
	}
}
