package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fortiblox/soroscope/pkg/contract/token"
	"github.com/fortiblox/soroscope/pkg/sandbox/native"
)

func newContractCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contract",
		Short: "Reference contracts",
	}
	cmd.AddCommand(newContractEmitCmd(a))
	return cmd
}

func newContractEmitCmd(a *app) *cobra.Command {
	var (
		output  string
		program string
	)

	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Write the reference token contract module",
		RunE: func(cmd *cobra.Command, _ []string) error {
			code := token.WASM()
			if program != "" {
				if !slices.Contains(native.Programs(), program) {
					return fmt.Errorf("unknown native program %q (have %s)", program, strings.Join(native.Programs(), ", "))
				}
				code = native.Module(program)
			}

			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create directory: %w", err)
				}
			}
			if err := os.WriteFile(output, code, 0o644); err != nil {
				return fmt.Errorf("write module: %w", err)
			}
			a.logger.Info("contract written", "path", output, "size", len(code), "native", program)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "soroban_token_contract.wasm", "Output path")
	cmd.Flags().StringVar(&program, "native", "", "Emit the named native-engine program instead of wasm")
	cmd.Flags().Lookup("native").NoOptDefVal = "token"
	return cmd
}
