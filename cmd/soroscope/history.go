package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fortiblox/soroscope/pkg/history"
	"github.com/fortiblox/soroscope/pkg/report"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect stored benchmark runs",
	}
	cmd.AddCommand(newHistoryListCmd(a), newHistoryShowCmd(a))
	return cmd
}

func newHistoryListCmd(a *app) *cobra.Command {
	var (
		limit  int
		module string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := historyStore(a)
			if err != nil {
				return err
			}

			var runs []*report.Report
			if module != "" {
				runs, err = store.ListByModule(module, limit)
			} else {
				runs, err = store.List(limit)
			}
			if err != nil {
				return err
			}
			return writeRunTable(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs (0 = all)")
	cmd.Flags().StringVar(&module, "module", "", "Only runs of the module with this hex hash")
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			store, err := historyStore(a)
			if err != nil {
				return err
			}

			r, err := store.Get(id)
			if err != nil {
				return fmt.Errorf("run %d: %w", id, err)
			}
			if asJSON {
				return report.GenerateJSON(cmd.OutOrStdout(), r)
			}
			return report.Generate(cmd.OutOrStdout(), r)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the report as JSON")
	return cmd
}

func historyStore(a *app) (*history.Shared, error) {
	if a.historyPath == "" {
		return nil, fmt.Errorf("no history path configured")
	}
	return a.history(), nil
}

func writeRunTable(w io.Writer, runs []*report.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSCENARIO\tENGINE\tCALLS\tFAILED\tUNITS\tMODULE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID,
			r.Created.Local().Format(time.DateTime),
			r.Scenario,
			r.Engine,
			r.TotalCalls,
			r.TotalFailures,
			r.TotalUnits,
			r.Module,
		)
	}
	return tw.Flush()
}
