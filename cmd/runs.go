package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/catchment-cli/internal/model"
	"github.com/sells-group/catchment-cli/internal/store"
)

var (
	runsStatus string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List past analysis runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(runsStatus),
			Limit:  runsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list runs")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tINPUT\tSUCCEEDED\tSKIPPED\tCREATED")
		for _, r := range runs {
			succeeded, skipped := "-", "-"
			if r.Summary != nil {
				succeeded = fmt.Sprintf("%d/%d", r.Summary.Succeeded, r.Summary.Total)
				skipped = fmt.Sprintf("%d", r.Summary.Skipped)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Status, r.InputFile, succeeded, skipped,
				r.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

var runsSkippedCmd = &cobra.Command{
	Use:   "skipped <run-id>",
	Short: "List facilities skipped during a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		letters, err := st.ListDeadLetters(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "list skipped facilities")
		}
		if len(letters) == 0 {
			fmt.Fprintln(os.Stderr, "No skipped facilities for this run.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ROW\tFACILITY\tTYPE\tREASON")
		for _, dl := range letters {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", dl.Row, dl.Facility, dl.ErrorType, dl.Reason)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (running, complete, failed, interrupted)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	runsCmd.AddCommand(runsSkippedCmd)
	rootCmd.AddCommand(runsCmd)
}
