package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/checkpoint"
	"github.com/rshade/bulkops/internal/config"
)

func openCheckpoints() (*checkpoint.FileStore, error) {
	return checkpoint.NewFileStore(config.GetGlobalConfig().Checkpoint.Dir)
}

// NewRunsListCmd creates the runs list command.
func NewRunsListCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List run checkpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			store, err := openCheckpoints()
			if err != nil {
				return err
			}
			runs, err := store.List()
			if err != nil {
				return err
			}
			if output != outputTable {
				if runs == nil {
					runs = []*checkpoint.RunState{}
				}
				return writeStructured(cmd.OutOrStdout(), output, runs)
			}
			if len(runs) == 0 {
				cmd.Println("No runs found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
			fmt.Fprintln(w, "Run ID\tOperation\tType\tStatus\tProgress\tUpdated")
			fmt.Fprintln(w, "------\t---------\t----\t------\t--------\t-------")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.RunID, r.OperationID, r.RecordType, r.Status,
					progressText(r), r.UpdatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return cmd
}

func progressText(r *checkpoint.RunState) string {
	if r.Progress.Total == nil {
		return formatCount(r.Progress.Offset) + "/?"
	}
	return formatCount(r.Progress.Offset) + "/" + formatCount(*r.Progress.Total)
}

// NewRunsShowCmd creates the runs show command.
func NewRunsShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == outputTable {
				output = outputJSON
			}
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			store, err := openCheckpoints()
			if err != nil {
				return err
			}
			state, err := store.Get(args[0])
			if err != nil {
				return err
			}
			return writeStructured(cmd.OutOrStdout(), output, state)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputJSON, "output format: json or yaml")
	return cmd
}

// NewRunsDeleteCmd creates the runs delete command.
func NewRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>...",
		Short: "Delete run checkpoints",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCheckpoints()
			if err != nil {
				return err
			}
			for _, id := range args {
				if err = store.Delete(id); err != nil {
					return err
				}
				cmd.Printf("Deleted run %s\n", id)
			}
			return nil
		},
	}
}

// NewRunsPruneCmd creates the runs prune command.
func NewRunsPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete completed and failed run checkpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCheckpoints()
			if err != nil {
				return err
			}
			removed, err := store.PruneFinished()
			if err != nil {
				return err
			}
			cmd.Printf("Removed %s finished run(s)\n", formatCount(removed))
			return nil
		},
	}
}
