package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/operation"
	"github.com/rshade/bulkops/internal/operation/builtin"
)

// NewOperationsListCmd creates the operations list command.
func NewOperationsListCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available operations",
		Example: `  bulkops operations list
  bulkops operations list --output yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			return listOperations(cmd, builtin.NewCatalog(), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return cmd
}

func listOperations(cmd *cobra.Command, catalog *operation.Catalog, output string) error {
	defs := catalog.List()
	if output != outputTable {
		return writeStructured(cmd.OutOrStdout(), output, defs)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
	fmt.Fprintln(w, "ID\tVersion\tLabel\tReceives\tDescription")
	fmt.Fprintln(w, "--\t-------\t-----\t--------\t-----------")
	for _, def := range defs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", def.ID, def.Version, def.Label, receives(def), def.Description)
	}
	return w.Flush()
}

// receives describes the optional inputs an operation asks for.
func receives(def operation.Definition) string {
	var parts []string
	if def.PassView {
		parts = append(parts, "view")
	}
	if def.PassContext {
		parts = append(parts, "progress")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}
