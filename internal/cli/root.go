// Package cli implements the bulkops command line.
package cli

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/bulkops/internal/config"
	"github.com/rshade/bulkops/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// isTerminalWriter reports whether w is a terminal file.
func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTerminal(f)
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the bulkops CLI.
// It loads configuration (global file, project overlay, environment), wires
// up logging and tracing, and registers the subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var logResult *logging.LogPathResult
	var projectDir string

	cmd := &cobra.Command{
		Use:     "bulkops",
		Short:   "Batch operations over stored records",
		Long:    "bulkops: apply operations to records in resumable, checkpointed batches",
		Version: ver,
		Example: rootCmdExample,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			wd, _ := os.Getwd()
			resolved := config.ResolveProjectDir(cmd.Context(), projectDir, wd)
			config.SetResolvedProjectDir(resolved)
			config.SetGlobalConfig(config.NewWithProjectDir(cmd.Context(), resolved))

			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return cleanupLogging(logResult)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&projectDir, "project-dir", "",
		"project directory holding .bulkops/config.yaml (default: walk up from the working directory)")

	cmd.AddCommand(
		NewRunCmd(),
		newOperationsCmd(),
		newRecordsCmd(),
		newConfigCmd(),
		newRunsCmd(),
	)

	return cmd
}

const rootCmdExample = `  # Import records from a YAML file
  bulkops records import records.yaml

  # List records through a view, one page at a time
  bulkops records list --view articles --page 2 --page-size 20

  # List the available operations
  bulkops operations list

  # Run an operation in batches of 25, stopping after 4 steps
  bulkops run publish.yaml --batch-size 25 --max-steps 4

  # Resume a paused run
  bulkops run publish.yaml --resume 01JB8Y7Q2N5W3V4X6Z8A9B0C1D

  # Inspect checkpoints
  bulkops runs list`

// newOperationsCmd creates the operations command group.
func newOperationsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "operations", Short: "Operation catalog commands"}
	cmd.AddCommand(NewOperationsListCmd())
	return cmd
}

// newRecordsCmd creates the records command group.
func newRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "records", Short: "Record management commands"}
	cmd.AddCommand(NewRecordsImportCmd(), NewRecordsListCmd())
	return cmd
}

// newConfigCmd creates the config command group with configuration subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigShowCmd(), NewConfigValidateCmd())
	return cmd
}

// newRunsCmd creates the runs command group for checkpoint management.
func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "runs", Short: "Run checkpoint commands"}
	cmd.AddCommand(NewRunsListCmd(), NewRunsShowCmd(), NewRunsDeleteCmd(), NewRunsPruneCmd())
	return cmd
}
