package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/config"
)

// NewConfigValidateCmd creates the config validate command for validating configuration.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validates the effective configuration: ~/.bulkops/config.yaml, the project
overlay and BULKOPS_* environment overrides.

This includes:
- Logging level and format
- Store driver and DSN
- Batch size bounds
- View definitions (known filter fields, unique IDs)`,
		Example: `  # Validate current configuration
  bulkops config validate

  # Validate and show detailed information
  bulkops config validate --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, verbose bool) error {
	cfg := config.GetGlobalConfig()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	cmd.Println("Configuration is valid")

	if verbose {
		printVerboseDetails(cmd, cfg)
	}
	return nil
}

// printVerboseDetails prints detailed configuration information.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config) {
	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Config file: %s\n", cfg.Path())
	if dir := config.GetResolvedProjectDir(); dir != "" {
		cmd.Printf("  Project directory: %s\n", dir)
	}
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
	cmd.Printf("  Log file: %s\n", cfg.Logging.File)
	cmd.Printf("  Store: %s %s\n", cfg.Store.Driver, cfg.Store.DSN)
	cmd.Printf("  Batch size: %d\n", cfg.Batch.Size)
	cmd.Printf("  Checkpoints: %s\n", cfg.Checkpoint.Dir)

	if len(cfg.Operations) > 0 {
		cmd.Printf("  Preconfigured operations: %d\n", len(cfg.Operations))
		for id := range cfg.Operations {
			cmd.Printf("    - %s\n", id)
		}
	}
	if len(cfg.Views) == 0 {
		cmd.Println("  No views configured (default views only)")
		return
	}
	cmd.Printf("  Views: %d\n", len(cfg.Views))
	for _, v := range cfg.Views {
		cmd.Printf("    - %s (%s)\n", v.ID, v.RecordType)
	}
}
