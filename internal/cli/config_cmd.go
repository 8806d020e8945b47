package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/config"
)

// NewConfigInitCmd creates the config init command, which writes the default
// configuration to ~/.bulkops/config.yaml.
func NewConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.EnsureConfigDir(); err != nil {
				return err
			}
			dir, err := config.GetConfigDir()
			if err != nil {
				return err
			}
			cfg := config.Default(dir)
			if _, statErr := os.Stat(cfg.Path()); statErr == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfg.Path())
			} else if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
				return statErr
			}
			if err = cfg.Save(); err != nil {
				return err
			}
			cmd.Printf("Wrote %s\n", cfg.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	return cmd
}

// NewConfigShowCmd creates the config show command, which prints the
// effective configuration after project overlay and environment overrides.
func NewConfigShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == outputTable {
				output = outputYAML
			}
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			return writeStructured(cmd.OutOrStdout(), output, config.GetGlobalConfig())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputYAML, "output format: json or yaml")
	return cmd
}
