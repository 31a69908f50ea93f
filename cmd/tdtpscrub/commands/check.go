package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ruslano69/tdtp-scrubber/pkg/scrub"
)

func newCheckCmd(global *globalOptions) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and build every rule without touching data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			if err := scrub.NewPipeline(cfg, global.logger).Check(cmd.Context()); err != nil {
				return fmt.Errorf("configuration check failed: %w", err)
			}

			successColor.Fprintf(cmd.OutOrStdout(), "Configuration %s is valid: %d rules\n", cfg.Name, len(cfg.Rules))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "scrub configuration file (YAML)")
	cmd.MarkFlagRequired("config")

	return cmd
}
