package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ruslano69/tdtp-scrubber/pkg/refdata"
	"github.com/ruslano69/tdtp-scrubber/pkg/scrub"
	"github.com/ruslano69/tdtp-scrubber/pkg/tableio"
)

func newSessionsCmd(global *globalOptions) *cobra.Command {
	var configPath, input string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Count rows without session gaps or overlaps for each Session rule",
		Long: `sessions evaluates every Session rule of the configuration against the
input table and prints how many rows already satisfy its gap and overlap
policies. The input is not modified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			t, err := tableio.Load(input, tableio.Options{})
			if err != nil {
				return fmt.Errorf("failed to load input: %w", err)
			}

			catalog, err := refdata.NewCatalog(cfg.References, global.logger)
			if err != nil {
				return err
			}

			s := scrub.New(cfg.Rules,
				scrub.WithProfile(cfg.Profile),
				scrub.WithReferences(catalog),
				scrub.WithLogger(global.logger),
			)
			scores, err := s.SessionScores(cmd.Context(), t)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(scores) == 0 {
				warningColor.Fprintln(out, "No Session rules in configuration")
				return nil
			}
			for _, score := range scores {
				fmt.Fprintf(out, "rule[%d] Session: %d of %d rows good\n", score.Index, score.Good, score.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "scrub configuration file (YAML)")
	cmd.Flags().StringVarP(&input, "input", "i", "", "input table (.xml, .tdtp, .xlsx, .csv)")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("input")

	return cmd
}
