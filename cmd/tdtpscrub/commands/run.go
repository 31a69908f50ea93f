package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ruslano69/tdtp-scrubber/pkg/scrub"
)

type runOptions struct {
	configPath string
	input      string
	output     string
	report     string
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrub an input table and write the cleaned table and report",
		Example: `  tdtpscrub run -c scrub.yaml -i customers.xlsx -o clean.xlsx --report report.csv
  tdtpscrub run -c scrub.yaml -i export.tdtp.xml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if opts.output != "" {
				cfg.Output.Path = opts.output
			}
			if opts.report != "" {
				cfg.Output.Report = opts.report
			}
			if err := cfg.Output.Validate(); err != nil {
				return err
			}

			pipeline := scrub.NewPipeline(cfg, global.logger)
			if err := pipeline.Execute(cmd.Context(), opts.input); err != nil {
				return fmt.Errorf("scrub failed: %w", err)
			}

			printStats(cmd.OutOrStdout(), cfg.Name, pipeline.Stats())
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "scrub configuration file (YAML)")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "input table (.xml, .tdtp, .xlsx, .csv)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "cleaned table (overrides output.path)")
	cmd.Flags().StringVar(&opts.report, "report", "", "report file .csv, .json or .xlsx (overrides output.report)")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("input")

	return cmd
}

// printStats - итог запуска
func printStats(w io.Writer, name string, stats scrub.RunStats) {
	headerColor.Fprintf(w, "Scrub: %s\n", name)
	fmt.Fprintf(w, "   Run ID:   %s\n", stats.RunID)
	fmt.Fprintf(w, "   Input:    %s\n", stats.Input)
	if r := stats.Result; r != nil {
		fmt.Fprintf(w, "   Rules:    %d\n", r.Rules)
		fmt.Fprintf(w, "   Rows:     %d -> %d\n", r.RowsIn, r.RowsOut)
		fmt.Fprintf(w, "   Changes:  %s\n", r.Report.Summary())
		fmt.Fprintf(w, "   Checksum: %s\n", r.Checksum)
	}
	if stats.OutputLocation != "" {
		fmt.Fprintf(w, "   Output:   %s\n", stats.OutputLocation)
	} else {
		warningColor.Fprintln(w, "   Output:   not written (output.path is empty)")
	}
	if stats.ReportLocation != "" {
		fmt.Fprintf(w, "   Report:   %s\n", stats.ReportLocation)
	}
	successColor.Fprintf(w, "Done in %s\n", stats.Duration.Round(time.Millisecond))
}
