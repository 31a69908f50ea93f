// Package commands - команды CLI tdtpscrub
package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ruslano69/tdtp-scrubber/pkg/logging"
	"github.com/ruslano69/tdtp-scrubber/pkg/scrub"
)

// Информация о версии (задается при сборке)
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// globalOptions - флаги корневой команды
type globalOptions struct {
	logLevel  string
	logFormat string
	logger    *zap.Logger
}

// NewRootCmd создает корневую команду со всеми подкомандами
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "tdtpscrub",
		Short: "tdtpscrub - validation and cleansing of tabular data",
		Long: `tdtpscrub applies an ordered list of validation rules to a table
(TDTP XML, XLSX or CSV), repairs or removes invalid values and writes
the cleaned table together with a report of every change.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.NewWithWriter(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.logger != nil {
				opts.logger.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newCheckCmd(opts),
		newSessionsCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// loadConfig - загрузить конфигурацию запуска
func loadConfig(path string) (*scrub.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file is required (--config)")
	}
	cfg, err := scrub.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tdtpscrub %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}
