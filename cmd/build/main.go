// Command build renders the HTML report over results.json.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"style_spider/internal/config"
	"style_spider/internal/logging"
	"style_spider/internal/report"
)

func NewRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
		input      string
		output     string
	)

	cmd := &cobra.Command{
		Use:           "build",
		Short:         "Generate the HTML style report",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger, err := logging.FromConfig(cfg.Log, verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if input == "" {
				input = cfg.Report.ResultsPath
			}
			if output == "" {
				output = cfg.Report.OutputDir
			}
			return report.Build(input, output, logger)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the configuration file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.Flags().StringVarP(&input, "input", "i", "", "results.json to read (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Directory to write the report to (default from config)")
	return cmd
}

func main() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
