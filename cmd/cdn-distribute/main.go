// Command cdn-distribute copies downloaded CDN files into the site
// directories whose manifests reference them.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"style_spider/internal/cdn"
	"style_spider/internal/logging"
)

func NewRootCmd() *cobra.Command {
	var (
		baseDir string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:           "cdn-distribute [base-dir]",
		Short:         "Distribute downloaded CDN files into per-site directories",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New("info", "console", verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if len(args) == 1 {
				baseDir = args[0]
			}
			if baseDir == "" {
				if baseDir, err = cdn.DefaultBaseDir(); err != nil {
					return err
				}
			}

			stats, err := cdn.NewDistributor(baseDir, logger).Run()
			logger.Info("Done",
				zap.Int("sites", stats.Sites),
				zap.Int("copied", stats.Copied),
				zap.Int("present", stats.Present),
				zap.Int("broken", stats.Broken))
			return err
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	return cmd
}

func main() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
