// Command spider scrapes the CSS used by numbered wiki pages through a
// headless browser, keeping a resumable checkpoint of everything seen.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"style_spider/internal/app"
	"style_spider/internal/config"
	"style_spider/internal/db"
	"style_spider/internal/logging"
)

func NewRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:           "spider",
		Short:         "Scrape page styles from the wiki with a headless browser",
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

			return run(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the configuration file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	return cmd
}

func run(ctx context.Context, cfg *config.SpiderConfig, logger *zap.Logger) error {
	var opts []app.Option

	var mongoDB *db.MongoDB
	if cfg.DB.Connection != "" {
		m, err := db.NewMongoDB(ctx, cfg.DB, logger)
		if err != nil {
			logger.Warn("MongoDB mirror unavailable, continuing without it", zap.Error(err))
		} else {
			mongoDB = m
			defer func() { _ = mongoDB.Close() }()
			opts = append(opts, app.WithMirror(mongoDB))
		}
	}

	spider := app.NewSpiderApp(cfg, logger, opts...)
	runErr := spider.Run(ctx)

	if mongoDB != nil && spider.RunID() != "" {
		stats, err := mongoDB.GetRunStats(context.WithoutCancel(ctx), spider.RunID())
		if err != nil {
			logger.Warn("Failed to read run stats", zap.Error(err))
		} else {
			logger.Info("Run stats", zap.Any("attempts_by_status", stats))
		}
	}

	return runErr
}

func main() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
