// Command fetch crawls page sources from the Crom API into a local SQLite
// database and exports them to results.json.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"style_spider/internal/config"
	"style_spider/internal/crom"
	"style_spider/internal/db"
	"style_spider/internal/logging"
)

func NewRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:           "fetch",
		Short:         "Crawl page sources from the Crom API",
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

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the configuration file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	return cmd
}

func run(ctx context.Context, cfg *config.SpiderConfig, logger *zap.Logger) (err error) {
	store, err := db.OpenCrawlDB(ctx, cfg.Crom.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if store.Fresh() {
		logger.Info("No previous crawler state, starting fresh")
	} else {
		logger.Info("Loaded previous crawler state")
	}

	client := crom.NewClient(cfg.Crom.Endpoint, logger,
		crom.WithRequestTimeout(cfg.Logic.Timeout()),
		crom.WithUserAgent(cfg.Logic.UserAgent),
	)
	crawler := crom.NewCrawler(client, store, cfg.Crom.CromBaseURLs(), cfg.Crom.Retries, logger)
	if err := crawler.Resume(ctx); err != nil {
		return err
	}

	fetchErr := crawler.FetchAll(ctx)

	// state and export must survive an interrupted crawl
	saveCtx := context.WithoutCancel(ctx)
	if err := crawler.Close(saveCtx); err != nil {
		return errors.Join(fetchErr, err)
	}
	n, err := crom.Export(saveCtx, store, cfg.Report.ResultsPath, logger)
	if err != nil {
		return errors.Join(fetchErr, err)
	}
	logger.Info("Exported pages", zap.Int("count", n), zap.String("path", cfg.Report.ResultsPath))

	if errors.Is(fetchErr, context.Canceled) {
		logger.Warn("Interrupted, crawler state saved")
		return nil
	}
	return fetchErr
}

func main() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
