package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maltedev/encarte-scraper/internal/config"
	"github.com/maltedev/encarte-scraper/internal/logger"
)

var (
	cfg *config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "encartes",
	Short:         "Downloads the weekly flyers of northeastern Brazilian supermarkets.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded

		log = logger.New(cfg.Logging.Level, cfg.Logging.Format)
		slog.SetDefault(log)
		return nil
	},
}
