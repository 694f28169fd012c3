package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/schoolhub/lessonshop/internal/catalog"
	"github.com/schoolhub/lessonshop/internal/config"
	"github.com/schoolhub/lessonshop/internal/fallback"
	"github.com/schoolhub/lessonshop/internal/models"
)

// cfg is filled in before any subcommand runs.
var cfg config.App

func NewRootCmd() *cobra.Command {
	var (
		logLevel string
		apiURL   string
	)

	cmd := &cobra.Command{
		Use:   "lessonshop",
		Short: "Storefront for booking after-school lessons",
		Long: `Lessonshop lets parents browse, search and book after-school lessons
against a remote lessons/orders API.

It runs a web storefront with a per-visitor cart and checkout, and offers
CLI commands to list, search, order and export lessons.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("api-url") {
				cfg.APIURL = apiURL
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: config.ParseLogLevel(cfg.LogLevel),
			}))
			slog.SetDefault(logger)

			slog.Debug("Configuration loaded", "api_url", cfg.APIURL, "timeout", cfg.HTTPTimeout)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error); overrides LESSONSHOP_LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Base URL of the lessons API; overrides LESSONSHOP_API_URL")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLessonsCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newOrderCmd())
	cmd.AddCommand(newExportCmd())

	return cmd
}

func newClient() *catalog.Client {
	return catalog.NewClient(cfg.APIURL, cfg.HTTPTimeout)
}

// startingLessons is the catalog shown before the API answers: the file
// named by path (or LESSONSHOP_FALLBACK_FILE) when it loads, the built-in
// list otherwise.
func startingLessons(path string) []models.Lesson {
	if path == "" {
		path = cfg.FallbackFile
	}
	if path == "" {
		return fallback.Lessons()
	}

	start := time.Now()
	lessons, err := fallback.NewLoader(path).Load()
	if err != nil {
		slog.Warn("Failed to load fallback catalog; using built-in lessons", "path", path, "err", err)
		return fallback.Lessons()
	}
	slog.Info("Fallback catalog loaded", "path", path, "lessons", len(lessons), "duration", time.Since(start))
	return lessons
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
