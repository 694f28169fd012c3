package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/schoolhub/lessonshop/internal/handlers"
	"github.com/schoolhub/lessonshop/internal/storefront"
)

func newServeCmd() *cobra.Command {
	var (
		port         string
		fallbackFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web storefront",
		Long: `Starts the lessons storefront on the specified port.

Every visitor gets their own catalog view, cart and checkout form. The
catalog is fetched from the lessons API when a visitor arrives; until it
answers the built-in (or fallback file) lessons are shown.`,
		Example: `  # Start server on default port 8888
  lessonshop serve

  # Start server on custom port against a remote API
  lessonshop serve --port 3001 --api-url https://lessons.example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			ctx := cmd.Context()

			client := newClient()
			lessons := startingLessons(fallbackFile)
			handler := handlers.New(func() *storefront.Session {
				return storefront.NewSession(ctx, client, storefront.Options{
					SearchWindow: cfg.SearchDebounce,
					Lessons:      lessons,
				})
			}, cfg.StaticDir)
			defer handler.Close()

			// Set up routes
			mux := http.NewServeMux()
			handler.Routes(mux)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + cfg.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			go expireSessions(ctx, handler, cfg.SessionTTL)

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Storefront available", "addr", addr, "url", "http://localhost"+addr, "api", cfg.APIURL)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-ctx.Done():
				slog.Info("Shutting down server...")
				// Give in-flight checkouts 5 seconds to finish
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on; overrides LESSONSHOP_PORT")
	cmd.Flags().StringVar(&fallbackFile, "fallback", "", "Catalog file (.yaml, .json, .jsonl, .parquet) shown until the API answers")

	return cmd
}

// expireSessions drops idle storefronts until ctx is done.
func expireSessions(ctx context.Context, handler *handlers.Handler, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := min(ttl/2, time.Minute)
	if interval <= 0 {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			handler.ExpireSessions(ttl)
		}
	}
}
