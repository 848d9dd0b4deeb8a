package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/maltedev/encarte-scraper/internal/api"
	"github.com/maltedev/encarte-scraper/internal/jobs"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the run API and executes queued runs one at a time.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := buildStack(ctx, cfg, log, true)
		if err != nil {
			return err
		}
		defer st.Close()

		manager := jobs.NewManager(st.runner, log)
		workerDone := make(chan struct{})
		go func() {
			defer close(workerDone)
			manager.StartWorker(ctx)
		}()

		handlers := api.NewHandlers(manager, log, st.api...)
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: api.NewRouter(handlers),
		}

		serveErr := make(chan error, 1)
		go func() {
			log.Info("starting server", "port", cfg.Server.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				manager.Close()
				return fmt.Errorf("server failed: %w", err)
			}
		case <-ctx.Done():
		}

		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server forced to shutdown", "error", err)
		}

		manager.Close()
		<-workerDone
		log.Info("server stopped")
		return nil
	},
}
