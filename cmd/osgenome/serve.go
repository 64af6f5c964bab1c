package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/frostyslav/OSGenome/internal/api"
	"github.com/frostyslav/OSGenome/internal/cache"
	"github.com/frostyslav/OSGenome/internal/dataset"
)

func newServeCmd(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the enriched results over HTTP",

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), app)
		},
	}
}

func runServe(parent context.Context, app *application) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := cache.New(cache.Config{
		MaxEntries: app.cfg.Cache.MaxEntries,
		TTL:        app.cfg.CacheTTL(),
	})
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	loader, err := dataset.NewLoader(app.cfg.Data.Dir, store, app.logger.Named("dataset"))
	if err != nil {
		return fmt.Errorf("init dataset loader: %w", err)
	}

	apiServer := api.NewServer(loader, store, app.cfg, app.logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		app.logger.Info("http server started", zap.Int("port", app.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	app.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	app.logger.Info("shutdown complete")
	return nil
}
