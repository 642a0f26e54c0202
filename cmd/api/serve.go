package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"archie-core-shopify-ingestion/internal/infrastructure/httpapi"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook receiver, queue workers, scheduler and admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to start")
				return err
			}
			defer func() {
				if err := a.close(context.Background()); err != nil {
					logger.Error().Err(err).Msg("Failed to close connections")
				}
			}()
			return a.serve(ctx)
		},
	}
}

// serve runs until ctx is cancelled, then drains the HTTP server and scheduler
func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	n, err := a.ingestion.LoadTenants(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tenants: %w", err)
	}
	if err := a.ingestion.RegisterGlobalJobs(); err != nil {
		return fmt.Errorf("failed to register global jobs: %w", err)
	}
	if cfg.Scheduler.Enabled {
		a.scheduler.Start()
	} else {
		logger.Warn().Msg("Scheduler disabled, only manual imports will run")
	}

	imports := httpapi.NewBackgroundTasks()
	router := httpapi.NewRouter(httpapi.Options{
		WebhookPath:  cfg.Webhook.Path,
		AdminToken:   cfg.Server.AdminToken,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Metrics:      promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
	}, httpapi.Deps{
		Receiver:    a.receiver,
		Coordinator: a.ingestion,
		Jobs:        a.scheduler,
		Events:      a.events,
		Tasks:       imports,
	}, logger)
	if cfg.Server.AdminToken == "" {
		logger.Warn().Msg("ADMIN_TOKEN not set, admin API disabled")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	// event streams would otherwise hold Shutdown open until its deadline
	srv.RegisterOnShutdown(a.events.Close)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.processor.Run(gctx)
	})
	g.Go(func() error {
		logger.Info().
			Str("port", cfg.Server.Port).
			Str("webhookPath", cfg.Webhook.Path).
			Int("tenants", n).
			Msg("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down server: %w", err))
		}
		if err := imports.Drain(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("background imports cancelled: %w", err))
		}
		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop scheduler: %w", err))
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	logger.Info().Msg("Server stopped")
	return err
}
