package main

import (
	"context"
	"fmt"
	"net/http"

	"keystone-tracker/internal/config"
	"keystone-tracker/internal/constants"
	fxmodules "keystone-tracker/internal/fx"
	"keystone-tracker/internal/middleware"
	"keystone-tracker/internal/server"
	"keystone-tracker/internal/service"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	trackerServer *server.TrackerServer,
	keySvc *service.KeyService,
	cfg *config.Config,
	logger zerolog.Logger,
) error {
	mux := http.NewServeMux()
	trackerServer.Register(mux)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := middleware.RequestID(logger)(c.Handler(mux))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: handler,
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	// keeps the report cache warm between requests; failures only log
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.WarmInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), constants.RequestTimeout)
			defer cancel()

			if _, err := keySvc.Runs(ctx); err != nil {
				logger.Warn().Err(err).Msg("cache warm run failed")
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule warm job: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			scheduler.Start()
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := scheduler.Shutdown(); err != nil {
				logger.Warn().Err(err).Msg("error stopping scheduler")
			}

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})

	return nil
}
