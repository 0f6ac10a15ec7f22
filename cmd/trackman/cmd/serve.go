package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"trackman-importer/internal/config"
	"trackman-importer/internal/constants"
	fxmodules "trackman-importer/internal/fx"
	"trackman-importer/internal/metrics"
	"trackman-importer/internal/middleware"
	"trackman-importer/internal/server"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the canonical tables, reconciliation and statistics over HTTP.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			fxmodules.Module,
			fx.NopLogger,
			fx.Invoke(runServer),
		)
		if err := app.Err(); err != nil {
			return err
		}
		if err := app.Start(cmd.Context()); err != nil {
			return err
		}

		var exitCode int
		select {
		case <-cmd.Context().Done():
		case sig := <-app.Wait():
			exitCode = sig.ExitCode
		}

		stopCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := app.Stop(stopCtx); err != nil {
			return err
		}
		if exitCode != 0 {
			return fmt.Errorf("server exited with code %d", exitCode)
		}
		return nil
	},
}

func newHandler(tracker *server.TrackerServer, m *metrics.Manager, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(tracker.Handler())
	mux.Handle("/metrics", m.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})

	return middleware.Recover(logger)(middleware.RequestID(logger)(c.Handler(mux)))
}

func runServer(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	tracker *server.TrackerServer,
	m *metrics.Manager,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           newHandler(tracker, m, logger),
		ReadHeaderTimeout: constants.RequestTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error().Err(err).Msg("server failed")
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
