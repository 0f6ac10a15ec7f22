package fx

import (
	"context"
	"database/sql"
	"trackman-importer/internal/api"
	"trackman-importer/internal/config"
	"trackman-importer/internal/database"
	"trackman-importer/internal/extract"
	"trackman-importer/internal/logger"
	"trackman-importer/internal/metrics"
	"trackman-importer/internal/reconcile"
	"trackman-importer/internal/repository"
	"trackman-importer/internal/server"
	"trackman-importer/internal/service"
	"trackman-importer/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// ProvideMetrics registers the app metrics next to the Go runtime and process
// collectors, so /metrics shows both.
func ProvideMetrics() *metrics.Manager {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.NewManager(metrics.WithRegistry(reg))
}

// CloseDatabase closes the connection pool when the app stops.
func CloseDatabase(lc fx.Lifecycle, db *sql.DB, logger zerolog.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			return nil
		},
	})
}

var Module = fx.Options(
	logger.Module,
	fx.Provide(config.Load),
	fx.Invoke(config.LogLoaded),
	fx.Provide(database.New),
	fx.Invoke(CloseDatabase),
	fx.Provide(ProvideMetrics),
	// storage
	fx.Provide(repository.NewURLRepository),
	fx.Provide(store.New),
	// api client
	fx.Provide(fx.Annotate(api.NewTrackmanClient, fx.As(new(service.ReportSource)))),
	// svc
	fx.Provide(extract.New),
	fx.Provide(reconcile.New),
	fx.Provide(service.NewCombineService),
	fx.Provide(service.NewImportService),
	fx.Provide(service.NewSummaryService),
	// server
	fx.Provide(server.NewTrackerServer),
)
