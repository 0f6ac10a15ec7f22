package store

import (
	"context"
	"database/sql"
	"fmt"
	"trackman-importer/internal/config"
	"trackman-importer/internal/domain"
	"trackman-importer/internal/repository"

	"github.com/rs/zerolog"
)

// Store accumulates the per-fetch tables of each collection. Appending a
// batch for a report that is already stored replaces it.
type Store interface {
	Append(ctx context.Context, c domain.Collection, batch domain.Batch) error
	List(ctx context.Context, c domain.Collection) ([]domain.Batch, error)
}

// New picks the backend named by cfg.Store.
func New(cfg *config.Config, sqlDB *sql.DB, logger zerolog.Logger) (Store, error) {
	switch cfg.Store {
	case config.StoreCSV:
		return NewFileStore(cfg.ProcessedDir(), logger), nil
	case config.StoreSQLite:
		return repository.NewBatchRepository(sqlDB, logger), nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// Tables returns the tables of every batch in list order.
func Tables(batches []domain.Batch) []*domain.Table {
	tables := make([]*domain.Table, 0, len(batches))
	for _, b := range batches {
		tables = append(tables, b.Table)
	}
	return tables
}
