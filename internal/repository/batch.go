package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
	"trackman-importer/internal/constants"
	"trackman-importer/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// BatchRepository stores accumulation batches in SQLite. Each row is kept as
// a JSON object so the sparse schema survives unchanged.
type BatchRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewBatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *BatchRepository {
	return &BatchRepository{db: sqlDB, logger: logger}
}

func (r *BatchRepository) Append(ctx context.Context, c domain.Collection, batch domain.Batch) error {
	if batch.ReportID == "" {
		return fmt.Errorf("batch for %s has no report id", c)
	}

	table := batch.Table
	if table == nil {
		table = domain.NewTable()
	}
	columns, err := json.Marshal(table.Columns)
	if err != nil {
		return fmt.Errorf("failed to encode columns: %w", err)
	}

	id := batch.ID
	if id == "" {
		id, err = gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate batch id: %w", err)
		}
	}
	fetchedAt := batch.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM batch_rows WHERE batch_id IN (SELECT id FROM batches WHERE collection = ? AND report_id = ?)`,
		c.Name(), batch.ReportID,
	); err != nil {
		return fmt.Errorf("failed to clear rows of %s batch %s: %w", c, batch.ReportID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM batches WHERE collection = ? AND report_id = ?`,
		c.Name(), batch.ReportID,
	); err != nil {
		return fmt.Errorf("failed to clear %s batch %s: %w", c, batch.ReportID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO batches (id, collection, report_id, columns, fetched_at) VALUES (?, ?, ?, ?, ?)`,
		id, c.Name(), batch.ReportID, string(columns), fetchedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert %s batch %s: %w", c, batch.ReportID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO batch_rows (batch_id, row_index, data) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < len(table.Rows); i += constants.DBBatchSize {
		end := min(i+constants.DBBatchSize, len(table.Rows))
		for j, row := range table.Rows[i:end] {
			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("failed to encode row %d: %w", i+j, err)
			}
			if _, err := stmt.ExecContext(ctx, id, i+j, string(data)); err != nil {
				return fmt.Errorf("failed to insert row %d of batch %s: %w", i+j, id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s batch %s: %w", c, batch.ReportID, err)
	}

	r.logger.Debug().
		Str("collection", c.Name()).
		Str("report_id", batch.ReportID).
		Str("batch_id", id).
		Int("rows", len(table.Rows)).
		Msg("batch stored")
	return nil
}

func (r *BatchRepository) List(ctx context.Context, c domain.Collection) ([]domain.Batch, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, report_id, columns, fetched_at FROM batches WHERE collection = ? ORDER BY fetched_at, id`,
		c.Name(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s batches: %w", c, err)
	}

	var batches []domain.Batch
	for rows.Next() {
		var (
			b       domain.Batch
			columns string
		)
		if err := rows.Scan(&b.ID, &b.ReportID, &columns, &b.FetchedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}

		var cols []string
		if err := json.Unmarshal([]byte(columns), &cols); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to decode columns of batch %s: %w", b.ID, err)
		}
		b.Table = &domain.Table{}
		for _, col := range cols {
			b.Table.AddColumn(col)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range batches {
		if err := r.loadRows(ctx, &batches[i]); err != nil {
			return nil, err
		}
	}
	return batches, nil
}

func (r *BatchRepository) loadRows(ctx context.Context, b *domain.Batch) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT data FROM batch_rows WHERE batch_id = ? ORDER BY row_index`,
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to load rows of batch %s: %w", b.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return fmt.Errorf("failed to scan row of batch %s: %w", b.ID, err)
		}
		rec := domain.Record{}
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return fmt.Errorf("failed to decode row of batch %s: %w", b.ID, err)
		}
		b.Table.AddRow(rec)
	}
	return rows.Err()
}
