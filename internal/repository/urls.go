package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"trackman-importer/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// URLRepository is the ledger of every report URL that was submitted and the
// outcome of its last import.
type URLRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewURLRepository(sqlDB *sql.DB, logger zerolog.Logger) *URLRepository {
	return &URLRepository{db: sqlDB, logger: logger}
}

// Add records url as Pending, to be imported as family. It reports false when
// the URL was already known, in which case its entry is left untouched.
func (r *URLRepository) Add(ctx context.Context, url string, family domain.Family) (bool, error) {
	id, err := gonanoid.New()
	if err != nil {
		return false, fmt.Errorf("failed to generate url id: %w", err)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO report_urls (id, url, status, family, imported_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (url) DO NOTHING`,
		id, url, string(domain.StatusPending), string(family), now, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add url: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to add url: %w", err)
	}

	r.logger.Debug().Str("url", url).Bool("added", n > 0).Msg("url recorded")
	return n > 0, nil
}

func (r *URLRepository) SetStatus(ctx context.Context, url string, status domain.URLStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE report_urls SET status = ?, updated_at = ? WHERE url = ?`,
		string(status), time.Now().UTC(), url,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("url", url).Msg("failed to set url status")
		return fmt.Errorf("failed to set status of %s: %w", url, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("url %s is not in the ledger", url)
	}

	r.logger.Debug().Str("url", url).Str("status", string(status)).Msg("url status updated")
	return nil
}

// SetFamily changes the family a known URL is imported as, e.g. when a
// regular link is re-imported as a combine test.
func (r *URLRepository) SetFamily(ctx context.Context, url string, family domain.Family) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE report_urls SET family = ?, updated_at = ? WHERE url = ?`,
		string(family), time.Now().UTC(), url,
	)
	if err != nil {
		return fmt.Errorf("failed to set family of %s: %w", url, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("url %s is not in the ledger", url)
	}
	return nil
}

func (r *URLRepository) Get(ctx context.Context, url string) (*domain.ReportURL, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, url, status, family, imported_at, updated_at FROM report_urls WHERE url = ?`,
		url,
	)
	u, err := scanURL(row)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *URLRepository) Exists(ctx context.Context, url string) (bool, error) {
	_, err := r.Get(ctx, url)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", url, err)
	}
	return true, nil
}

func (r *URLRepository) Pending(ctx context.Context) ([]domain.ReportURL, error) {
	return r.query(ctx,
		`SELECT id, url, status, family, imported_at, updated_at FROM report_urls WHERE status = ? ORDER BY imported_at, id`,
		string(domain.StatusPending),
	)
}

func (r *URLRepository) List(ctx context.Context) ([]domain.ReportURL, error) {
	return r.query(ctx, `SELECT id, url, status, family, imported_at, updated_at FROM report_urls ORDER BY imported_at, id`)
}

func (r *URLRepository) query(ctx context.Context, q string, args ...any) ([]domain.ReportURL, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query urls: %w", err)
	}
	defer rows.Close()

	var urls []domain.ReportURL
	for rows.Next() {
		u, err := scanURL(rows)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanURL(s scanner) (domain.ReportURL, error) {
	var (
		u      domain.ReportURL
		status string
		family string
	)
	if err := s.Scan(&u.ID, &u.URL, &status, &family, &u.ImportedAt, &u.UpdatedAt); err != nil {
		return domain.ReportURL{}, err
	}
	u.Status = domain.URLStatus(status)
	u.Family = domain.Family(family)
	return u, nil
}
