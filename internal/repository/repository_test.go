package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
	"trackman-importer/internal/config"
	"trackman-importer/internal/database"
	"trackman-importer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "trackman.db")
	db, err := database.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBatchRepositoryRoundTripsSparseRows(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchRepository(openDB(t), zerolog.Nop())

	table := domain.NewTable(
		domain.Record{"StrokeId": "s1", "Measurement_ClubSpeed": "40.1"},
		domain.Record{"StrokeId": "s2", "Measurement_SpinRate": "2500"},
	)
	require.NoError(t, repo.Append(ctx, domain.RegularShots, domain.Batch{ReportID: "r1", Table: table}))

	batches, err := repo.List(ctx, domain.RegularShots)
	require.NoError(t, err)
	require.Len(t, batches, 1)

	got := batches[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "r1", got.ReportID)
	assert.Equal(t, table.Columns, got.Table.Columns)
	assert.Equal(t, table.Rows, got.Table.Rows)

	_, ok := got.Table.Rows[1]["Measurement_ClubSpeed"]
	assert.False(t, ok)
}

func TestBatchRepositoryReplacesReport(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchRepository(openDB(t), zerolog.Nop())

	first := domain.NewTable(domain.Record{"StrokeId": "s1"}, domain.Record{"StrokeId": "s2"})
	second := domain.NewTable(domain.Record{"StrokeId": "s3"})
	require.NoError(t, repo.Append(ctx, domain.RegularShots, domain.Batch{ReportID: "r1", Table: first}))
	require.NoError(t, repo.Append(ctx, domain.RegularShots, domain.Batch{ReportID: "r1", Table: second}))

	batches, err := repo.List(ctx, domain.RegularShots)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, second.Rows, batches[0].Table.Rows)
}

func TestBatchRepositoryKeepsCollectionsApart(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchRepository(openDB(t), zerolog.Nop())

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Append(ctx, domain.RegularShots, domain.Batch{
		ReportID: "r2", FetchedAt: base.Add(time.Hour), Table: domain.NewTable(domain.Record{"StrokeId": "b"}),
	}))
	require.NoError(t, repo.Append(ctx, domain.RegularShots, domain.Batch{
		ReportID: "r1", FetchedAt: base, Table: domain.NewTable(domain.Record{"StrokeId": "a"}),
	}))
	require.NoError(t, repo.Append(ctx, domain.CombineShots, domain.Batch{
		ReportID: "r1", FetchedAt: base, Table: domain.NewTable(domain.Record{"StrokeId": "c"}),
	}))

	batches, err := repo.List(ctx, domain.RegularShots)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "r1", batches[0].ReportID)
	assert.Equal(t, "r2", batches[1].ReportID)

	combine, err := repo.List(ctx, domain.CombineShots)
	require.NoError(t, err)
	require.Len(t, combine, 1)
	assert.Equal(t, "c", combine[0].Table.Rows[0]["StrokeId"])
}

func TestURLRepositoryLedger(t *testing.T) {
	ctx := context.Background()
	repo := NewURLRepository(openDB(t), zerolog.Nop())

	added, err := repo.Add(ctx, "https://example.com/a", domain.FamilyRegular)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.Add(ctx, "https://example.com/a", domain.FamilyRegular)
	require.NoError(t, err)
	assert.False(t, added)

	_, err = repo.Add(ctx, "https://example.com/b", domain.FamilyCombine)
	require.NoError(t, err)

	exists, err := repo.Exists(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, "https://example.com/missing")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.SetStatus(ctx, "https://example.com/a", domain.ErrorStatus("No report ID")))

	pending, err := repo.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "https://example.com/b", pending[0].URL)
	assert.Equal(t, domain.FamilyCombine, pending[0].Family)

	u, err := repo.Get(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, domain.URLStatus("Error: No report ID"), u.Status)
	assert.Equal(t, domain.FamilyRegular, u.Family)

	require.NoError(t, repo.SetFamily(ctx, "https://example.com/a", domain.FamilyCombine))
	u, err = repo.Get(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, domain.FamilyCombine, u.Family)
	assert.Error(t, repo.SetFamily(ctx, "https://example.com/missing", domain.FamilyRegular))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.Error(t, repo.SetStatus(ctx, "https://example.com/missing", domain.StatusSuccess))
}
