package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"trackman-importer/internal/config"
	"trackman-importer/internal/domain"
	"trackman-importer/internal/metrics"
	"trackman-importer/internal/reconcile"
	"trackman-importer/internal/store"

	"github.com/rs/zerolog"
)

// CollectionResult is the outcome of reconciling one collection into its
// canonical file.
type CollectionResult struct {
	Collection domain.Collection
	Batches    int
	Path       string
	Result     reconcile.Result
}

// CombineService rebuilds the canonical tables from the accumulation store.
type CombineService struct {
	store      store.Store
	reconciler *reconcile.Reconciler
	outDir     string
	metrics    *metrics.Manager
	logger     zerolog.Logger
}

func NewCombineService(cfg *config.Config, st store.Store, reconciler *reconcile.Reconciler, m *metrics.Manager, logger zerolog.Logger) *CombineService {
	return &CombineService{
		store:      st,
		reconciler: reconciler,
		outDir:     cfg.ProcessedDir(),
		metrics:    m,
		logger:     logger,
	}
}

func (s *CombineService) Path(c domain.Collection) string {
	return filepath.Join(s.outDir, c.CanonicalFile())
}

// Combine reconciles both collections of family and overwrites their
// canonical files. Collections with no batches are left alone.
func (s *CombineService) Combine(ctx context.Context, family domain.Family) ([]CollectionResult, error) {
	var results []CollectionResult
	for _, c := range domain.CollectionsFor(family) {
		res, err := s.CombineCollection(ctx, c)
		if err != nil {
			return results, err
		}
		if res.Batches > 0 {
			results = append(results, res)
		}
	}
	return results, nil
}

// CombineCollection reconciles one collection and overwrites its canonical
// file. Without batches nothing is written and Batches is zero.
func (s *CombineService) CombineCollection(ctx context.Context, c domain.Collection) (CollectionResult, error) {
	res, err := s.reconcile(ctx, c)
	if err != nil {
		return res, err
	}
	if res.Batches == 0 {
		s.logger.Info().Str("collection", c.Name()).Msg("no batches to combine")
		return res, nil
	}

	if err := store.WriteTable(res.Path, res.Result.Table); err != nil {
		return res, fmt.Errorf("failed to write %s: %w", res.Path, err)
	}
	s.metrics.RecordReconcile(c.Name(), res.Result.Removed(), res.Result.After)
	s.logger.Info().
		Str("collection", c.Name()).
		Str("path", res.Path).
		Int("rows", res.Result.After).
		Msg("canonical table written")
	return res, nil
}

func (s *CombineService) CombineAll(ctx context.Context) ([]CollectionResult, error) {
	var all []CollectionResult
	for _, f := range []domain.Family{domain.FamilyRegular, domain.FamilyCombine} {
		res, err := s.Combine(ctx, f)
		all = append(all, res...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// Preview reconciles c in memory without writing anything.
func (s *CombineService) Preview(ctx context.Context, c domain.Collection) (CollectionResult, error) {
	return s.reconcile(ctx, c)
}

func (s *CombineService) reconcile(ctx context.Context, c domain.Collection) (CollectionResult, error) {
	batches, err := s.store.List(ctx, c)
	if err != nil {
		return CollectionResult{}, fmt.Errorf("failed to list %s: %w", c, err)
	}
	return CollectionResult{
		Collection: c,
		Batches:    len(batches),
		Path:       s.Path(c),
		Result:     s.reconciler.Reconcile(c, store.Tables(batches)...),
	}, nil
}

// Canonical loads the last written canonical table of c. A collection that was
// never combined yields an empty table.
func (s *CombineService) Canonical(c domain.Collection) (*domain.Table, error) {
	t, err := store.ReadTable(s.Path(c))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.CanonicalFile(), err)
	}
	return t, nil
}
