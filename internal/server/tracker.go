package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"trackman-importer/internal/constants"
	"trackman-importer/internal/domain"
	"trackman-importer/internal/repository"
	"trackman-importer/internal/service"
	"trackman-importer/internal/stats"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServicePath = "/trackman.v1.TrackerService/"

	ListShotsProcedure      = ServicePath + "ListShots"
	ListShotGroupsProcedure = ServicePath + "ListShotGroups"
	ReconcileProcedure      = ServicePath + "Reconcile"
	SummaryProcedure        = ServicePath + "Summary"
	ListURLsProcedure       = ServicePath + "ListURLs"
)

type (
	Request  = connect.Request[structpb.Struct]
	Response = connect.Response[structpb.Struct]
)

// TrackerServer serves the canonical tables, reconciliation and statistics
// over connect. Messages are free-form structs since rows have no fixed
// schema.
type TrackerServer struct {
	combiner *service.CombineService
	summary  *service.SummaryService
	urls     *repository.URLRepository
	logger   zerolog.Logger
}

func NewTrackerServer(combiner *service.CombineService, summary *service.SummaryService, urls *repository.URLRepository, logger zerolog.Logger) *TrackerServer {
	return &TrackerServer{combiner: combiner, summary: summary, urls: urls, logger: logger}
}

// Handler returns the path prefix to mount and the handler serving every
// procedure below it.
func (s *TrackerServer) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(ListShotsProcedure, connect.NewUnaryHandler(ListShotsProcedure, s.ListShots, opts...))
	mux.Handle(ListShotGroupsProcedure, connect.NewUnaryHandler(ListShotGroupsProcedure, s.ListShotGroups, opts...))
	mux.Handle(ReconcileProcedure, connect.NewUnaryHandler(ReconcileProcedure, s.Reconcile, opts...))
	mux.Handle(SummaryProcedure, connect.NewUnaryHandler(SummaryProcedure, s.Summary, opts...))
	mux.Handle(ListURLsProcedure, connect.NewUnaryHandler(ListURLsProcedure, s.ListURLs, opts...))
	return ServicePath, mux
}

// extensionsField holds, per listed row, every column outside the
// collection's known schema, e.g. Measurement_* values.
const extensionsField = "extensions"

// ListShots returns canonical shots. Request fields: family (regular or
// combine), club, limit.
func (s *TrackerServer) ListShots(ctx context.Context, req *Request) (*Response, error) {
	return s.list(ctx, req, domain.EntityShots)
}

func (s *TrackerServer) ListShotGroups(ctx context.Context, req *Request) (*Response, error) {
	return s.list(ctx, req, domain.EntityShotGroups)
}

func (s *TrackerServer) list(ctx context.Context, req *Request, entity domain.Entity) (*Response, error) {
	family, err := familyOf(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	c := domain.Collection{Family: family, Entity: entity}

	t, err := s.combiner.Canonical(c)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	rows := t.Rows
	if club := stringField(req.Msg, "club"); club != "" {
		rows = rowsWithClub(rows, club)
	}
	total := len(rows)

	limit := int(numberField(req.Msg, "limit"))
	if limit <= 0 || limit > constants.ListRowLimit {
		limit = constants.ListRowLimit
	}
	rows = rows[:min(limit, len(rows))]

	schema := domain.SchemaFor(c)
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		ext := schema.Extensions(r)
		m := make(map[string]any, len(r)-len(ext)+1)
		for k, v := range r {
			if _, isExt := ext[k]; !isExt {
				m[k] = v
			}
		}
		extensions := make(map[string]any, len(ext))
		for k, v := range ext {
			extensions[k] = v
		}
		m[extensionsField] = extensions
		out = append(out, m)
	}
	columns := make([]any, 0, len(t.Columns))
	for _, col := range t.Columns {
		columns = append(columns, col)
	}

	s.logger.Debug().
		Str("collection", c.Name()).
		Int("total", total).
		Int("returned", len(out)).
		Msg("listing canonical rows")

	return respond(map[string]any{
		"collection": c.Name(),
		"columns":    columns,
		"rows":       out,
		"total":      total,
	})
}

func rowsWithClub(rows []domain.Record, club string) []domain.Record {
	var out []domain.Record
	for _, r := range rows {
		for _, f := range []string{domain.FieldStrokeClub, domain.FieldGroupClub, domain.FieldClub} {
			if v, ok := r.Value(f); ok {
				if v == club {
					out = append(out, r)
				}
				break
			}
		}
	}
	return out
}

// Reconcile rebuilds the canonical files of one family, or of both when no
// family is given.
func (s *TrackerServer) Reconcile(ctx context.Context, req *Request) (*Response, error) {
	var (
		results []service.CollectionResult
		err     error
	)
	if stringField(req.Msg, "family") == "" {
		results, err = s.combiner.CombineAll(ctx)
	} else {
		family, ferr := familyOf(req.Msg)
		if ferr != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, ferr)
		}
		results, err = s.combiner.Combine(ctx, family)
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out := make([]any, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]any{
			"collection":     r.Collection.Name(),
			"path":           r.Path,
			"batches":        r.Batches,
			"before":         r.Result.Before,
			"after":          r.Result.After,
			"removed":        r.Result.Removed(),
			"duplicate_keys": len(r.Result.Collisions),
			"skipped":        r.Result.Skipped,
			"skip_reason":    r.Result.SkipReason,
		})
	}
	return respond(map[string]any{"collections": out})
}

// Summary returns per-club statistics, or per-target statistics for combine
// data when combine is true.
func (s *TrackerServer) Summary(ctx context.Context, req *Request) (*Response, error) {
	var (
		groups []stats.Group
		err    error
	)
	if boolField(req.Msg, "combine") {
		groups, err = s.summary.Targets()
	} else {
		groups, err = s.summary.Clubs(stringField(req.Msg, "club"))
	}
	switch {
	case errors.Is(err, stats.ErrNoData):
		return nil, connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, stats.ErrNoClubColumn), errors.Is(err, stats.ErrNoTargetColumn):
		return nil, connect.NewError(connect.CodeFailedPrecondition, err)
	case err != nil:
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out := make([]any, 0, len(groups))
	for _, g := range groups {
		metrics := make([]any, 0, len(g.Metrics))
		for _, m := range g.Metrics {
			metrics = append(metrics, map[string]any{
				"metric": m.Metric,
				"count":  m.Count,
				"mean":   m.Mean,
				"std":    m.Std,
				"min":    m.Min,
				"max":    m.Max,
			})
		}
		clubs := make(map[string]any, len(g.Clubs))
		for k, v := range g.Clubs {
			clubs[k] = v
		}
		out = append(out, map[string]any{
			"key":     g.Key,
			"shots":   g.Shots,
			"metrics": metrics,
			"clubs":   clubs,
		})
	}
	return respond(map[string]any{"groups": out})
}

// ListURLs returns the import ledger, optionally only the pending entries.
func (s *TrackerServer) ListURLs(ctx context.Context, req *Request) (*Response, error) {
	var (
		urls []domain.ReportURL
		err  error
	)
	if boolField(req.Msg, "pending") {
		urls, err = s.urls.Pending(ctx)
	} else {
		urls, err = s.urls.List(ctx)
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out := make([]any, 0, len(urls))
	for _, u := range urls {
		out = append(out, map[string]any{
			"url":         u.URL,
			"status":      string(u.Status),
			"family":      string(u.Family),
			"imported_at": u.ImportedAt.Format(time.RFC3339),
			"updated_at":  u.UpdatedAt.Format(time.RFC3339),
		})
	}
	return respond(map[string]any{"urls": out})
}

func respond(m map[string]any) (*Response, error) {
	msg, err := structpb.NewStruct(m)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to encode response: %w", err))
	}
	return connect.NewResponse(msg), nil
}

func familyOf(msg *structpb.Struct) (domain.Family, error) {
	switch f := domain.Family(stringField(msg, "family")); f {
	case "", domain.FamilyRegular:
		return domain.FamilyRegular, nil
	case domain.FamilyCombine:
		return domain.FamilyCombine, nil
	default:
		return "", fmt.Errorf("unknown family %q", f)
	}
}

func stringField(msg *structpb.Struct, name string) string {
	return msg.GetFields()[name].GetStringValue()
}

func numberField(msg *structpb.Struct, name string) float64 {
	return msg.GetFields()[name].GetNumberValue()
}

func boolField(msg *structpb.Struct, name string) bool {
	return msg.GetFields()[name].GetBoolValue()
}
