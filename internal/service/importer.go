package service

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"time"
	"trackman-importer/internal/api"
	"trackman-importer/internal/config"
	"trackman-importer/internal/constants"
	"trackman-importer/internal/domain"
	"trackman-importer/internal/extract"
	"trackman-importer/internal/metrics"
	"trackman-importer/internal/repository"
	"trackman-importer/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Ledger reasons, kept short so the status column stays readable.
const (
	reasonRedirect = "Redirect failed"
	reasonNoReport = "No report ID"
	reasonFetch    = "API fetch failed"
	reasonInvalid  = "Invalid report data"
	reasonStore    = "Storing data failed"
)

var urlPattern = regexp.MustCompile(`https?://[^\s,"'<>]+`)

// ExtractURLs finds every http(s) URL in free text, e.g. a pasted chat log or
// an exported URL list.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// ReportSource is the part of the vendor client the importer needs.
type ReportSource interface {
	FollowRedirects(ctx context.Context, rawURL string) (string, error)
	FetchReport(ctx context.Context, reportID string) ([]byte, error)
	ReportURL(reportID string, groups []string) string
}

type Mode int

const (
	// ModeRegular extracts every report with the regular layout.
	ModeRegular Mode = iota
	// ModeCombine extracts combine reports with the combine layout and falls
	// back to the regular layout for anything else.
	ModeCombine
)

// Family is the ledger family a URL submitted in this mode is recorded as.
func (m Mode) Family() domain.Family {
	if m == ModeCombine {
		return domain.FamilyCombine
	}
	return domain.FamilyRegular
}

func modeOf(f domain.Family) Mode {
	if f == domain.FamilyCombine {
		return ModeCombine
	}
	return ModeRegular
}

type ImportOptions struct {
	Mode Mode
	// Force re-imports URLs that are already in the ledger.
	Force bool
}

// Outcome is what happened to one submitted URL.
type Outcome struct {
	URL      string
	ReportID string
	Family   domain.Family
	Status   domain.URLStatus
	Shots    int
	Groups   int
	Skipped  bool
	Err      error
}

type ImportResult struct {
	RunID      string
	Outcomes   []Outcome
	Reconciled []CollectionResult
}

func (r ImportResult) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

type ImportService struct {
	client    ReportSource
	urls      *repository.URLRepository
	store     store.Store
	archive   *store.Archive
	extractor *extract.Extractor
	combiner  *CombineService
	metrics   *metrics.Manager
	cfg       *config.Config
	logger    zerolog.Logger
}

func NewImportService(
	cfg *config.Config,
	client ReportSource,
	urls *repository.URLRepository,
	st store.Store,
	extractor *extract.Extractor,
	combiner *CombineService,
	m *metrics.Manager,
	logger zerolog.Logger,
) *ImportService {
	return &ImportService{
		client:    client,
		urls:      urls,
		store:     st,
		archive:   store.NewArchive(cfg.RawDir()),
		extractor: extractor,
		combiner:  combiner,
		metrics:   m,
		cfg:       cfg,
		logger:    logger,
	}
}

// task is one submitted URL and the report pages fetched for it.
type task struct {
	url     string
	mode    Mode
	pages   []string
	outcome Outcome
}

// fetched is one downloaded report page.
type fetched struct {
	task     int
	page     string
	reportID string
	body     []byte
	reason   string
	err      error
}

// Import records urls in the ledger and imports them. Failures are recorded
// per URL and never stop the remaining URLs. Once everything is stored the
// affected families are reconciled into their canonical files.
func (s *ImportService) Import(ctx context.Context, urls []string, opts ImportOptions) (*ImportResult, error) {
	var todo []*task
	var skipped []Outcome
	for _, u := range dedupe(urls) {
		added, err := s.record(ctx, u, opts)
		if err != nil {
			return nil, err
		}
		if !added && !opts.Force {
			s.logger.Info().Str("url", u).Msg("url already imported, skipping")
			skipped = append(skipped, Outcome{URL: u, Skipped: true})
			continue
		}
		todo = append(todo, &task{url: u, mode: opts.Mode})
	}

	res, err := s.run(ctx, todo)
	if res != nil {
		res.Outcomes = append(skipped, res.Outcomes...)
	}
	return res, err
}

// record adds u to the ledger. A forced re-import of a known URL switches its
// family to the requested mode.
func (s *ImportService) record(ctx context.Context, u string, opts ImportOptions) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	added, err := s.urls.Add(ctx, u, opts.Mode.Family())
	if err != nil || added || !opts.Force {
		return added, err
	}
	return false, s.urls.SetFamily(ctx, u, opts.Mode.Family())
}

// ImportPending imports every URL still marked Pending in the ledger, each in
// the mode it was submitted with.
func (s *ImportService) ImportPending(ctx context.Context) (*ImportResult, error) {
	dbCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	pending, err := s.urls.Pending(dbCtx)
	cancel()
	if err != nil {
		return nil, err
	}
	tasks := make([]*task, 0, len(pending))
	for _, p := range pending {
		tasks = append(tasks, &task{url: p.URL, mode: modeOf(p.Family)})
	}
	s.logger.Info().Int("pending", len(tasks)).Msg("processing pending urls")
	return s.run(ctx, tasks)
}

func (s *ImportService) run(ctx context.Context, tasks []*task) (*ImportResult, error) {
	res := &ImportResult{RunID: uuid.NewString()}
	logger := s.logger.With().Str("run_id", res.RunID).Logger()
	if len(tasks) == 0 {
		return res, nil
	}

	for _, t := range tasks {
		t.outcome = Outcome{URL: t.url}
	}
	s.plan(ctx, tasks, logger)

	pages := s.fetchAll(ctx, tasks, logger)

	families := map[domain.Family]bool{}
	for i, t := range tasks {
		if t.outcome.Err == nil {
			var failures []fetched
			succeeded := 0
			for _, p := range pages {
				if p.task != i {
					continue
				}
				if p.err == nil {
					p.reason, p.err = s.persist(ctx, &t.outcome, p, t.mode, logger)
				}
				if p.err != nil {
					failures = append(failures, p)
					continue
				}
				succeeded++
			}

			switch {
			case succeeded > 0:
				t.outcome.Status = domain.StatusSuccess
				if t.outcome.Family == domain.FamilyCombine {
					t.outcome.Status = domain.StatusSuccessCombine
				}
				families[t.outcome.Family] = true
			case len(failures) > 0 && IsTransient(failures[0].err):
				// left pending so the next pending run retries it
				t.outcome.Err = failures[0].err
				t.outcome.Status = domain.StatusPending
			case len(failures) > 0:
				t.outcome.Err = failures[0].err
				t.outcome.Status = domain.ErrorStatus(failures[0].reason)
			}
		}

		dbCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
		err := s.urls.SetStatus(dbCtx, t.url, t.outcome.Status)
		cancel()
		if err != nil {
			return res, err
		}
		s.metrics.RecordStatus(string(t.outcome.Status))

		ev := logger.Info()
		if t.outcome.Err != nil {
			ev = logger.Warn().Err(t.outcome.Err)
		}
		ev.Str("url", t.url).
			Str("report_id", t.outcome.ReportID).
			Str("status", string(t.outcome.Status)).
			Int("shots", t.outcome.Shots).
			Int("groups", t.outcome.Groups).
			Msg("url processed")
		res.Outcomes = append(res.Outcomes, t.outcome)
	}

	for _, f := range []domain.Family{domain.FamilyRegular, domain.FamilyCombine} {
		if !families[f] {
			continue
		}
		reconciled, err := s.combiner.Combine(ctx, f)
		res.Reconciled = append(res.Reconciled, reconciled...)
		if err != nil {
			return res, err
		}
	}

	logger.Info().
		Int("urls", len(tasks)).
		Int("failed", res.Failed()).
		Msg("import finished")
	return res, nil
}

// plan decides which report pages to fetch per URL. URLs that select more shot
// groups than the batch threshold are split into the base report plus pages
// of at most batch_size groups each.
func (s *ImportService) plan(ctx context.Context, tasks []*task, logger zerolog.Logger) {
	for _, t := range tasks {
		groups := api.ShotGroupIDs(t.url)
		if len(groups) <= s.cfg.BatchThreshold {
			t.pages = []string{t.url}
			continue
		}

		reportID, reason, err := s.resolve(ctx, t.url)
		if err != nil {
			t.outcome.Err = err
			t.outcome.Status = domain.ErrorStatus(reason)
			continue
		}
		t.outcome.ReportID = reportID

		t.pages = []string{s.client.ReportURL(reportID, nil)}
		for chunk := range slices.Chunk(groups, s.cfg.BatchSize) {
			t.pages = append(t.pages, s.client.ReportURL(reportID, chunk))
		}
		logger.Info().
			Str("url", t.url).
			Str("report_id", reportID).
			Int("shot_groups", len(groups)).
			Int("pages", len(t.pages)).
			Msg("splitting multi shot group url")
	}
}

// fetchAll downloads every planned page with at most fetch_concurrency
// requests in flight. Results come back in plan order.
func (s *ImportService) fetchAll(ctx context.Context, tasks []*task, logger zerolog.Logger) []fetched {
	var jobs []fetched
	for i, t := range tasks {
		for _, p := range t.pages {
			jobs = append(jobs, fetched{task: i, page: p})
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FetchConcurrency)
	for i := range jobs {
		g.Go(func() error {
			j := &jobs[i]
			start := time.Now()
			j.reportID, j.body, j.reason, j.err = s.fetch(gCtx, j.page)

			outcome := metrics.OutcomeSuccess
			if j.err != nil {
				outcome = metrics.OutcomeError
				logger.Warn().Err(j.err).Str("url", j.page).Msg("fetch failed")
			}
			s.metrics.RecordFetch(outcome, time.Since(start))
			// per-page failures are reported through the job, never the group
			return nil
		})
	}
	_ = g.Wait()
	return jobs
}

func (s *ImportService) resolve(ctx context.Context, rawURL string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RedirectTimeout)
	defer cancel()

	final, err := s.client.FollowRedirects(ctx, rawURL)
	if err != nil {
		return "", reasonRedirect, err
	}
	reportID, err := api.ReportID(final)
	if err != nil {
		return "", reasonNoReport, err
	}
	return reportID, "", nil
}

func (s *ImportService) fetch(ctx context.Context, page string) (string, []byte, string, error) {
	reportID, reason, err := s.resolve(ctx, page)
	if err != nil {
		return "", nil, reason, err
	}

	ctx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()
	body, err := s.client.FetchReport(ctx, reportID)
	if err != nil {
		return reportID, nil, reasonFetch, err
	}
	return reportID, body, "", nil
}

// persist extracts, archives and appends one fetched page. On failure it
// returns the ledger reason along with the error.
func (s *ImportService) persist(ctx context.Context, o *Outcome, p fetched, mode Mode, logger zerolog.Logger) (string, error) {
	report, err := extract.ParseReport(p.body)
	if err != nil {
		return reasonInvalid, err
	}

	var res extract.Result
	switch {
	case mode == ModeCombine && extract.IsCombine(report):
		res = s.extractor.ExtractCombine(report)
	case mode == ModeCombine:
		logger.Info().Str("report_id", p.reportID).Msg("not a combine report, processing as regular report")
		res = s.extractor.ExtractRegular(report)
	default:
		res = s.extractor.ExtractRegular(report)
	}

	if s.archive.Exists(res.Family, p.reportID) {
		logger.Info().Str("report_id", p.reportID).Msg("report already archived, replacing with new data")
	}
	if _, err := s.archive.Save(res.Family, p.reportID, p.body); err != nil {
		return reasonStore, err
	}

	fetchedAt := time.Now()
	tables := []struct {
		c    domain.Collection
		rows []domain.Record
	}{
		{domain.Collection{Family: res.Family, Entity: domain.EntityShots}, res.Shots},
		{domain.Collection{Family: res.Family, Entity: domain.EntityShotGroups}, res.Groups},
	}
	for _, tbl := range tables {
		if len(tbl.rows) == 0 {
			logger.Info().Str("report_id", p.reportID).Str("collection", tbl.c.Name()).Msg("no records in report")
			continue
		}
		for _, r := range tbl.rows {
			r.Set(domain.FieldReportID, p.reportID)
		}
		batch := domain.Batch{ReportID: p.reportID, FetchedAt: fetchedAt, Table: domain.NewTable(tbl.rows...)}
		if err := s.store.Append(ctx, tbl.c, batch); err != nil {
			return reasonStore, err
		}
		s.metrics.RecordAppend(tbl.c.Name(), len(tbl.rows))
	}

	o.ReportID = p.reportID
	o.Family = res.Family
	o.Shots += len(res.Shots)
	o.Groups += len(res.Groups)
	return "", nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// IsTransient reports whether the vendor was rate limiting or down.
func IsTransient(err error) bool {
	return errors.Is(err, api.ErrRateLimited) || errors.Is(err, api.ErrUnavailable)
}
