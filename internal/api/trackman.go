package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"trackman-importer/internal/config"
	"trackman-importer/internal/constants"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const reportPath = "/api/reports/getreport"

var (
	ErrRateLimited      = errors.New("trackman: rate limited")
	ErrUnavailable      = errors.New("trackman: service unavailable")
	ErrNoReportID       = errors.New("no report id in url")
	ErrTooManyRedirects = errors.New("too many redirects")
)

// APIError is a non-200 answer from the report API.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s returned %d", e.Endpoint, e.StatusCode)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == fasthttp.StatusTooManyRequests
	case ErrUnavailable:
		return e.StatusCode >= 500
	}
	return false
}

type TrackmanClient struct {
	apiBaseURL    string
	reportBaseURL string
	userAgent     string
	maxRedirects  int
	client        *fasthttp.Client
	logger        zerolog.Logger
}

func NewTrackmanClient(cfg *config.Config, logger zerolog.Logger) *TrackmanClient {
	return &TrackmanClient{
		apiBaseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		reportBaseURL: cfg.ReportBaseURL,
		userAgent:     cfg.UserAgent,
		maxRedirects:  cfg.MaxRedirects,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
			MaxResponseBodySize: constants.MaxResponseBodySize,
		},
		logger: logger,
	}
}

// FollowRedirects resolves a share link to the URL it finally lands on. The
// status of the last hop does not matter, only where it points.
func (c *TrackmanClient) FollowRedirects(ctx context.Context, rawURL string) (string, error) {
	current := rawURL
	for hop := 0; ; hop++ {
		if hop > c.maxRedirects {
			return "", fmt.Errorf("%w following %s", ErrTooManyRedirects, rawURL)
		}

		location, err := c.locate(ctx, current)
		if err != nil {
			return "", fmt.Errorf("failed to follow %s: %w", current, err)
		}
		if location == "" {
			c.logger.Debug().Str("url", rawURL).Str("final_url", current).Int("hops", hop).Msg("redirects followed")
			return current, nil
		}

		next, err := resolve(current, location)
		if err != nil {
			return "", err
		}
		current = next
	}
}

// locate issues one GET without following redirects and returns the Location
// of a redirect answer.
func (c *TrackmanClient) locate(ctx context.Context, target string) (string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(target)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetUserAgent(c.userAgent)

	if err := c.do(ctx, req, resp, constants.RedirectTimeout); err != nil {
		return "", err
	}
	if !fasthttp.StatusCodeIsRedirect(resp.StatusCode()) {
		return "", nil
	}
	return string(resp.Header.Peek(fasthttp.HeaderLocation)), nil
}

func resolve(base, location string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", base, err)
	}
	l, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid redirect location %q: %w", location, err)
	}
	return b.ResolveReference(l).String(), nil
}

// FetchReport posts the report id to the report API and returns the raw JSON
// document.
func (c *TrackmanClient) FetchReport(ctx context.Context, reportID string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"reportId": reportID})
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	endpoint := c.apiBaseURL + reportPath
	req.SetRequestURI(endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.SetUserAgent(c.userAgent)
	c.setBrowserHeaders(req)
	req.SetBody(payload)

	if err := c.do(ctx, req, resp, constants.ExternalAPITimeout); err != nil {
		return nil, fmt.Errorf("failed to fetch report %s: %w", reportID, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		apiErr := &APIError{Endpoint: reportPath, StatusCode: resp.StatusCode(), Body: truncate(string(resp.Body()), 512)}
		c.logger.Warn().
			Str("report_id", reportID).
			Int("status", apiErr.StatusCode).
			Str("body", apiErr.Body).
			Msg("report API error")
		return nil, apiErr
	}

	body := append([]byte(nil), resp.Body()...)
	c.logger.Debug().Str("report_id", reportID).Int("bytes", len(body)).Msg("report fetched")
	return body, nil
}

func (c *TrackmanClient) setBrowserHeaders(req *fasthttp.Request) {
	origin := strings.TrimRight(c.reportBaseURL, "/")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", origin+"/")
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-site")
}

func (c *TrackmanClient) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response, fallback time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		return c.client.DoDeadline(req, resp, deadline)
	}
	return c.client.DoTimeout(req, resp, fallback)
}

// ReportURL builds the report page address for reportID, optionally narrowed
// to the given shot groups.
func (c *TrackmanClient) ReportURL(reportID string, groups []string) string {
	q := url.Values{}
	q.Set("r", reportID)
	for _, g := range groups {
		q.Add("sgos[]", g)
	}
	base := c.reportBaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + "?" + q.Encode()
}

// ReportID reads the report identifier from the ReportId or r query
// parameter.
func ReportID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	q := u.Query()
	for _, param := range []string{"ReportId", "r"} {
		if v := q.Get(param); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoReportID, rawURL)
}

// ShotGroupIDs returns the ids of the sgos[] parameters in URL order.
func ShotGroupIDs(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	var ids []string
	for _, v := range u.Query()["sgos[]"] {
		if v != "" {
			ids = append(ids, v)
		}
	}
	return ids
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
