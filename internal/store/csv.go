package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"trackman-importer/internal/domain"

	"github.com/rs/zerolog"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// FileStore keeps one CSV file per batch, named <collection>_<report>.csv.
type FileStore struct {
	dir    string
	logger zerolog.Logger
}

func NewFileStore(dir string, logger zerolog.Logger) *FileStore {
	return &FileStore{dir: dir, logger: logger}
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) BatchPath(c domain.Collection, reportID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.csv", c.Name(), SafeName(reportID)))
}

func (s *FileStore) Append(ctx context.Context, c domain.Collection, batch domain.Batch) error {
	if batch.ReportID == "" {
		return fmt.Errorf("batch for %s has no report id", c)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.BatchPath(c, batch.ReportID)
	if err := WriteTable(path, batch.Table); err != nil {
		return fmt.Errorf("failed to write %s batch %s: %w", c, batch.ReportID, err)
	}

	s.logger.Debug().
		Str("collection", c.Name()).
		Str("report_id", batch.ReportID).
		Int("rows", batch.Table.Len()).
		Str("path", path).
		Msg("batch written")
	return nil
}

// List reads every batch file of c, oldest first. Files that cannot be parsed
// are logged and skipped.
func (s *FileStore) List(ctx context.Context, c domain.Collection) ([]domain.Batch, error) {
	prefix := c.Name() + "_"
	paths, err := filepath.Glob(filepath.Join(s.dir, prefix+"*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s batches: %w", c, err)
	}

	var batches []domain.Batch
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(path)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable batch")
			continue
		}
		table, err := ReadTable(path)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable batch")
			continue
		}

		name := strings.TrimSuffix(filepath.Base(path), ".csv")
		reportID, err := ParseSafeName(strings.TrimPrefix(name, prefix))
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("skipping batch with malformed name")
			continue
		}
		batches = append(batches, domain.Batch{
			ID:        name,
			ReportID:  reportID,
			FetchedAt: info.ModTime(),
			Table:     table,
		})
	}

	slices.SortStableFunc(batches, func(a, b domain.Batch) int {
		if n := a.FetchedAt.Compare(b.FetchedAt); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})
	return batches, nil
}

// SafeName maps a report id onto a string usable in a file name. Bytes
// outside [A-Za-z0-9_.-] are percent-encoded, so distinct ids never share a
// name and ParseSafeName recovers the id.
func SafeName(id string) string {
	return unsafeName.ReplaceAllStringFunc(id, func(m string) string {
		var b strings.Builder
		for i := 0; i < len(m); i++ {
			fmt.Fprintf(&b, "%%%02X", m[i])
		}
		return b.String()
	})
}

func ParseSafeName(name string) (string, error) {
	id, err := url.PathUnescape(name)
	if err != nil {
		return "", fmt.Errorf("invalid batch name %q: %w", name, err)
	}
	return id, nil
}

// WriteTable writes t as CSV with a header row. Missing cells are written
// empty. The file is replaced atomically.
func WriteTable(path string, t *domain.Table) error {
	if t == nil {
		t = domain.NewTable()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := encodeTable(tmp, t); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func encodeTable(w io.Writer, t *domain.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	line := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for i, col := range t.Columns {
			line[i] = r[col]
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTable loads a CSV written by WriteTable. Empty cells become absent
// fields.
func ReadTable(path string) (*domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeTable(f)
}

func decodeTable(r io.Reader) (*domain.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.NewTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	t := &domain.Table{}
	for _, col := range header {
		t.AddColumn(col)
	}

	for {
		line, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if len(line) > len(header) {
			return nil, fmt.Errorf("row has %d cells, header has %d", len(line), len(header))
		}

		rec := make(domain.Record, len(line))
		for i, v := range line {
			rec.Set(header[i], v)
		}
		t.AddRow(rec)
	}
	return t, nil
}
