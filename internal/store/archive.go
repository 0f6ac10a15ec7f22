package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"trackman-importer/internal/domain"
)

// Archive keeps the raw vendor response of every fetched report.
type Archive struct {
	dir string
}

func NewArchive(dir string) *Archive {
	return &Archive{dir: dir}
}

func (a *Archive) Path(family domain.Family, reportID string) string {
	name := fmt.Sprintf("report_data_%s.json", SafeName(reportID))
	if family == domain.FamilyCombine {
		name = "combine_" + name
	}
	return filepath.Join(a.dir, name)
}

func (a *Archive) Exists(family domain.Family, reportID string) bool {
	_, err := os.Stat(a.Path(family, reportID))
	return err == nil
}

// Save writes body indented, overwriting an earlier copy of the same report.
func (a *Archive) Save(family domain.Family, reportID string, body []byte) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		buf.Reset()
		buf.Write(body)
	}

	path := a.Path(family, reportID)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to archive report %s: %w", reportID, err)
	}
	return path, nil
}
