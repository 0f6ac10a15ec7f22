// Package extract flattens vendor report documents into sparse shot and
// shot-group records.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const combineKind = "combineTestReport"

// Report is a decoded report document. The vendor schema is walked
// dynamically so unknown fields survive into the flat records.
type Report map[string]any

func ParseReport(data []byte) (Report, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var r Report
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("report is empty")
	}
	return r, nil
}

func (r Report) ID() string {
	s, _ := scalar(r["Id"])
	return s
}

// Groups returns the StrokeGroups entries that are objects. Anything else is
// dropped along with a count of how many were dropped.
func (r Report) Groups() ([]map[string]any, int) {
	raw, ok := r["StrokeGroups"].([]any)
	if !ok {
		return nil, 0
	}
	groups := make([]map[string]any, 0, len(raw))
	dropped := 0
	for _, g := range raw {
		m, ok := g.(map[string]any)
		if !ok {
			dropped++
			continue
		}
		groups = append(groups, m)
	}
	return groups, dropped
}

// IsCombine reports whether r is a combine (distance-target) report. The
// checks run in order and the first match wins: explicit score, report kind,
// a purely numeric group target, a yardage group name.
func IsCombine(r Report) bool {
	if r == nil {
		return false
	}
	if _, ok := r["CombineScore"]; ok {
		return true
	}
	if kind, _ := r["Kind"].(string); kind == combineKind {
		return true
	}
	groups, _ := r.Groups()
	for _, g := range groups {
		if isNumericTarget(g["Target"]) {
			return true
		}
		if name, ok := g["Name"].(string); ok && strings.Contains(strings.ToLower(name), "yards") {
			return true
		}
	}
	return false
}

func isNumericTarget(v any) bool {
	switch t := v.(type) {
	case string:
		if t == "" {
			return false
		}
		for _, c := range t {
			if c < '0' || c > '9' {
				return false
			}
		}
		return true
	case json.Number:
		_, err := strconv.ParseUint(t.String(), 10, 64)
		return err == nil
	}
	return false
}

// scalar renders a JSON leaf as text. Objects, arrays and nulls are not
// scalars.
func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	}
	return 0, false
}

func object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func field(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := scalar(m[key])
	return s
}
