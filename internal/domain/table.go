package domain

import (
	"maps"
	"slices"
	"strconv"
)

// Field names shared by the extractor, the reconciler and downstream readers.
const (
	FieldReportID     = "report_id"
	FieldStrokeID     = "StrokeId"
	FieldStrokeTime   = "StrokeTime"
	FieldStrokeClub   = "StrokeClub"
	FieldStrokeBall   = "StrokeBall"
	FieldGroupDate    = "GroupDate"
	FieldGroupClub    = "GroupClub"
	FieldGroupBall    = "GroupBall"
	FieldGroupTarget  = "GroupTarget"
	FieldGroupName    = "GroupName"
	FieldPlayerName   = "PlayerName"
	FieldPlayerHcp    = "PlayerHcp"
	FieldPlayerGender = "PlayerGender"
	FieldPlayerID     = "PlayerID"
	FieldDate         = "Date"
	FieldClub         = "Club"
	FieldBall         = "Ball"
	FieldTarget       = "Target"
	FieldTargetName   = "TargetName"
	FieldNumStrokes   = "NumStrokes"
	FieldCombineScore = "CombineScore"
	FieldCombineHcp   = "CombineHcp"
	FieldCombineName  = "CombineName"
	FieldTargetDist   = "TargetDistance"
	FieldScore        = "Score"
	FieldDistToPin    = "DistanceToPin"
	FieldReportIDCap  = "ReportId"
)

// Record is one flat row. Absent and empty fields are equivalent.
type Record map[string]string

func (r Record) Value(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (r Record) Float(field string) (float64, bool) {
	v, ok := r.Value(field)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Set stores v, dropping the field when v is empty.
func (r Record) Set(field, v string) {
	if v == "" {
		delete(r, field)
		return
	}
	r[field] = v
}

func (r Record) Clone() Record {
	return maps.Clone(r)
}

// Table is a sparse table: Columns is the union of every field any row
// carries, in first-seen order, and rows simply omit fields they lack.
type Table struct {
	Columns []string
	Rows    []Record

	seen map[string]struct{}
}

func NewTable(rows ...Record) *Table {
	t := &Table{}
	for _, r := range rows {
		t.AddRow(r)
	}
	return t
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

func (t *Table) AddColumn(name string) {
	if t.seen == nil {
		t.seen = make(map[string]struct{}, len(t.Columns))
		for _, c := range t.Columns {
			t.seen[c] = struct{}{}
		}
	}
	if _, ok := t.seen[name]; ok {
		return
	}
	t.seen[name] = struct{}{}
	t.Columns = append(t.Columns, name)
}

func (t *Table) AddRow(r Record) {
	keys := slices.Sorted(maps.Keys(r))
	for _, k := range keys {
		t.AddColumn(k)
	}
	t.Rows = append(t.Rows, r)
}

// Append concatenates other onto t, unioning the column sets.
func (t *Table) Append(other *Table) {
	if other == nil {
		return
	}
	for _, c := range other.Columns {
		t.AddColumn(c)
	}
	for _, r := range other.Rows {
		t.AddRow(r)
	}
}

func (t *Table) HasColumns(names ...string) bool {
	for _, n := range names {
		if !slices.Contains(t.Columns, n) {
			return false
		}
	}
	return true
}

// Concat builds a fresh table from the given tables without mutating them.
func Concat(tables ...*Table) *Table {
	out := &Table{}
	for _, t := range tables {
		out.Append(t)
	}
	return out
}
