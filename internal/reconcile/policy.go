package reconcile

import (
	"strings"
	"time"
	"trackman-importer/internal/domain"
)

// Policy decides which records describe the same logical entity and which of
// them survives.
type Policy interface {
	// Name identifies the policy in logs.
	Name() string

	// KeyColumns must all be present in a table for deduplication to run.
	KeyColumns() []string

	// Key returns the dedup key of r, or false when r carries no key at all.
	Key(r domain.Record) (string, bool)

	// Prefer reports whether a should be kept over b.
	Prefer(a, b domain.Record) bool

	// SummaryFields are the fields logged for each collision candidate.
	SummaryFields() []string
}

// PolicyFor returns the policy for a collection. Regular groups are keyed by
// club, combine groups by target distance.
func PolicyFor(c domain.Collection) Policy {
	switch c {
	case domain.RegularShotGroups:
		return GroupPolicy{TargetField: domain.FieldClub}
	case domain.CombineShotGroups:
		return GroupPolicy{TargetField: domain.FieldTarget}
	case domain.CombineShots:
		return ShotPolicy{Extra: []string{domain.FieldGroupTarget, domain.FieldScore, domain.FieldDistToPin}}
	default:
		return ShotPolicy{Extra: []string{domain.FieldStrokeClub}}
	}
}

// ShotPolicy keys shots by stroke id and keeps the most recently captured
// copy. The capture time is StrokeTime, falling back to GroupDate for rows
// extracted without one.
type ShotPolicy struct {
	Extra []string
}

func (ShotPolicy) Name() string { return "shot" }

func (ShotPolicy) KeyColumns() []string {
	return []string{domain.FieldStrokeID}
}

func (ShotPolicy) Key(r domain.Record) (string, bool) {
	return r.Value(domain.FieldStrokeID)
}

func (ShotPolicy) Prefer(a, b domain.Record) bool {
	return newer(captureTime(a), captureTime(b))
}

func (p ShotPolicy) SummaryFields() []string {
	fields := []string{domain.FieldStrokeTime, domain.FieldGroupDate}
	fields = append(fields, p.Extra...)
	return append(fields, domain.FieldReportID)
}

func captureTime(r domain.Record) string {
	if v, ok := r.Value(domain.FieldStrokeTime); ok {
		return v
	}
	v, _ := r.Value(domain.FieldGroupDate)
	return v
}

// GroupPolicy keys shot groups by date, club or target, and player, and keeps
// the copy with the most strokes.
type GroupPolicy struct {
	TargetField string
}

func (GroupPolicy) Name() string { return "shot_group" }

func (p GroupPolicy) KeyColumns() []string {
	return []string{domain.FieldDate, p.TargetField, domain.FieldPlayerName}
}

func (p GroupPolicy) Key(r domain.Record) (string, bool) {
	parts := make([]string, 0, 3)
	present := false
	for _, col := range p.KeyColumns() {
		v, ok := r.Value(col)
		present = present || ok
		parts = append(parts, v)
	}
	return strings.Join(parts, "_"), present
}

func (GroupPolicy) Prefer(a, b domain.Record) bool {
	na, okA := a.Float(domain.FieldNumStrokes)
	nb, okB := b.Float(domain.FieldNumStrokes)
	switch {
	case okA && okB:
		return na > nb
	default:
		return okA && !okB
	}
}

func (p GroupPolicy) SummaryFields() []string {
	return []string{domain.FieldNumStrokes, domain.FieldDate, p.TargetField, domain.FieldPlayerName, domain.FieldReportIDCap, domain.FieldReportID}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// newer reports whether timestamp a sorts after b. Values rank missing,
// then unparseable, then parseable; within a rank parsed times compare as
// instants and unparseable values as text.
func newer(a, b string) bool {
	ra, ta := rankTime(a)
	rb, tb := rankTime(b)
	switch {
	case ra != rb:
		return ra > rb
	case ra == timeParsed:
		return ta.After(tb)
	default:
		return a > b
	}
}

const (
	timeMissing = iota
	timeUnparsed
	timeParsed
)

func rankTime(s string) (int, time.Time) {
	if s == "" {
		return timeMissing, time.Time{}
	}
	if t, ok := parseTime(s); ok {
		return timeParsed, t
	}
	return timeUnparsed, time.Time{}
}
