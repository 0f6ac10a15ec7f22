package extract

import (
	"fmt"
	"strings"
	"trackman-importer/internal/domain"

	"github.com/rs/zerolog"
)

// subObjects maps a stroke's nested object to the prefix its scalar keys get
// in the flat record.
var subObjects = []struct {
	key    string
	prefix string
}{
	{"Measurement", "Measurement"},
	{"NormalizedMeasurement", "Normalized"},
	{"Normalized", "Normalized"},
	{"ImpactLocation", "ImpactLocation"},
	{"Result", "Result"},
}

// Issue describes a part of a report that could not be flattened.
type Issue struct {
	Group  int
	Stroke int
	Reason string
}

func (i Issue) String() string {
	if i.Group < 0 {
		return i.Reason
	}
	if i.Stroke < 0 {
		return fmt.Sprintf("group %d: %s", i.Group, i.Reason)
	}
	return fmt.Sprintf("group %d stroke %d: %s", i.Group, i.Stroke, i.Reason)
}

type Result struct {
	Family domain.Family
	Shots  []domain.Record
	Groups []domain.Record
	Issues []Issue
}

type Extractor struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract flattens a report using the regular or combine layout, whichever
// IsCombine selects.
func (e *Extractor) Extract(r Report) Result {
	if IsCombine(r) {
		return e.ExtractCombine(r)
	}
	return e.ExtractRegular(r)
}

func (e *Extractor) ExtractRegular(r Report) Result {
	res := Result{Family: domain.FamilyRegular}
	groups, dropped := r.Groups()
	if dropped > 0 {
		res.Issues = append(res.Issues, Issue{Group: -1, Stroke: -1, Reason: fmt.Sprintf("%d stroke groups are not objects", dropped)})
	}

	for gi, g := range groups {
		player, _ := object(g["Player"])
		strokes, issues := strokesOf(gi, g)
		res.Issues = append(res.Issues, issues...)

		for _, s := range strokes {
			rec := domain.Record{}
			rec.Set(domain.FieldGroupDate, field(g, "Date"))
			rec.Set(domain.FieldGroupClub, field(g, "Club"))
			rec.Set(domain.FieldGroupBall, field(g, "Ball"))
			rec.Set(domain.FieldGroupTarget, field(g, "Target"))
			rec.Set(domain.FieldPlayerName, field(player, "Name"))
			rec.Set(domain.FieldPlayerHcp, field(player, "Hcp"))
			rec.Set(domain.FieldPlayerGender, field(player, "Gender"))
			setStroke(rec, s.data)
			res.Issues = append(res.Issues, flatten(rec, gi, s, nil)...)
			res.Shots = append(res.Shots, rec)
		}

		rec := domain.Record{}
		rec.Set(domain.FieldDate, field(g, "Date"))
		rec.Set(domain.FieldClub, field(g, "Club"))
		rec.Set(domain.FieldBall, field(g, "Ball"))
		rec.Set(domain.FieldTarget, field(g, "Target"))
		rec.Set(domain.FieldNumStrokes, fmt.Sprint(strokeCount(g)))
		rec.Set(domain.FieldPlayerName, field(player, "Name"))
		rec.Set(domain.FieldPlayerHcp, field(player, "Hcp"))
		rec.Set(domain.FieldPlayerGender, field(player, "Gender"))
		rec.Set(domain.FieldPlayerID, field(player, "Id"))
		aggregate(rec, strokes, regularMetrics)
		res.Groups = append(res.Groups, rec)
	}

	e.log(r, res)
	return res
}

// CombineInfo is the report-level combine metadata copied onto every combine
// record.
type CombineInfo struct {
	Score        string
	Hcp          string
	Name         string
	Date         string
	PlayerName   string
	PlayerHcp    string
	PlayerGender string
	PlayerID     string
}

func Combine(r Report) CombineInfo {
	info := CombineInfo{
		Score: field(r, "CombineScore"),
		Hcp:   field(r, "CombineHcp"),
		Name:  field(r, "Name"),
		Date:  field(r, "Date"),
	}

	test, _ := object(r["TestResult"])
	if stats, ok := object(test["Statistics"]); ok {
		if avg := field(stats, "AvgScore"); avg != "" {
			info.Score = avg
		}
	}
	if info.Name == "" {
		def, _ := object(test["Definition"])
		info.Name = field(def, "Name")
	}
	if info.Date == "" {
		if t := field(r, "Time"); t != "" {
			info.Date, _, _ = strings.Cut(t, "T")
		}
	}

	player, _ := object(r["Player"])
	info.PlayerName = field(player, "Name")
	info.PlayerHcp = field(player, "Hcp")
	info.PlayerGender = field(player, "Gender")
	info.PlayerID = field(player, "Id")
	return info
}

func (e *Extractor) ExtractCombine(r Report) Result {
	res := Result{Family: domain.FamilyCombine}
	info := Combine(r)
	groups, dropped := r.Groups()
	if dropped > 0 {
		res.Issues = append(res.Issues, Issue{Group: -1, Stroke: -1, Reason: fmt.Sprintf("%d stroke groups are not objects", dropped)})
	}

	promoted := map[string]bool{domain.FieldScore: true, domain.FieldDistToPin: true}

	for gi, g := range groups {
		player, _ := object(g["Player"])
		playerField := func(key, fallback string) string {
			if v := field(player, key); v != "" {
				return v
			}
			return fallback
		}
		strokes, issues := strokesOf(gi, g)
		res.Issues = append(res.Issues, issues...)

		for _, s := range strokes {
			rec := domain.Record{}
			rec.Set(domain.FieldGroupDate, field(g, "Date"))
			rec.Set(domain.FieldGroupTarget, field(g, "Target"))
			rec.Set(domain.FieldGroupName, field(g, "Name"))
			rec.Set(domain.FieldPlayerName, playerField("Name", info.PlayerName))
			rec.Set(domain.FieldPlayerHcp, playerField("Hcp", info.PlayerHcp))
			rec.Set(domain.FieldPlayerGender, playerField("Gender", info.PlayerGender))
			setStroke(rec, s.data)
			rec.Set(domain.FieldCombineScore, info.Score)
			rec.Set(domain.FieldCombineHcp, info.Hcp)
			rec.Set(domain.FieldCombineName, info.Name)
			rec.Set(domain.FieldTargetDist, field(g, "Target"))
			result, _ := object(s.data["Result"])
			rec.Set(domain.FieldDistToPin, field(result, domain.FieldDistToPin))
			rec.Set(domain.FieldScore, field(result, domain.FieldScore))
			res.Issues = append(res.Issues, flatten(rec, gi, s, promoted)...)
			res.Shots = append(res.Shots, rec)
		}

		date := field(g, "Date")
		if date == "" {
			date = info.Date
		}
		rec := domain.Record{}
		rec.Set(domain.FieldDate, date)
		rec.Set(domain.FieldTarget, field(g, "Target"))
		rec.Set(domain.FieldTargetName, field(g, "Name"))
		rec.Set(domain.FieldNumStrokes, fmt.Sprint(strokeCount(g)))
		rec.Set(domain.FieldPlayerName, playerField("Name", info.PlayerName))
		rec.Set(domain.FieldPlayerHcp, playerField("Hcp", info.PlayerHcp))
		rec.Set(domain.FieldPlayerGender, playerField("Gender", info.PlayerGender))
		rec.Set(domain.FieldPlayerID, playerField("Id", info.PlayerID))
		rec.Set(domain.FieldCombineScore, info.Score)
		rec.Set(domain.FieldCombineHcp, info.Hcp)
		rec.Set(domain.FieldCombineName, info.Name)
		rec.Set(domain.FieldReportIDCap, r.ID())
		aggregate(rec, strokes, combineMetrics)
		aggregateResults(rec, strokes)
		res.Groups = append(res.Groups, rec)
	}

	e.log(r, res)
	return res
}

func (e *Extractor) log(r Report, res Result) {
	for _, issue := range res.Issues {
		e.logger.Warn().
			Str("report_id", r.ID()).
			Str("family", string(res.Family)).
			Str("issue", issue.String()).
			Msg("skipped malformed report data")
	}
	e.logger.Debug().
		Str("report_id", r.ID()).
		Str("family", string(res.Family)).
		Int("shots", len(res.Shots)).
		Int("groups", len(res.Groups)).
		Msg("report extracted")
}

type stroke struct {
	index int
	data  map[string]any
}

// strokesOf returns the well-formed strokes of group g. Strokes that are not
// objects are reported and skipped.
func strokesOf(gi int, g map[string]any) ([]stroke, []Issue) {
	raw, _ := g["Strokes"].([]any)
	var out []stroke
	var issues []Issue
	for si, s := range raw {
		m, ok := s.(map[string]any)
		if !ok {
			issues = append(issues, Issue{Group: gi, Stroke: si, Reason: "stroke is not an object"})
			continue
		}
		out = append(out, stroke{index: si, data: m})
	}
	return out, issues
}

// strokeCount counts every entry of the group's Strokes array, malformed ones
// included.
func strokeCount(g map[string]any) int {
	raw, _ := g["Strokes"].([]any)
	return len(raw)
}

func setStroke(rec domain.Record, s map[string]any) {
	rec.Set(domain.FieldStrokeID, field(s, "Id"))
	rec.Set(domain.FieldStrokeTime, field(s, "Time"))
	rec.Set(domain.FieldStrokeClub, field(s, "Club"))
	rec.Set(domain.FieldStrokeBall, field(s, "Ball"))
}

// flatten copies the scalar keys of every nested object on the stroke into
// rec as <Prefix>_<Key>. Keys listed in skip are left out of Result_.
func flatten(rec domain.Record, gi int, s stroke, skip map[string]bool) []Issue {
	var issues []Issue
	for _, sub := range subObjects {
		raw, present := s.data[sub.key]
		if !present || raw == nil {
			continue
		}
		m, ok := object(raw)
		if !ok {
			issues = append(issues, Issue{Group: gi, Stroke: s.index, Reason: sub.key + " is not an object"})
			continue
		}
		for k, v := range m {
			if sub.key == "Result" && skip[k] {
				continue
			}
			if str, ok := scalar(v); ok {
				rec.Set(sub.prefix+"_"+k, str)
			}
		}
	}
	return issues
}
