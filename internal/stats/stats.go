// Package stats computes descriptive statistics over canonical shot tables.
package stats

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"trackman-importer/internal/domain"
)

// MSToMPH converts the vendor's m/s speeds to mph.
const MSToMPH = 2.23694

const mphSuffix = "_mph"

var (
	ErrNoClubColumn   = errors.New("club information not found in the data")
	ErrNoTargetColumn = errors.New("target distance not found in the data")
	ErrNoData         = errors.New("no shots match")
)

var (
	ClubMetrics = []string{
		"Measurement_AttackAngle",
		"Measurement_ClubPath",
		"Measurement_ClubSpeed",
		"Measurement_ClubSpeed" + mphSuffix,
		"Measurement_BallSpeed",
		"Measurement_BallSpeed" + mphSuffix,
		"Measurement_FaceAngle",
		"Measurement_LaunchAngle",
		"Measurement_SpinRate",
		"Measurement_Carry",
	}
	CombineMetrics = append(slices.Clone(ClubMetrics[:9]), domain.FieldScore, domain.FieldDistToPin)
)

// Summary describes one metric over a group of shots. Std is the sample
// standard deviation and is zero for fewer than two values.
type Summary struct {
	Metric string
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Max    float64
}

type Group struct {
	Key     string
	Shots   int
	Metrics []Summary
	// Clubs counts shots per StrokeClub.
	Clubs map[string]int
}

// ByClub groups shots by StrokeClub, falling back to GroupClub. A non-empty
// club narrows the result to that club.
func ByClub(t *domain.Table, club string) ([]Group, error) {
	col := ""
	switch {
	case t.HasColumns(domain.FieldStrokeClub):
		col = domain.FieldStrokeClub
	case t.HasColumns(domain.FieldGroupClub):
		col = domain.FieldGroupClub
	default:
		return nil, ErrNoClubColumn
	}

	rows := t.Rows
	if club != "" {
		rows = filter(rows, col, club)
		if len(rows) == 0 {
			return nil, fmt.Errorf("%w club %q", ErrNoData, club)
		}
	}
	return groupBy(rows, col, ClubMetrics), nil
}

// ByTarget groups combine shots by TargetDistance.
func ByTarget(t *domain.Table) ([]Group, error) {
	if !t.HasColumns(domain.FieldTargetDist) {
		return nil, ErrNoTargetColumn
	}
	groups := groupBy(t.Rows, domain.FieldTargetDist, CombineMetrics)
	slices.SortStableFunc(groups, func(a, b Group) int {
		return compareTargets(a.Key, b.Key)
	})
	return groups, nil
}

// compareTargets orders numeric distances numerically, ahead of any
// non-numeric key such as "Unknown", which compare as text.
func compareTargets(a, b string) int {
	x, errX := strconv.ParseFloat(a, 64)
	y, errY := strconv.ParseFloat(b, 64)
	switch {
	case errX == nil && errY == nil:
		return cmp.Compare(x, y)
	case errX == nil:
		return -1
	case errY == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func filter(rows []domain.Record, col, want string) []domain.Record {
	var out []domain.Record
	for _, r := range rows {
		if v, _ := r.Value(col); v == want {
			out = append(out, r)
		}
	}
	return out
}

// groupBy buckets rows by their value of col in first-seen order. Rows without
// a value are grouped under "Unknown".
func groupBy(rows []domain.Record, col string, metrics []string) []Group {
	var order []string
	buckets := map[string][]domain.Record{}
	for _, r := range rows {
		k, ok := r.Value(col)
		if !ok {
			k = "Unknown"
		}
		if _, seen := buckets[k]; !seen {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], r)
	}

	groups := make([]Group, 0, len(order))
	for _, k := range order {
		members := buckets[k]
		g := Group{Key: k, Shots: len(members), Clubs: map[string]int{}}
		for _, r := range members {
			if c, ok := r.Value(domain.FieldStrokeClub); ok {
				g.Clubs[c]++
			}
		}
		for _, m := range metrics {
			if s, ok := Describe(m, values(members, m)); ok {
				g.Metrics = append(g.Metrics, s)
			}
		}
		groups = append(groups, g)
	}
	return groups
}

// values collects the numeric values of metric. A metric ending in _mph is
// derived from its m/s counterpart.
func values(rows []domain.Record, metric string) []float64 {
	field, scale := metric, 1.0
	if base, ok := strings.CutSuffix(metric, mphSuffix); ok {
		field, scale = base, MSToMPH
	}
	var out []float64
	for _, r := range rows {
		if f, ok := r.Float(field); ok && !math.IsNaN(f) {
			out = append(out, f*scale)
		}
	}
	return out
}

func Describe(metric string, vs []float64) (Summary, bool) {
	if len(vs) == 0 {
		return Summary{}, false
	}
	s := Summary{Metric: metric, Count: len(vs), Min: vs[0], Max: vs[0]}
	var sum float64
	for _, v := range vs {
		sum += v
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
	}
	s.Mean = sum / float64(len(vs))
	if len(vs) > 1 {
		var sq float64
		for _, v := range vs {
			d := v - s.Mean
			sq += d * d
		}
		s.Std = math.Sqrt(sq / float64(len(vs)-1))
	}
	return s, true
}
