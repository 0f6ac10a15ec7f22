package extract

import (
	"strconv"
	"trackman-importer/internal/domain"
)

var (
	regularMetrics = []string{
		"BallSpeed", "ClubSpeed", "LaunchAngle", "SpinRate",
		"AttackAngle", "ClubPath", "FaceAngle",
	}
	combineMetrics = append(append([]string{}, regularMetrics...), "Carry", "Side")
)

// aggregate writes Avg/Min/Max<metric> onto rec for each metric, computed over
// the Measurement values of strokes that carry it. A metric no stroke carries
// gets no aggregate fields at all.
func aggregate(rec domain.Record, strokes []stroke, metrics []string) {
	for _, metric := range metrics {
		var values []float64
		for _, s := range strokes {
			m, ok := object(s.data["Measurement"])
			if !ok {
				continue
			}
			if v, ok := number(m[metric]); ok {
				values = append(values, v)
			}
		}
		s, ok := summarize(values)
		if !ok {
			continue
		}
		rec.Set("Avg"+metric, formatFloat(s.mean))
		rec.Set("Min"+metric, formatFloat(s.min))
		rec.Set("Max"+metric, formatFloat(s.max))
	}
}

// aggregateResults adds combine score and proximity aggregates from each
// stroke's Result object.
func aggregateResults(rec domain.Record, strokes []stroke) {
	var scores, distances []float64
	for _, s := range strokes {
		res, ok := object(s.data["Result"])
		if !ok {
			continue
		}
		if v, ok := number(res[domain.FieldScore]); ok {
			scores = append(scores, v)
		}
		if v, ok := number(res[domain.FieldDistToPin]); ok {
			distances = append(distances, v)
		}
	}

	if s, ok := summarize(scores); ok {
		rec.Set("AvgScore", formatFloat(s.mean))
		rec.Set("TotalScore", formatFloat(s.sum))
		rec.Set("MaxScore", formatFloat(s.max))
	}
	if s, ok := summarize(distances); ok {
		rec.Set("AvgDistanceToPin", formatFloat(s.mean))
		rec.Set("MinDistanceToPin", formatFloat(s.min))
		rec.Set("MaxDistanceToPin", formatFloat(s.max))
	}
}

type summary struct {
	sum, mean, min, max float64
}

func summarize(values []float64) (summary, bool) {
	if len(values) == 0 {
		return summary{}, false
	}
	s := summary{min: values[0], max: values[0]}
	for _, v := range values {
		s.sum += v
		s.min = min(s.min, v)
		s.max = max(s.max, v)
	}
	s.mean = s.sum / float64(len(values))
	return s, true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
