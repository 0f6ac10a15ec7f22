package domain

import "slices"

// Schema is the schema-on-read view of a collection: the ordered fields this
// code knows about. Any other column (Measurement_*, Result_*, vendor
// additions) is an extension and keeps its first-seen position after the
// known ones.
type Schema struct {
	Known []string
}

var (
	shotSchema = Schema{Known: []string{
		FieldGroupDate, FieldGroupClub, FieldGroupBall, FieldGroupTarget,
		FieldPlayerName, FieldPlayerHcp, FieldPlayerGender,
		FieldStrokeID, FieldStrokeTime, FieldStrokeClub, FieldStrokeBall,
		FieldReportID,
	}}
	shotGroupSchema = Schema{Known: []string{
		FieldDate, FieldClub, FieldBall, FieldTarget, FieldNumStrokes,
		FieldPlayerName, FieldPlayerHcp, FieldPlayerGender, FieldPlayerID,
		FieldReportID,
	}}
	combineShotSchema = Schema{Known: []string{
		FieldGroupDate, FieldGroupTarget, FieldGroupName,
		FieldPlayerName, FieldPlayerHcp, FieldPlayerGender,
		FieldStrokeID, FieldStrokeTime, FieldStrokeClub, FieldStrokeBall,
		FieldCombineScore, FieldCombineHcp, FieldCombineName,
		FieldTargetDist, FieldDistToPin, FieldScore,
		FieldReportID,
	}}
	combineShotGroupSchema = Schema{Known: []string{
		FieldDate, FieldTarget, FieldTargetName, FieldNumStrokes,
		FieldPlayerName, FieldPlayerHcp, FieldPlayerGender, FieldPlayerID,
		FieldCombineScore, FieldCombineHcp, FieldCombineName, FieldReportIDCap,
		FieldReportID,
	}}
)

func SchemaFor(c Collection) Schema {
	switch c {
	case RegularShotGroups:
		return shotGroupSchema
	case CombineShots:
		return combineShotSchema
	case CombineShotGroups:
		return combineShotGroupSchema
	default:
		return shotSchema
	}
}

func (s Schema) IsKnown(field string) bool {
	return slices.Contains(s.Known, field)
}

// Order returns cols with known fields first, in schema order, followed by
// extensions in their original order.
func (s Schema) Order(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, k := range s.Known {
		if slices.Contains(cols, k) {
			out = append(out, k)
		}
	}
	for _, c := range cols {
		if !s.IsKnown(c) {
			out = append(out, c)
		}
	}
	return out
}

// Extensions returns the fields of r this schema does not name.
func (s Schema) Extensions(r Record) Record {
	ext := Record{}
	for k, v := range r {
		if !s.IsKnown(k) {
			ext[k] = v
		}
	}
	return ext
}
