package extract

import (
	"testing"
	"trackman-importer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const regularReport = `{
  "Id": "rep-1",
  "Kind": "sessionReport",
  "StrokeGroups": [
    {
      "Date": "2024-03-01",
      "Club": "7Iron",
      "Ball": "Premium",
      "Target": "Range",
      "Player": {"Name": "Alex", "Hcp": 12.4, "Gender": "Female", "Id": "p-1"},
      "Strokes": [
        {
          "Id": "s-1",
          "Time": "2024-03-01T10:00:00Z",
          "Club": "7Iron",
          "Measurement": {"ClubSpeed": 42.5, "BallSpeed": 60, "Trajectory": [1, 2], "Extra": {"A": 1}},
          "NormalizedMeasurement": {"Carry": 150.2},
          "ImpactLocation": {"ImpactOffset": -0.01, "DynamicLie": 1.5}
        },
        {
          "Id": "s-2",
          "Time": "2024-03-01T10:01:00Z",
          "Measurement": {"ClubSpeed": 43.5, "BallSpeed": 70}
        },
        {
          "Id": "s-3",
          "Time": "2024-03-01T10:02:00Z",
          "Measurement": {"ClubSpeed": null}
        }
      ]
    }
  ]
}`

func parse(t *testing.T, doc string) Report {
	t.Helper()
	r, err := ParseReport([]byte(doc))
	require.NoError(t, err)
	return r
}

func TestExtractRegularShots(t *testing.T) {
	res := New(zerolog.Nop()).Extract(parse(t, regularReport))

	require.Equal(t, domain.FamilyRegular, res.Family)
	require.Len(t, res.Shots, 3)
	assert.Empty(t, res.Issues)

	first := res.Shots[0]
	assert.Equal(t, "42.5", first["Measurement_ClubSpeed"])
	assert.Equal(t, "60", first["Measurement_BallSpeed"])
	assert.Equal(t, "150.2", first["Normalized_Carry"])
	assert.Equal(t, "-0.01", first["ImpactLocation_ImpactOffset"])
	assert.NotContains(t, first, "Measurement_Trajectory")
	assert.NotContains(t, first, "Measurement_Extra")

	assert.Equal(t, "2024-03-01", first[domain.FieldGroupDate])
	assert.Equal(t, "7Iron", first[domain.FieldGroupClub])
	assert.Equal(t, "Range", first[domain.FieldGroupTarget])
	assert.Equal(t, "Alex", first[domain.FieldPlayerName])
	assert.Equal(t, "12.4", first[domain.FieldPlayerHcp])
	assert.Equal(t, "s-1", first[domain.FieldStrokeID])
	assert.Equal(t, "2024-03-01T10:00:00Z", first[domain.FieldStrokeTime])

	// sparse: fields the stroke lacks are absent, not empty
	second := res.Shots[1]
	assert.NotContains(t, second, domain.FieldStrokeClub)
	assert.NotContains(t, second, "Normalized_Carry")
	assert.NotContains(t, res.Shots[2], "Measurement_ClubSpeed")
}

func TestExtractRegularGroupAggregates(t *testing.T) {
	res := New(zerolog.Nop()).Extract(parse(t, regularReport))
	require.Len(t, res.Groups, 1)

	g := res.Groups[0]
	assert.Equal(t, "3", g[domain.FieldNumStrokes])
	assert.Equal(t, "p-1", g[domain.FieldPlayerID])
	assert.Equal(t, "65", g["AvgBallSpeed"])
	assert.Equal(t, "60", g["MinBallSpeed"])
	assert.Equal(t, "70", g["MaxBallSpeed"])
	assert.Equal(t, "43", g["AvgClubSpeed"])
	assert.NotContains(t, g, "AvgSpinRate")
	assert.NotContains(t, g, "MinSpinRate")
}

func TestExtractSkipsMalformedStrokes(t *testing.T) {
	doc := `{
	  "Id": "rep-2",
	  "StrokeGroups": [
	    "not a group",
	    {
	      "Date": "2024-03-02",
	      "Club": "Driver",
	      "Strokes": [
	        "garbage",
	        {"Id": "s-9", "Measurement": "oops", "Result": {"Carry": 210}}
	      ]
	    }
	  ]
	}`
	res := New(zerolog.Nop()).Extract(parse(t, doc))

	require.Len(t, res.Shots, 1)
	shot := res.Shots[0]
	assert.Equal(t, "s-9", shot[domain.FieldStrokeID])
	assert.Equal(t, "210", shot["Result_Carry"])
	for k := range shot {
		assert.NotContains(t, k, "Measurement_")
	}

	require.Len(t, res.Groups, 1)
	assert.Equal(t, "2", res.Groups[0][domain.FieldNumStrokes])
	assert.Len(t, res.Issues, 3)
}

func TestIsCombine(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want bool
	}{
		{"explicit score", `{"CombineScore": 71}`, true},
		{"kind tag", `{"Kind": "combineTestReport"}`, true},
		{"numeric target string", `{"StrokeGroups": [{"Target": "120"}]}`, true},
		{"numeric target number", `{"StrokeGroups": [{"Target": 90}]}`, true},
		{"yardage name", `{"StrokeGroups": [{"Target": "Flag", "Name": "140 Yards"}]}`, true},
		{"named target", `{"StrokeGroups": [{"Target": "Fairway", "Name": "Warmup"}]}`, false},
		{"decimal target", `{"StrokeGroups": [{"Target": "12.5"}]}`, false},
		{"other kind", `{"Kind": "sessionReport"}`, false},
		{"empty", `{}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCombine(parse(t, tt.doc)))
		})
	}
}

const combineReport = `{
  "Id": "cmb-1",
  "Kind": "combineTestReport",
  "Time": "2024-04-10T09:30:00Z",
  "CombineHcp": 8.1,
  "Player": {"Name": "Sam", "Hcp": 7.9, "Gender": "Male", "Id": "p-7"},
  "TestResult": {
    "Statistics": {"AvgScore": 74.2},
    "Definition": {"Name": "Trackman Combine"}
  },
  "StrokeGroups": [
    {
      "Target": "100",
      "Name": "100 yards",
      "Strokes": [
        {
          "Id": "c-1",
          "Time": "2024-04-10T09:31:00Z",
          "Measurement": {"Carry": 98.5, "Side": -1.5},
          "ImpactLocation": {"X": 0.01, "Y": -0.02},
          "Result": {"Score": 80, "DistanceToPin": 3.2, "Hole": 1}
        },
        {
          "Id": "c-2",
          "Measurement": {"Carry": 102.5, "Side": 2.5},
          "Result": {"Score": 60, "DistanceToPin": 6.8}
        }
      ]
    }
  ]
}`

func TestExtractCombine(t *testing.T) {
	res := New(zerolog.Nop()).Extract(parse(t, combineReport))
	require.Equal(t, domain.FamilyCombine, res.Family)
	require.Len(t, res.Shots, 2)

	shot := res.Shots[0]
	assert.Equal(t, "80", shot[domain.FieldScore])
	assert.Equal(t, "3.2", shot[domain.FieldDistToPin])
	assert.Equal(t, "1", shot["Result_Hole"])
	assert.NotContains(t, shot, "Result_Score")
	assert.NotContains(t, shot, "Result_DistanceToPin")
	assert.Equal(t, "0.01", shot["ImpactLocation_X"])
	assert.Equal(t, "100", shot[domain.FieldTargetDist])
	assert.Equal(t, "100 yards", shot[domain.FieldGroupName])
	assert.Equal(t, "74.2", shot[domain.FieldCombineScore])
	assert.Equal(t, "Trackman Combine", shot[domain.FieldCombineName])
	assert.Equal(t, "Sam", shot[domain.FieldPlayerName])

	require.Len(t, res.Groups, 1)
	g := res.Groups[0]
	assert.Equal(t, "2024-04-10", g[domain.FieldDate])
	assert.Equal(t, "100", g[domain.FieldTarget])
	assert.Equal(t, "cmb-1", g[domain.FieldReportIDCap])
	assert.Equal(t, "p-7", g[domain.FieldPlayerID])
	assert.Equal(t, "100.5", g["AvgCarry"])
	assert.Equal(t, "70", g["AvgScore"])
	assert.Equal(t, "140", g["TotalScore"])
	assert.Equal(t, "80", g["MaxScore"])
	assert.Equal(t, "3.2", g["MinDistanceToPin"])
	assert.Equal(t, "6.8", g["MaxDistanceToPin"])
}

func TestParseReportRejectsNull(t *testing.T) {
	_, err := ParseReport([]byte("null"))
	require.Error(t, err)

	_, err = ParseReport([]byte("{"))
	require.Error(t, err)
}
