package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCollection(t *testing.T) {
	for _, c := range []Collection{RegularShots, RegularShotGroups, CombineShots, CombineShotGroups} {
		got, err := ParseCollection(c.Name())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := ParseCollection("combined_shot_data")
	assert.Error(t, err)
}

func TestCollectionsForReturnsCopy(t *testing.T) {
	cs := CollectionsFor(FamilyRegular)
	cs[0] = CombineShots
	assert.Equal(t, RegularShots, CollectionsFor(FamilyRegular)[0])
}

func TestSchemaExtensions(t *testing.T) {
	r := Record{
		FieldStrokeID:           "s-1",
		FieldReportID:           "r1",
		"Measurement_ClubSpeed": "40",
	}
	assert.Equal(t, Record{"Measurement_ClubSpeed": "40"}, SchemaFor(RegularShots).Extensions(r))
	assert.Empty(t, SchemaFor(RegularShots).Extensions(Record{FieldStrokeID: "s-1"}))
}
