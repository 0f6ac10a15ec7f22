package cmd

import (
	"testing"
	"trackman-importer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectCollections(t *testing.T) {
	tests := []struct {
		name       string
		family     string
		collection string
		want       []domain.Collection
		wantErr    bool
	}{
		{name: "all", want: []domain.Collection{domain.RegularShots, domain.RegularShotGroups, domain.CombineShots, domain.CombineShotGroups}},
		{name: "family", family: "combine", want: []domain.Collection{domain.CombineShots, domain.CombineShotGroups}},
		{name: "collection", collection: "combine_shot_groups", want: []domain.Collection{domain.CombineShotGroups}},
		{name: "collection in family", family: "regular", collection: "shot_data", want: []domain.Collection{domain.RegularShots}},
		{name: "collection outside family", family: "regular", collection: "combine_shot_data", wantErr: true},
		{name: "unknown collection", collection: "shots", wantErr: true},
		{name: "unknown family", family: "range", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectCollections(tt.family, tt.collection)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
