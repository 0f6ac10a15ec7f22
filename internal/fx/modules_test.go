package fx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvideMetricsIncludesRuntimeCollectors(t *testing.T) {
	m := ProvideMetrics()
	m.RecordStatus("Success")

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
	assert.True(t, names["trackman_urls_processed_total"])
}
