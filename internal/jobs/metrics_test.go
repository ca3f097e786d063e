package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherValue(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NoError(t, metrics.Track("demo:job").End(nil))
	failure := errors.New("boom")
	require.ErrorIs(t, metrics.Track("demo:job").End(failure), failure)

	assert.Equal(t, 2.0, gatherValue(t, registry, "rolelink_jobs_total"))
	assert.Equal(t, 1.0, gatherValue(t, registry, "rolelink_jobs_failures_total"))
}

func TestAddRoleMutations(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.AddRoleMutations("add", 3)
	metrics.AddRoleMutations("remove", 1)
	metrics.AddRoleMutations("add", 0)
	metrics.AddRoleMutations("add", -2)

	assert.Equal(t, 4.0, gatherValue(t, registry, "rolelink_role_mutations_total"))
}
