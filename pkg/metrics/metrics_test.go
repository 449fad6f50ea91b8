package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("labalert", reg)

	m.ResultsIngested.WithLabelValues("memory", "true").Inc()
	m.PendingAlerts.Set(3)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["labalert_results_ingested_total"])
	assert.True(t, names["labalert_pending_alerts"])
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PendingAlerts))
}

func TestNewWithoutRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		New("a", nil)
		New("a", nil)
	})
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "success", Status(nil))
	assert.Equal(t, "error", Status(errors.New("x")))
}
