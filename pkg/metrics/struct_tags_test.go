package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats"

	mock "github.com/paninifs/panini/pkg/metrics/exporters/mock"
)

func TestAllocate(t *testing.T) {
	r := newRegistry(WithExporter(mock.NewExporter()))
	m := &fixtureMetrics{}

	allocate("allocate", r.newMeasure, m)

	assert.Nil(t, m.Telemetry.Ignored)
	assert.Zero(t, m.Telemetry.Level)
	require.NotNil(t, m.Telemetry.Requests)
	assert.Equal(t, "allocate/telemetry/requests", m.Telemetry.Requests.Name())

	assert.NotNil(t, m.Volumetry.Files.Count)
	assert.NotNil(t, m.Volumetry.Files.FileSize)
	assert.NotNil(t, m.Volumetry.IO.Count)
	assert.NotNil(t, m.Volumetry.IO.Failures)
	assert.NotNil(t, m.Volumetry.IO.Timing)
	assert.NotNil(t, m.Volumetry.IO.Bytes)
	require.NotNil(t, m.Volumetry.IO.Throughput)
	assert.IsType(t, &stats.Float64Measure{}, m.Volumetry.IO.Throughput)
	assert.Equal(t, stats.UnitMilliseconds, m.Usage.Timing.Unit())

	// one view per measure, plus the extra sums on files and IO bytes
	assert.Len(t, r.measures, 11)
	assert.Len(t, r.views, 14)
}

func TestAllocateRequiresPointer(t *testing.T) {
	r := newRegistry(WithExporter(mock.NewExporter()))
	assert.Panics(t, func() {
		allocate("panics", r.newMeasure, fixtureMetrics{})
	})
	assert.Panics(t, func() {
		var m *fixtureMetrics
		allocate("panics", r.newMeasure, m)
	})
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"kind", "operation"}, splitList("kind, operation,"))
}
