package logger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestExportView(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	e := NewExporter(WithLogger(zap.New(core)), WithTags(map[string]string{"service": "test"}))

	measure := stats.Int64("test/count", "a counter", stats.UnitDimensionless)
	key := tag.MustNewKey("operation")
	now := time.Now()

	e.ExportView(&view.Data{
		View:  &view.View{Name: "test/count", Measure: measure, Aggregation: view.Count()},
		Start: now.Add(-time.Second),
		End:   now,
		Rows: []*view.Row{
			{Tags: []tag.Tag{{Key: key, Value: "put"}}, Data: &view.CountData{Value: 3}},
			{Data: &view.SumData{Value: 1.5}},
			{Data: &view.DistributionData{Count: 2, Min: 1, Max: 2, Mean: 1.5, CountPerBucket: []int64{1, 1}}},
		},
	})

	entries := logs.All()
	require.Len(t, entries, 3)
	first := entries[0].ContextMap()
	assert.Equal(t, "test/count", first["view"])
	assert.Equal(t, "count", first["aggregation"])
	assert.EqualValues(t, 3, first["value"])
	assert.Equal(t, map[string]string{"service": "test", "operation": "put"}, first["tags"])
	assert.Equal(t, "distribution", entries[2].ContextMap()["aggregation"])

	e.ExportView(nil)
	assert.Len(t, logs.All(), 3)
}
