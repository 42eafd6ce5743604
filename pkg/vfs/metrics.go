package vfs

import (
	"github.com/paninifs/panini/pkg/metrics"
	"go.opencensus.io/stats"
)

// M describes metrics for the vfs package
type M struct {
	Volume struct {
		Files   metrics.FilesMetrics `group:"files" description:"metrics about files committed by the file system"`
		IO      metrics.IOMetrics    `group:"io" description:"metrics about read and write operations"`
		Handles handleMetrics        `group:"handles" description:"metrics about open handles"`
	} `group:"volumetry" description:""`
	Usage metrics.UsageMetrics `group:"telemetry" description:"usage stats for the vfs package"`
}

type handleMetrics struct {
	Opened     *stats.Int64Measure `metric:"opened" extraviews:"sum" tags:"kind" description:"number of handles opened"`
	Closed     *stats.Int64Measure `metric:"closed" extraviews:"sum" tags:"kind" description:"number of handles closed"`
	Violations *stats.Int64Measure `metric:"violations" extraviews:"sum" tags:"kind,operation" description:"number of operations issued out of order or on unknown handles"`
}

func (m *handleMetrics) IncOpened() {
	metrics.Inc(m.Opened, map[string]string{"kind": "handle"})
}

func (m *handleMetrics) IncClosed() {
	metrics.Inc(m.Closed, map[string]string{"kind": "handle"})
}

func (m *handleMetrics) IncViolation(operation string) {
	metrics.Inc(m.Violations, map[string]string{"kind": "handle", "operation": operation})
}
