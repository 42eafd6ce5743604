package fuse

import (
	"github.com/paninifs/panini/pkg/metrics"
)

// M describes metrics for the fuse package
type M struct {
	Volume struct {
		IO metrics.IOMetrics `group:"io" description:"metrics about reads and writes issued by the kernel"`
	} `group:"volumetry" description:""`
	Usage metrics.UsageMetrics `group:"telemetry" description:"usage stats for the fuse file system operations"`
}
