package cmd

import (
	"time"

	"github.com/paninifs/panini/pkg/metrics"
)

// M describes metrics for the cmd package
type M struct {
	Usage metrics.UsageMetrics `group:"telemetry" description:"usage stats for the panini CLI"`
}

// cliUsage records a usage metric in the CLI context in a single go.
// This is intended to be used in some defer statement.
//
// Metrics are flushed as soon as the command is done.
func cliUsage(t0 time.Time, command string, err error) {
	if m := paniniFlags.root.metrics; m != nil {
		m.Usage.UsedAll(t0, command)(err)
		metrics.Flush()
	}
}
