package metrics

import "go.opencensus.io/stats"

type fixtureMetrics struct {
	Telemetry struct {
		Ignored  []FilesMetrics      `group:"ignored"`
		Requests *stats.Int64Measure `metric:"requests" description:"number of requests" tags:"kind"`
		Level    int                 `metric:"level"`
	} `group:"telemetry"`
	Volumetry struct {
		Files FilesMetrics `group:"files"`
		IO    IOMetrics    `group:"io"`
	} `group:"volumetry"`
	Usage UsageMetrics `group:"usage"`
}

func (f *fixtureMetrics) IncRequest() {
	Inc(f.Telemetry.Requests, map[string]string{"kind": "test"})
}
