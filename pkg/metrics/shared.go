package metrics

import (
	"time"

	"go.opencensus.io/stats"
)

// UsageMetrics counts calls to the entry points of a component, with their failures and timings
type UsageMetrics struct {
	Count    *stats.Int64Measure   `metric:"calls" description:"number of calls" tags:"kind,method"`
	Failures *stats.Int64Measure   `metric:"failures" description:"number of failed calls" tags:"kind,method"`
	Timing   *stats.Float64Measure `metric:"timing" unit:"milliseconds" description:"duration of a call" tags:"kind,method"`
}

func (u *UsageMetrics) tags(method string) map[string]string {
	return map[string]string{"kind": "usage", "method": method}
}

// Inc counts a call without timing it. Used for long running commands.
func (u *UsageMetrics) Inc(method string) {
	Inc(u.Count, u.tags(method))
}

// UsedAll returns a function recording a call started at start, and its failure if any.
//
//	defer func(t0 time.Time) { m.Usage.UsedAll(t0, "Put")(err) }(time.Now())
func (u *UsageMetrics) UsedAll(start time.Time, method string) func(error) {
	return func(err error) {
		tags := u.tags(method)
		Since(start, u.Timing, tags)
		Inc(u.Count, tags)
		if err != nil {
			Inc(u.Failures, tags)
		}
	}
}

// IOMetrics measures data transfers: their count, failures, timing, size and throughput
type IOMetrics struct {
	Count      *stats.Int64Measure   `metric:"ioCount" description:"number of IO requests" tags:"kind,operation"`
	Failures   *stats.Int64Measure   `metric:"ioFailures" description:"number of failed IO requests" tags:"kind,operation"`
	Timing     *stats.Float64Measure `metric:"ioTiming" unit:"milliseconds" description:"duration of an IO request" tags:"kind,operation"`
	Bytes      *stats.Int64Measure   `metric:"ioBytes" unit:"bytes" description:"bytes transferred by an IO request" extraviews:"sum" tags:"kind,operation"`
	Throughput *stats.Float64Measure `metric:"ioThroughput" unit:"bps" description:"bytes per second transferred by an IO request" tags:"kind,operation"`
}

func (n *IOMetrics) tags(operation string) map[string]string {
	return map[string]string{"kind": "io", "operation": operation}
}

// IORecord returns a function recording a transfer started at start.
//
// Empty transfers are counted and timed, but do not record a size nor a throughput.
func (n *IOMetrics) IORecord(start time.Time, operation string) func(int64, error) {
	return func(size int64, err error) {
		elapsed := time.Since(start)
		tags := n.tags(operation)
		Float64(n.Timing, milliseconds(elapsed), tags)
		Inc(n.Count, tags)
		if err != nil {
			Inc(n.Failures, tags)
			return
		}
		if size == 0 {
			return
		}
		Int64(n.Bytes, size, tags)
		if elapsed > 0 {
			Float64(n.Throughput, float64(size)/elapsed.Seconds(), tags)
		}
	}
}

// FilesMetrics counts files and their sizes
type FilesMetrics struct {
	Count    *stats.Int64Measure `metric:"files" description:"number of files" extraviews:"sum" tags:"kind,operation"`
	FileSize *stats.Int64Measure `metric:"fileSize" unit:"bytes" description:"size of files" extraviews:"sum" tags:"kind,operation"`
}

func (f *FilesMetrics) tags(operation string) map[string]string {
	return map[string]string{"kind": "file", "operation": operation}
}

// Inc counts a file
func (f *FilesMetrics) Inc(operation string) {
	Inc(f.Count, f.tags(operation))
}

// Size records the size of a file
func (f *FilesMetrics) Size(size int64, operation string) {
	Int64(f.FileSize, size, f.tags(operation))
}
