// Package metrics collects opencensus measures declared with struct tags.
//
// A component declares its measures as fields of a struct:
//
//	type M struct {
//	  Usage metrics.UsageMetrics `group:"telemetry" description:"usage stats"`
//	}
//
// and registers it once with EnsureMetrics. Registration allocates every measure
// and its views. Measures are then recorded with Inc, Int64, Float64 or Since,
// or with the helpers of the shared metric types.
package metrics

import (
	"sync"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

var (
	global     *registry
	globalOnce sync.Once
)

// Init sets up the global registry, its exporter and base path.
//
// Only the first call has an effect. Registering metrics before Init sets up
// the registry with default options.
func Init(opts ...Option) {
	globalOnce.Do(func() {
		global = newRegistry(opts...)
	})
}

func current() *registry {
	Init()
	return global
}

// Flush exports the current data of all registered views
func Flush() {
	current().Flush()
}

// EnsureMetrics registers a struct of measures under some location.
//
// A location is registered once: later calls return the first registered struct,
// and panic if it is of a different type.
func EnsureMetrics(location string, m interface{}) interface{} {
	return current().EnsureMetrics(location, m)
}

// Inc increments a counter
func Inc(counter *stats.Int64Measure, tags ...map[string]string) {
	record(counter.M(1), tags)
}

// Int64 records an integer value
func Int64(measure *stats.Int64Measure, value int64, tags ...map[string]string) {
	record(measure.M(value), tags)
}

// Float64 records a floating point value
func Float64(measure *stats.Float64Measure, value float64, tags ...map[string]string) {
	record(measure.M(value), tags)
}

// Since records the milliseconds elapsed since start
func Since(start time.Time, measure *stats.Float64Measure, tags ...map[string]string) {
	Float64(measure, milliseconds(time.Since(start)), tags...)
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

func record(m stats.Measurement, tags []map[string]string) {
	r := current()
	var mutators []tag.Mutator
	for _, extra := range tags {
		for k, v := range extra {
			mutators = append(mutators, tag.Upsert(tag.MustNewKey(k), v))
		}
	}
	_ = stats.RecordWithTags(r.contexter(), mutators, m)
}

// Enable is embedded by instrumented types to toggle their metrics.
//
//	type store struct {
//	  metrics.Enable
//	  m *M
//	}
//
//	if s.MetricsEnabled() {
//	  s.m = s.EnsureMetrics("store", &M{}).(*M)
//	}
type Enable struct {
	metricsEnabled bool
}

// MetricsEnabled tells whether metrics are enabled or not
func (e Enable) MetricsEnabled() bool {
	return e.metricsEnabled
}

// EnableMetrics toggles metrics collection
func (e *Enable) EnableMetrics(enabled bool) {
	e.metricsEnabled = enabled
}

// EnsureMetrics registers a struct of measures with the global registry
func (e *Enable) EnsureMetrics(name string, m interface{}) interface{} {
	return EnsureMetrics(name, m)
}
