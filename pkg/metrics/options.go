package metrics

import (
	"context"
	"time"

	"go.opencensus.io/stats/view"
	"go.uber.org/zap"
)

// Option for the metrics registry
type Option func(*registry)

// WithBasePath prefixes the names of all registered measures
func WithBasePath(location string) Option {
	return func(r *registry) {
		r.basePath = location
	}
}

// WithContexter sets the function providing the context of recorded measures. Defaults to context.Background.
func WithContexter(c func() context.Context) Option {
	return func(r *registry) {
		if c != nil {
			r.contexter = c
		}
	}
}

// WithExporter sets the exporter of view data. Defaults to a logging exporter.
func WithExporter(exporter view.Exporter) Option {
	return func(r *registry) {
		if exporter != nil {
			r.exporter = flusher(exporter)
		}
	}
}

// WithLogger sets the logger used by the registry and the default exporter
func WithLogger(l *zap.Logger) Option {
	return func(r *registry) {
		if l != nil {
			r.l = l
		}
	}
}

// WithReportingPeriod sets how often views are exported in the background.
// Periods under a second are ignored, leaving the opencensus default of 10s.
func WithReportingPeriod(d time.Duration) Option {
	return func(r *registry) {
		r.period = d
	}
}
