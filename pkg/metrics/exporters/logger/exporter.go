// Package logger provides an opencensus exporter writing view data to a zap logger.
package logger

import (
	"fmt"

	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
	"go.uber.org/zap"
)

var _ view.Exporter = &Exporter{}

// Exporter is an opencensus exporter which logs every exported row at debug level
type Exporter struct {
	l          *zap.Logger
	customTags map[string]string
}

// Option configures an exporter
type Option func(*Exporter)

// WithLogger sets the logger for this exporter
func WithLogger(l *zap.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.l = l
		}
	}
}

// WithTags sets or adds some tags to every logged record
func WithTags(tags map[string]string) Option {
	return func(e *Exporter) {
		for k, v := range tags {
			e.customTags[k] = v
		}
	}
}

// NewExporter creates a new logging exporter
func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{
		l:          zap.NewNop(),
		customTags: make(map[string]string),
	}
	for _, apply := range opts {
		apply(e)
	}
	return e
}

// ExportView logs collected metrics
func (e *Exporter) ExportView(viewData *view.Data) {
	if viewData == nil || viewData.View == nil {
		return
	}
	for _, row := range viewData.Rows {
		fields := make([]zap.Field, 0, 8)
		fields = append(fields,
			zap.String("view", viewData.View.Name),
			zap.Time("start", viewData.Start),
			zap.Duration("observationPeriod", viewData.End.Sub(viewData.Start)),
			zap.Any("tags", e.tags(row.Tags)),
		)

		switch d := row.Data.(type) {
		case *view.CountData:
			fields = append(fields, zap.String("aggregation", "count"), zap.Int64("value", d.Value))
		case *view.DistributionData:
			fields = append(fields,
				zap.String("aggregation", "distribution"),
				zap.Int64("count", d.Count),
				zap.Float64("min", d.Min),
				zap.Float64("max", d.Max),
				zap.Float64("mean", d.Mean),
				zap.Int64s("buckets", d.CountPerBucket),
			)
		case *view.LastValueData:
			fields = append(fields, zap.String("aggregation", "last"), zap.Float64("value", d.Value))
		case *view.SumData:
			fields = append(fields, zap.String("aggregation", "sum"), zap.Float64("value", d.Value))
		default:
			e.l.Warn("unknown aggregation data type", zap.String("view", viewData.View.Name), zap.String("type", fmt.Sprintf("%T", row.Data)))
			continue
		}
		e.l.Debug("metrics", fields...)
	}
}

func (e *Exporter) tags(rowTags []tag.Tag) map[string]string {
	res := make(map[string]string, len(e.customTags)+len(rowTags))
	for k, v := range e.customTags {
		res[k] = v
	}
	for _, t := range rowTags {
		res[t.Key.Name()] = t.Value
	}
	return res
}
