package metrics

import (
	"context"
	"path"
	"reflect"
	"sync"
	"time"

	"github.com/docker/go-units"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
	"go.uber.org/zap"

	"github.com/paninifs/panini/pkg/metrics/exporters/logger"
)

const (
	unitCount        = "count"
	unitBytes        = "bytes"
	unitSumBytes     = "sumbytes"
	unitMilliseconds = "milliseconds"
	unitBps          = "bps"
)

// registry holds the registered measures, their views and the exporter
type registry struct {
	basePath  string
	contexter func() context.Context
	exporter  FlushExporter
	l         *zap.Logger
	period    time.Duration

	mx       sync.Mutex
	measures []stats.Measure
	views    []*view.View
	modules  map[string]interface{}
}

// DefaultExporter returns an exporter writing view data to a zap logger
func DefaultExporter(l *zap.Logger) view.Exporter {
	return logger.NewExporter(logger.WithLogger(l), logger.WithTags(map[string]string{"service": "panini"}))
}

func newRegistry(opts ...Option) *registry {
	r := &registry{
		contexter: context.Background,
		l:         zap.NewNop(),
		modules:   make(map[string]interface{}),
	}
	for _, apply := range opts {
		apply(r)
	}
	if r.exporter == nil {
		r.exporter = flusher(DefaultExporter(r.l))
	}

	view.RegisterExporter(r.exporter)
	if r.period >= time.Second {
		view.SetReportingPeriod(r.period)
	}
	return r
}

func (r *registry) EnsureMetrics(location string, m interface{}) interface{} {
	r.mx.Lock()
	defer r.mx.Unlock()

	location = path.Join(r.basePath, location)
	if existing, ok := r.modules[location]; ok {
		if reflect.TypeOf(existing) != reflect.TypeOf(m) {
			panic("metrics location " + location + " is already registered with another type")
		}
		return existing
	}
	allocate(location, r.newMeasure, m)
	r.modules[location] = m
	return m
}

// Flush exports the current data of all views, without waiting for the next reporting period
func (r *registry) Flush() {
	r.mx.Lock()
	views := append([]*view.View(nil), r.views...)
	r.mx.Unlock()

	now := time.Now()
	for _, v := range views {
		rows, err := view.RetrieveData(v.Name)
		if err != nil {
			continue
		}
		r.exporter.Flush(&view.Data{View: v, Start: now, End: now, Rows: rows})
	}
}

// newMeasure creates a measure with a default view picked from its unit, plus its extra views
func (r *registry) newMeasure(field reflect.Type, d declaration) interface{} {
	name := path.Join(d.group, d.name)
	description := d.description
	if description == "" {
		description = name
	}
	unit, aggregation := unitAndAggregation(d.unit)

	var (
		measure stats.Measure
		res     interface{}
	)
	switch field {
	case reflect.TypeOf(&stats.Int64Measure{}):
		m := stats.Int64(name, description, unit)
		measure, res = m, m
	case reflect.TypeOf(&stats.Float64Measure{}):
		m := stats.Float64(name, description, unit)
		measure, res = m, m
	default:
		return nil
	}
	r.measures = append(r.measures, measure)

	keys := make([]tag.Key, 0, len(d.tagKeys))
	for _, k := range d.tagKeys {
		keys = append(keys, tag.MustNewKey(k))
	}

	r.addView(name, description, measure, aggregation, keys)
	for _, extra := range d.extraViews {
		var agg *view.Aggregation
		switch extra {
		case unitCount:
			agg = view.Count()
		case "sum":
			agg = view.Sum()
		case "lastvalue":
			agg = view.LastValue()
		default:
			r.l.Warn("unsupported extra view", zap.String("measure", name), zap.String("view", extra))
			continue
		}
		r.addView(name+" "+aggregationSuffix(agg), description, measure, agg, keys)
	}
	return res
}

func (r *registry) addView(name, description string, measure stats.Measure, agg *view.Aggregation, keys []tag.Key) {
	v := &view.View{
		Name:        name,
		Description: description + " " + aggregationSuffix(agg),
		Measure:     measure,
		Aggregation: agg,
		TagKeys:     keys,
	}
	if err := view.Register(v); err != nil {
		r.l.Warn("could not register view", zap.String("view", name), zap.Error(err))
		return
	}
	r.views = append(r.views, v)
}

func unitAndAggregation(unit string) (string, *view.Aggregation) {
	switch unit {
	case unitMilliseconds:
		// milliseconds
		return stats.UnitMilliseconds, view.Distribution(
			1, 5, 10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000,
		)
	case unitBytes:
		// aligned on the default blob size ladder
		return stats.UnitBytes, view.Distribution(
			units.KiB, 2*units.KiB, 4*units.KiB, 8*units.KiB, 16*units.KiB, 32*units.KiB, 64*units.KiB,
			256*units.KiB, units.MiB, 4*units.MiB, 16*units.MiB, 256*units.MiB, 4*units.GiB,
		)
	case unitSumBytes:
		return stats.UnitBytes, view.Sum()
	case unitBps:
		return unitBps, view.Distribution(
			units.KiB, 10*units.KiB, 100*units.KiB, units.MiB, 10*units.MiB, 50*units.MiB, 100*units.MiB, 500*units.MiB,
		)
	default:
		return stats.UnitDimensionless, view.Count()
	}
}

func aggregationSuffix(agg *view.Aggregation) string {
	switch agg.Type {
	case view.AggTypeCount:
		return "[count]"
	case view.AggTypeSum:
		return "[sum]"
	case view.AggTypeDistribution:
		return "[distribution]"
	case view.AggTypeLastValue:
		return "[last]"
	default:
		return ""
	}
}

// FlushExporter is a view exporter which may also be flushed on demand,
// concurrently with the background reporting of opencensus
type FlushExporter interface {
	view.Exporter
	Flush(*view.Data)
}

func flusher(e view.Exporter) FlushExporter {
	if f, ok := e.(FlushExporter); ok {
		return f
	}
	return &serialExporter{e: e}
}

// serialExporter serializes on-demand flushes with background exports
type serialExporter struct {
	e  view.Exporter
	mx sync.RWMutex
}

func (s *serialExporter) ExportView(data *view.Data) {
	s.mx.RLock()
	s.e.ExportView(data)
	s.mx.RUnlock()
}

func (s *serialExporter) Flush(data *view.Data) {
	s.mx.Lock()
	s.e.ExportView(data)
	s.mx.Unlock()
}
