package mocks

import (
	"sync"

	"go.opencensus.io/stats/view"
)

// NewExporter builds a new mock opencensus exporter
func NewExporter() *Exporter {
	return &Exporter{}
}

var _ view.Exporter = &Exporter{}

// Exporter is a mocked up opencensus exporter which retains exported views
type Exporter struct {
	mx    sync.Mutex
	views []string
}

// ExportView records the name of the exported view for test purpose
func (e *Exporter) ExportView(viewData *view.Data) {
	e.mx.Lock()
	defer e.mx.Unlock()
	e.views = append(e.views, viewData.View.Name)
}

// Views returns the names of all exported views so far
func (e *Exporter) Views() []string {
	e.mx.Lock()
	defer e.mx.Unlock()
	return append([]string(nil), e.views...)
}
