// Package metrics collects run counters and exports them in the node
// exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sysmlsql"

// Metrics holds the counters of one process.
type Metrics struct {
	registry *prometheus.Registry

	ElementsImported           prometheus.Counter
	RelationsImported          prometheus.Counter
	ExtendedPropertiesImported prometheus.Counter
	FetchPages                 prometheus.Counter
	FetchElements              prometheus.Counter
	RunDuration                *prometheus.GaugeVec
}

// New creates a set of metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ElementsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elements_imported_total",
			Help:      "Elements written to the store.",
		}),
		RelationsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relations_imported_total",
			Help:      "Relations written to the store.",
		}),
		ExtendedPropertiesImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extended_properties_imported_total",
			Help:      "Extended property rows written to the store.",
		}),
		FetchPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_pages_total",
			Help:      "Non-empty pages fetched from the API.",
		}),
		FetchElements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_elements_total",
			Help:      "Elements fetched from the API.",
		}),
		RunDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run per command.",
		}, []string{"command"}),
	}
	m.registry.MustRegister(
		m.ElementsImported,
		m.RelationsImported,
		m.ExtendedPropertiesImported,
		m.FetchPages,
		m.FetchElements,
		m.RunDuration,
	)
	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveImport adds the counts of one import.
func (m *Metrics) ObserveImport(elements, relations, extended int) {
	m.ElementsImported.Add(float64(elements))
	m.RelationsImported.Add(float64(relations))
	m.ExtendedPropertiesImported.Add(float64(extended))
}

// ObserveFetch adds the counts of one fetch.
func (m *Metrics) ObserveFetch(pages, elements int) {
	m.FetchPages.Add(float64(pages))
	m.FetchElements.Add(float64(elements))
}

// ObserveRun records the duration of command.
func (m *Metrics) ObserveRun(command string, d time.Duration) {
	m.RunDuration.WithLabelValues(command).Set(d.Seconds())
}

// WriteTextfile atomically writes all metrics to path.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
