// Package metrics exposes Prometheus counters and histograms for
// plugin load/unload and execution activity, grounded in the teacher's
// direct dependency on prometheus/client_golang. Metrics are purely
// observational: the Manager calls into this package as a side effect,
// never the reverse.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the plugin host registers. A caller
// passes a dedicated *prometheus.Registry so tests never collide with
// the global default registry.
type Metrics struct {
	PluginsLoaded      prometheus.Gauge
	LoadsTotal         *prometheus.CounterVec
	UnloadsTotal       prometheus.Counter
	ExecutionsTotal    *prometheus.CounterVec
	ExecutionDuration  *prometheus.HistogramVec
	ExecutionAttempts  *prometheus.HistogramVec
	ConfigReloadsTotal prometheus.Counter
	RescansTotal       prometheus.Counter
}

// New registers every collector against reg and returns the bundle.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PluginsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "plughost",
			Name:      "plugins_loaded",
			Help:      "Number of plugins currently loaded in the registry.",
		}),
		LoadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plughost",
			Name:      "plugin_loads_total",
			Help:      "Total plugin load attempts, labeled by outcome.",
		}, []string{"outcome"}),
		UnloadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "plughost",
			Name:      "plugin_unloads_total",
			Help:      "Total successful plugin unloads.",
		}),
		ExecutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plughost",
			Name:      "plugin_executions_total",
			Help:      "Total plugin executions, labeled by plugin name and outcome.",
		}, []string{"plugin", "outcome"}),
		ExecutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plughost",
			Name:      "plugin_execution_duration_seconds",
			Help:      "Plugin execution wall-clock duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"plugin"}),
		ExecutionAttempts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plughost",
			Name:      "plugin_execution_attempts",
			Help:      "Number of attempts taken per execution, including retries.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}, []string{"plugin"}),
		ConfigReloadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "plughost",
			Name:      "config_reloads_total",
			Help:      "Total configuration reloads.",
		}),
		RescansTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "plughost",
			Name:      "rescans_total",
			Help:      "Total plugin directory rescans.",
		}),
	}
}

// ObserveLoad records a load attempt outcome and updates the loaded gauge.
func (m *Metrics) ObserveLoad(success bool, loadedCount int) {
	if success {
		m.LoadsTotal.WithLabelValues("success").Inc()
	} else {
		m.LoadsTotal.WithLabelValues("failure").Inc()
	}
	m.PluginsLoaded.Set(float64(loadedCount))
}

// ObserveUnload records a successful unload and updates the loaded gauge.
func (m *Metrics) ObserveUnload(loadedCount int) {
	m.UnloadsTotal.Inc()
	m.PluginsLoaded.Set(float64(loadedCount))
}

// ObserveExecution records one completed execution, successful or not.
func (m *Metrics) ObserveExecution(plugin string, success bool, durationSeconds float64, attempts int) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.ExecutionsTotal.WithLabelValues(plugin, outcome).Inc()
	m.ExecutionDuration.WithLabelValues(plugin).Observe(durationSeconds)
	m.ExecutionAttempts.WithLabelValues(plugin).Observe(float64(attempts))
}
