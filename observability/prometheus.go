package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusFactory is a MetricFactory backed by a private Prometheus
// registry. Dotted names are mapped to underscores.
type PrometheusFactory struct {
	registry *prometheus.Registry
	handler  http.Handler

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheusFactory initializes an empty registry.
func NewPrometheusFactory() *PrometheusFactory {
	registry := prometheus.NewRegistry()
	return &PrometheusFactory{
		registry:   registry,
		handler:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Counter returns the counter called name, registering it on first use.
func (f *PrometheusFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricName(name) + "_total",
		Help: "Count of " + name + " events.",
	})
	f.registry.MustRegister(c)
	f.counters[name] = c
	return c
}

// Histogram returns the histogram called name, registering it on first use.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    metricName(name),
		Help:    "Distribution of " + name + ".",
		Buckets: prometheus.DefBuckets,
	})
	f.registry.MustRegister(h)
	f.histograms[name] = h
	return h
}

// Handler returns the /metrics handler for this registry.
func (f *PrometheusFactory) Handler() http.Handler { return f.handler }

// Registerer exposes the registry for additional collectors.
func (f *PrometheusFactory) Registerer() prometheus.Registerer { return f.registry }

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
