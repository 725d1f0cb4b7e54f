// Package prometheus provides a Prometheus-backed stats collector.
package prometheus

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hailam/chessponder/internal/stats"
)

// Collector implements stats.Collector with metrics created on first use.
type Collector struct {
	registry prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

var _ stats.Collector = (*Collector)(nil)

// New creates a collector registering into registry, or into
// prometheus.DefaultRegisterer when registry is nil.
func New(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Collector{
		registry:   registry,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// IncCounter increments a counter metric.
func (c *Collector) IncCounter(name string, delta int64) {
	counter := getOrCreate(c, c.counters, name, func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help(name)})
	})
	counter.Add(float64(delta))
}

// SetGauge sets a gauge metric.
func (c *Collector) SetGauge(name string, value int64) {
	gauge := getOrCreate(c, c.gauges, name, func() prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help(name)})
	})
	gauge.Set(float64(value))
}

// ObserveHistogram records a value in a histogram. Node counts get
// exponential buckets; everything else is assumed to be seconds.
func (c *Collector) ObserveHistogram(name string, value float64) {
	histogram := getOrCreate(c, c.histograms, name, func() prometheus.Histogram {
		buckets := prometheus.DefBuckets
		if strings.HasSuffix(name, "_nodes") {
			buckets = prometheus.ExponentialBuckets(1000, 4, 10)
		}
		return prometheus.NewHistogram(prometheus.HistogramOpts{Name: name, Help: help(name), Buckets: buckets})
	})
	histogram.Observe(value)
}

func getOrCreate[M prometheus.Collector](c *Collector, metrics map[string]M, name string, create func() M) M {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := metrics[name]; ok {
		return m
	}
	m := create()
	if err := c.registry.Register(m); err != nil {
		// Another collector sharing the registry got there first.
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(M); ok {
				m = existing
			}
		}
	}
	metrics[name] = m
	return m
}

func help(name string) string {
	return strings.ReplaceAll(strings.TrimPrefix(name, "chessponder_"), "_", " ")
}
