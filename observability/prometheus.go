// Package observability exports manager metrics to Prometheus.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/spatialgo"
	"github.com/hupe1980/spatialgo/index"
)

// Options configures a PrometheusCollector.
type Options struct {
	// Namespace prefixes every metric name. Defaults to "spatialgo".
	Namespace string

	// Registerer receives the collectors. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// Buckets are the latency histogram buckets in seconds.
	Buckets []float64
}

// PrometheusCollector implements spatialgo.MetricsCollector.
type PrometheusCollector struct {
	opLatency *prometheus.HistogramVec
	ops       *prometheus.CounterVec
	results   *prometheus.CounterVec
	rebuilds  *prometheus.CounterVec
	rebuilt   *prometheus.CounterVec
	switches  *prometheus.CounterVec
}

var _ spatialgo.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates and registers the collector's metrics.
func NewPrometheusCollector(optFns ...func(o *Options)) (*PrometheusCollector, error) {
	opts := Options{
		Namespace:  "spatialgo",
		Registerer: prometheus.DefaultRegisterer,
		Buckets:    prometheus.ExponentialBuckets(1e-6, 4, 10),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &PrometheusCollector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of spatial index operations.",
			Buckets:   opts.Buckets,
		}, []string{"op", "status"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "operations_total",
			Help:      "Total spatial index operations.",
		}, []string{"op", "status"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "query_results_total",
			Help:      "Total results returned by read operations.",
		}, []string{"op"}),
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "rebuilds_total",
			Help:      "Total repopulations of the active index.",
		}, []string{"index"}),
		rebuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "rebuilt_items_total",
			Help:      "Total items inserted by index repopulations.",
		}, []string{"index"}),
		switches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "index_switches_total",
			Help:      "Total changes of the active index type.",
		}, []string{"from", "to"}),
	}

	for _, col := range []prometheus.Collector{c.opLatency, c.ops, c.results, c.rebuilds, c.rebuilt, c.switches} {
		if err := opts.Registerer.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *PrometheusCollector) observe(op index.Op, status string, d time.Duration) {
	c.opLatency.WithLabelValues(string(op), status).Observe(d.Seconds())
	c.ops.WithLabelValues(string(op), status).Inc()
}

// RecordInsert implements spatialgo.MetricsCollector.
func (c *PrometheusCollector) RecordInsert(d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.observe(index.OpInsert, status, d)
}

// RecordUpdate implements spatialgo.MetricsCollector.
func (c *PrometheusCollector) RecordUpdate(d time.Duration, found bool) {
	c.observe(index.OpUpdate, foundStatus(found), d)
}

// RecordRemove implements spatialgo.MetricsCollector.
func (c *PrometheusCollector) RecordRemove(d time.Duration, found bool) {
	c.observe(index.OpRemove, foundStatus(found), d)
}

// RecordQuery implements spatialgo.MetricsCollector.
func (c *PrometheusCollector) RecordQuery(op index.Op, results int, d time.Duration) {
	c.observe(op, "success", d)
	c.results.WithLabelValues(string(op)).Add(float64(results))
}

// RecordRebuild implements spatialgo.MetricsCollector.
func (c *PrometheusCollector) RecordRebuild(t index.Type, items int, d time.Duration) {
	c.observe(index.OpRebuild, "success", d)
	c.rebuilds.WithLabelValues(t.String()).Inc()
	c.rebuilt.WithLabelValues(t.String()).Add(float64(items))
}

// RecordSwitch implements spatialgo.MetricsCollector.
func (c *PrometheusCollector) RecordSwitch(from, to index.Type) {
	c.switches.WithLabelValues(from.String(), to.String()).Inc()
}

func foundStatus(found bool) string {
	if found {
		return "success"
	}
	return "not_found"
}
