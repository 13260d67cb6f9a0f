// Package metrics exposes expansion engine activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tagvis/internal/expansion"
)

const namespace = "tagvis"

// Collector records engine events on its own registry. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	runsTotal     prometheus.Counter
	queriesTotal  *prometheus.CounterVec
	queryDuration prometheus.Histogram
	staleTotal    prometheus.Counter
	rendersTotal  prometheus.Counter
	treeNodes     prometheus.Gauge
	indexedFiles  prometheus.Gauge
	syncsTotal    *prometheus.CounterVec
	shedTotal     *prometheus.CounterVec
}

var _ expansion.Recorder = (*Collector)(nil)

// New creates a collector with Go runtime and process metrics included.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		runsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Expansion runs started.",
		}),
		queriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Provider queries by outcome.",
		}, []string{"outcome"}),
		queryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Provider query latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		staleTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_discarded_total",
			Help:      "Query results dropped because a newer run had started.",
		}),
		rendersTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Tree snapshots handed to renderers.",
		}),
		treeNodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tree_nodes",
			Help:      "Nodes in the last rendered tree.",
		}),
		indexedFiles: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_files",
			Help:      "Notes in the tag index after the last sync.",
		}),
		syncsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_syncs_total",
			Help:      "Index syncs by result.",
		}, []string{"result"}),
		shedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_shed_total",
			Help:      "API requests rejected because the index was saturated.",
		}, []string{"path"}),
	}
}

// RunStarted counts a new run.
func (c *Collector) RunStarted() {
	if c == nil {
		return
	}
	c.runsTotal.Inc()
}

// QueryObserved counts a query and records its latency.
func (c *Collector) QueryObserved(outcome string, seconds float64) {
	if c == nil {
		return
	}
	c.queriesTotal.WithLabelValues(outcome).Inc()
	c.queryDuration.Observe(seconds)
}

// StaleResultDiscarded counts a dropped result.
func (c *Collector) StaleResultDiscarded() {
	if c == nil {
		return
	}
	c.staleTotal.Inc()
}

// Rendered counts a render of a tree with the given number of nodes.
func (c *Collector) Rendered(nodes int) {
	if c == nil {
		return
	}
	c.rendersTotal.Inc()
	c.treeNodes.Set(float64(nodes))
}

// IndexSynced records the outcome of an index sync.
func (c *Collector) IndexSynced(files int, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.syncsTotal.WithLabelValues("error").Inc()
		return
	}
	c.syncsTotal.WithLabelValues("ok").Inc()
	c.indexedFiles.Set(float64(files))
}

// RequestShed counts an API request rejected by load shedding.
func (c *Collector) RequestShed(path string) {
	if c == nil {
		return
	}
	c.shedTotal.WithLabelValues(path).Inc()
}

// Registry returns the registry the collector's metrics live on.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
