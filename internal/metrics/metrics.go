// Package metrics provides Prometheus metrics for the news pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

const namespace = "newspipe"

// Recorder holds the pipeline collectors. A nil *Recorder records nothing.
type Recorder struct {
	// RunsTotal counts pipeline runs by outcome (cached, fetched).
	RunsTotal *prometheus.CounterVec
	// RunDuration measures fetch runs end to end.
	RunDuration prometheus.Histogram
	// AdapterFetches counts adapter fetches by health.
	AdapterFetches *prometheus.CounterVec
	// AdapterLatency observes adapter latency in seconds.
	AdapterLatency *prometheus.HistogramVec
	// AdapterItems tracks the item count of the last fetch per adapter.
	AdapterItems *prometheus.GaugeVec
	// ItemsReturned observes the size of returned results.
	ItemsReturned prometheus.Histogram
	// CacheErrors counts failed cache writes.
	CacheErrors prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of pipeline runs",
			},
			[]string{"outcome"},
		),
		RunDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of uncached pipeline runs in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		AdapterFetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "adapter_fetches_total",
				Help:      "Total number of adapter fetches",
			},
			[]string{"adapter", "status"},
		),
		AdapterLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "adapter_latency_seconds",
				Help:      "Adapter fetch latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"adapter"},
		),
		AdapterItems: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "adapter_items",
				Help:      "Items returned by the last fetch of each adapter",
			},
			[]string{"adapter"},
		),
		ItemsReturned: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "items_returned",
				Help:      "Distribution of result sizes",
				Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
			},
		),
		CacheErrors: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_errors_total",
				Help:      "Total number of failed cache writes",
			},
		),
	}
}

// RecordAdapter records one adapter health report. Skipped reports are ignored.
func (r *Recorder) RecordAdapter(h news.Health) {
	if r == nil || h.IsSkipped() {
		return
	}
	status := "healthy"
	if !h.Healthy {
		status = "unhealthy"
	}
	r.AdapterFetches.WithLabelValues(h.Name, status).Inc()
	r.AdapterItems.WithLabelValues(h.Name).Set(float64(h.ItemsLastFetch))
	if h.LatencyMS != nil {
		r.AdapterLatency.WithLabelValues(h.Name).Observe(*h.LatencyMS / 1000)
	}
}

// RecordRun records a completed run.
func (r *Recorder) RecordRun(cached bool, items int, d time.Duration) {
	if r == nil {
		return
	}
	if cached {
		r.RunsTotal.WithLabelValues("cached").Inc()
		return
	}
	r.RunsTotal.WithLabelValues("fetched").Inc()
	r.RunDuration.Observe(d.Seconds())
	r.ItemsReturned.Observe(float64(items))
}

func (r *Recorder) RecordCacheError() {
	if r == nil {
		return
	}
	r.CacheErrors.Inc()
}
