package metrics

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CurationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "curation_run_duration_seconds",
		Help:    "End to end duration of a curation run",
		Buckets: prometheus.DefBuckets,
	})

	CurationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curation_runs_total",
		Help: "Curation runs by terminal status",
	}, []string{"status"})

	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "curation_batch_size",
		Help:    "Number of candidates submitted per run",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000},
	})

	DiversityScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "curation_diversity_score",
		Help:    "Diversity score of completed selections",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})

	OpenGaps = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "curation_open_gaps",
		Help: "Active coverage gaps by severity",
	}, []string{"severity"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curation_cache_hits_total",
		Help: "Cache hits by cache type",
	}, []string{"cache_type"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curation_cache_misses_total",
		Help: "Cache misses by cache type",
	}, []string{"cache_type"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curation_queue_depth",
		Help: "Batch jobs waiting in the worker queue",
	})
)

// Init touches the label combinations we report on so the series exist
// from startup instead of appearing after the first event.
func Init() {
	for _, status := range []string{"completed", "failed", "discarded"} {
		CurationTotal.WithLabelValues(status)
	}
	for _, severity := range []string{"low", "medium", "high", "critical"} {
		OpenGaps.WithLabelValues(severity)
	}
	for _, cache := range []string{"taxonomy", "curation"} {
		CacheHits.WithLabelValues(cache)
		CacheMisses.WithLabelValues(cache)
	}
}

// MetricsHandler exposes the prometheus registry on a fiber route.
func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
