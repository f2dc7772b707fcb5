// Package metrics exposes prometheus collectors for schedule generation,
// job streaming and the external clients.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	generationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chanplan_generation_runs_total",
		Help: "Completed schedule generation runs by final status",
	}, []string{"status"}) // status=completed|failed|cancelled

	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "chanplan_generation_duration_seconds",
		Help: "Wall time of a full generation run",
		// Runs span seconds to minutes depending on pool size and
		// iteration count.
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	iterationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chanplan_iteration_duration_seconds",
		Help:    "Wall time of a single candidate-schedule iteration",
		Buckets: prometheus.DefBuckets,
	})

	activeJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chanplan_active_jobs",
		Help: "Jobs currently queued or running",
	})

	jobSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chanplan_job_subscribers",
		Help: "Connected job-event subscribers (websocket + SSE)",
	})

	externalRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chanplan_external_request_duration_seconds",
		Help:    "Latency of upstream calls by service",
		Buckets: prometheus.DefBuckets,
	}, []string{"service"}) // service=plex|tmdb|sink|suggest

	catalogItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chanplan_catalog_items",
		Help: "Catalog items stored per media server (last sync)",
	}, []string{"server"})
)

// ObserveGeneration records one finished generation run.
func ObserveGeneration(status string, d time.Duration) {
	if status == "" {
		status = "unknown"
	}
	generationRuns.WithLabelValues(status).Inc()
	generationDuration.Observe(d.Seconds())
}

// ObserveIteration records one candidate-schedule build.
func ObserveIteration(d time.Duration) {
	iterationDuration.Observe(d.Seconds())
}

// JobStarted / JobFinished track the active-jobs gauge.
func JobStarted()  { activeJobs.Inc() }
func JobFinished() { activeJobs.Dec() }

// SubscriberAdded / SubscriberRemoved track connected event consumers.
func SubscriberAdded()   { jobSubscribers.Inc() }
func SubscriberRemoved() { jobSubscribers.Dec() }

// ObserveExternalRequest records one upstream call.
func ObserveExternalRequest(service string, d time.Duration) {
	if service == "" {
		service = "unknown"
	}
	externalRequestDuration.WithLabelValues(service).Observe(d.Seconds())
}

// SetCatalogSize records the post-sync item count for a server.
func SetCatalogSize(server string, n int) {
	if server == "" {
		server = "unknown"
	}
	catalogItems.WithLabelValues(server).Set(float64(n))
}

// Handler serves the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
