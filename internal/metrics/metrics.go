// Package metrics holds the Prometheus instruments exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Batch outcomes.
const (
	OutcomeStored   = "stored"
	OutcomeRejected = "rejected" // schema invalid
	OutcomeFailed   = "failed"   // model or store failure
)

var (
	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neurotunes_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Ingestion
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotunes_batches_total",
			Help: "Uploaded batches by source and outcome",
		},
		[]string{"source", "outcome"}, // source: "api", "inbox"
	)

	ObservationsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "neurotunes_observations_stored_total",
			Help: "Measurement rows persisted to patient histories",
		},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "neurotunes_batch_duration_seconds",
			Help:    "Time from validation to commit for one batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Classifier
	ModelLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "neurotunes_model_loaded",
			Help: "1 when a genre model is loaded",
		},
	)

	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotunes_predictions_total",
			Help: "Row predictions by decoded genre",
		},
		[]string{"genre"},
	)

	// Store
	StoreBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "neurotunes_store_breaker_state",
			Help: "Store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotunes_store_errors_total",
			Help: "Store operations that counted against the breaker",
		},
		[]string{"operation"},
	)

	// Recommendations and activity
	RecommendationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotunes_recommendations_created_total",
			Help: "Recommendation records created",
		},
		[]string{"source"}, // "manual", "patient"
	)

	PlaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotunes_plays_total",
			Help: "Recorded track plays by genre",
		},
		[]string{"genre"},
	)

	InboxFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotunes_inbox_files_total",
			Help: "Drop-folder files handled by outcome",
		},
		[]string{"outcome"}, // "processed", "failed"
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request latency by route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
