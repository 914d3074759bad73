// Package telemetry exposes Prometheus metrics for batch sweeps. The
// engine itself never touches these; only the batch runner records into
// them, so single runs stay dependency-free.
package telemetry

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry holds all backrun Prometheus collectors.
type Registry struct {
	reg *prometheus.Registry

	JobsStarted   prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    *prometheus.CounterVec
	JobDuration   prometheus.Histogram
	ActiveJobs    prometheus.Gauge
	BarsProcessed prometheus.Counter
}

// NewRegistry creates a registry with all collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		JobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backrun_jobs_started_total",
			Help: "Total number of backtest jobs started",
		}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backrun_jobs_completed_total",
			Help: "Total number of backtest jobs completed successfully",
		}),
		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backrun_jobs_failed_total",
			Help: "Total number of backtest jobs failed, by reason",
		}, []string{"reason"}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backrun_job_duration_seconds",
			Help:    "Wall-clock duration of individual backtest jobs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		}),
		ActiveJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backrun_active_jobs",
			Help: "Number of backtest jobs currently executing",
		}),
		BarsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backrun_bars_processed_total",
			Help: "Total number of bars replayed across all jobs",
		}),
	}

	reg.MustRegister(r.JobsStarted, r.JobsCompleted, r.JobsFailed,
		r.JobDuration, r.ActiveJobs, r.BarsProcessed)

	return r
}

// ObserveJob records one finished job.
func (r *Registry) ObserveJob(duration time.Duration, bars int, err error, reason string) {
	if r == nil {
		return
	}
	r.JobDuration.Observe(duration.Seconds())
	r.BarsProcessed.Add(float64(bars))
	if err != nil {
		r.JobsFailed.WithLabelValues(reason).Inc()
	} else {
		r.JobsCompleted.Inc()
	}
}

// Handler returns an HTTP handler with /metrics and /health routes.
func (r *Registry) Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	return router
}

// Serve starts the metrics endpoint in the background. Intended for long
// sweep runs; errors are logged, not fatal.
func (r *Registry) Serve(addr string) {
	go func() {
		if err := http.ListenAndServe(addr, r.Handler()); err != nil {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
}
