// Package metrics holds the Prometheus collectors of a fetch run and of the
// read API, each on its own registry.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockdaily/internal/aggregate"
	"stockdaily/internal/store"
)

const namespace = "stockdaily"

// Run collects the outcome of one fetch run.
type Run struct {
	reg *prometheus.Registry

	Fetched         *prometheus.CounterVec
	Skipped         *prometheus.CounterVec
	PersistFailures *prometheus.CounterVec
	Duration        prometheus.Gauge
	LastSuccess     prometheus.Gauge
}

func NewRun() *Run {
	r := &Run{
		reg: prometheus.NewRegistry(),
		Fetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "securities_total",
			Help:      "Securities fetched and normalized, by market",
		}, []string{"market"}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "skipped_total",
			Help:      "Securities skipped, by market and reason",
		}, []string{"market", "reason"}),
		PersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "failures_total",
			Help:      "Persistence failures, by step",
		}, []string{"step"}),
		Duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall time of the last run",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that persisted all artifacts",
		}),
	}
	r.reg.MustRegister(r.Fetched, r.Skipped, r.PersistFailures, r.Duration, r.LastSuccess)
	return r
}

// ObserveResult counts the fetched and skipped securities of res.
func (r *Run) ObserveResult(res aggregate.Result) {
	for _, e := range res.Entries {
		r.Fetched.WithLabelValues(string(e.Market)).Inc()
	}
	for _, s := range res.Skipped {
		r.Skipped.WithLabelValues(string(s.Entry.Market), s.Reason).Inc()
	}
}

// ObservePersist records err by failing step. A nil err marks the run
// successful at now.
func (r *Run) ObservePersist(err error, now time.Time) {
	if err == nil {
		r.LastSuccess.Set(float64(now.Unix()))
		return
	}
	step := "unknown"
	var perr *store.PersistenceError
	if errors.As(err, &perr) {
		step = string(perr.Step)
	}
	r.PersistFailures.WithLabelValues(step).Inc()
}

func (r *Run) ObserveDuration(d time.Duration) { r.Duration.Set(d.Seconds()) }

// WriteTextfile writes the run metrics for the node-exporter textfile
// collector.
func (r *Run) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}

func (r *Run) Registry() *prometheus.Registry { return r.reg }

// HTTP instruments the read API.
type HTTP struct {
	reg      *prometheus.Registry
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

func NewHTTP() *HTTP {
	h := &HTTP{
		reg: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	h.reg.MustRegister(h.Requests, h.Latency, collectors.NewGoCollector())
	return h
}

// Handler exposes the registry in the Prometheus text format.
func (h *HTTP) Handler() http.Handler {
	return promhttp.HandlerFor(h.reg, promhttp.HandlerOpts{})
}

// Middleware records count and latency of requests under route.
func (h *HTTP) Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		h.Requests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		h.Latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
