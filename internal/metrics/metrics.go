// Package metrics provides Prometheus instrumentation for contagion sweeps
// and the daemon's HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
)

const namespace = "contagion"

// Metrics owns a registry and every collector registered on it.
// It implements montecarlo.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	TrialsTotal         *prometheus.CounterVec
	CascadeFraction     prometheus.Histogram
	PointProbability    *prometheus.GaugeVec
	PointRealizedDegree *prometheus.GaugeVec
	PointsTotal         prometheus.Counter
	SweepsTotal         *prometheus.CounterVec
	ActiveSweeps        prometheus.Gauge
	SweepDuration       prometheus.Histogram
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers the contagion collectors plus the Go and process
// collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		TrialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_total",
			Help:      "Cascade trials run, partitioned by whether the cascade was systemic.",
		}, []string{"systemic"}),
		CascadeFraction: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cascade_fraction",
			Help:      "Fraction of banks defaulted per trial.",
			Buckets:   []float64{0.002, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 0.75, 1},
		}),
		PointProbability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probability",
			Help:      "Latest estimated probability of contagion per density.",
		}, []string{"density"}),
		PointRealizedDegree: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realized_degree",
			Help:      "Mean realized borrowing degree of the latest point per density.",
		}, []string{"density"}),
		PointsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_total",
			Help:      "Density points completed.",
		}),
		SweepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Sweeps finished, partitioned by terminal status.",
		}, []string{"status"}),
		ActiveSweeps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sweeps",
			Help:      "Sweeps currently running.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of finished sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method", "path"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TrialsTotal,
		m.CascadeFraction,
		m.PointProbability,
		m.PointRealizedDegree,
		m.PointsTotal,
		m.SweepsTotal,
		m.ActiveSweeps,
		m.SweepDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTrial records one cascade trial.
func (m *Metrics) ObserveTrial(density, fraction float64, systemic bool) {
	m.TrialsTotal.WithLabelValues(strconv.FormatBool(systemic)).Inc()
	m.CascadeFraction.Observe(fraction)
}

// ObservePoint records a completed density point.
func (m *Metrics) ObservePoint(point models.SweepPoint) {
	key := models.FormatDensityKey(point.Density)
	m.PointProbability.WithLabelValues(key).Set(point.Probability)
	m.PointRealizedDegree.WithLabelValues(key).Set(point.RealizedDegree)
	m.PointsTotal.Inc()
}

// SweepStarted marks a sweep as running.
func (m *Metrics) SweepStarted() {
	m.ActiveSweeps.Inc()
}

// SweepFinished records a sweep reaching a terminal status.
func (m *Metrics) SweepFinished(status models.RunStatus, elapsed time.Duration) {
	m.ActiveSweeps.Dec()
	m.SweepsTotal.WithLabelValues(string(status)).Inc()
	m.SweepDuration.Observe(elapsed.Seconds())
}

// Handler returns the Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware returns an HTTP middleware that records request metrics.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := RouteLabel(r.URL.Path)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// OtherRoute labels every path the daemon does not serve.
const OtherRoute = "other"

var knownRoutes = map[string]bool{
	"/healthz":      true,
	"/metrics":      true,
	"/v1/sweeps":    true,
	"/v1/curve":     true,
	"/v1/curve.png": true,
}

// RouteLabel maps a request path onto one of the daemon's routes, with sweep
// IDs replaced by a placeholder, so the path label keeps a bounded
// cardinality.
func RouteLabel(path string) string {
	if knownRoutes[path] {
		return path
	}
	const prefix = "/v1/sweeps/"
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return OtherRoute
	}
	id, action, hasAction := strings.Cut(rest, ":")
	switch {
	case id == "":
		return OtherRoute
	case !hasAction:
		return prefix + "{id}"
	case action == "start" || action == "stop":
		return prefix + "{id}:" + action
	default:
		return OtherRoute
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
