// Package metrics owns the Prometheus collectors for the API and worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics groups the collectors registered on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	captureTotal    *prometheus.CounterVec
	captureLatency  prometheus.Histogram
	confirmTotal    *prometheus.CounterVec
	workflowsActive prometheus.Gauge
	jobsTotal       *prometheus.CounterVec
}

// New registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	captureTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "markr_capture_calls_total",
		Help: "Capture calls to the attendance backend by result",
	}, []string{"result"})

	captureLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "markr_capture_duration_seconds",
		Help:    "Latency of capture calls to the attendance backend",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	})

	confirmTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "markr_confirmations_total",
		Help: "Attendance confirmations by result",
	}, []string{"result"})

	workflowsActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "markr_workflows_active",
		Help: "Workflows currently held by the registry",
	})

	jobsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "markr_notification_jobs_total",
		Help: "Absence notification jobs by stage and result",
	}, []string{"stage", "result"})

	registry.MustRegister(requestDuration, requestTotal, captureTotal, captureLatency, confirmTotal, workflowsActive, jobsTotal,
		collectors.NewGoCollector())

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		captureTotal:    captureTotal,
		captureLatency:  captureLatency,
		confirmTotal:    confirmTotal,
		workflowsActive: workflowsActive,
		jobsTotal:       jobsTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(d.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
}

// ObserveCapture records one capture call.
func (m *Metrics) ObserveCapture(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.captureTotal.WithLabelValues(result(err)).Inc()
	m.captureLatency.Observe(d.Seconds())
}

// ObserveConfirm records one confirmation attempt.
func (m *Metrics) ObserveConfirm(err error) {
	if m == nil {
		return
	}
	m.confirmTotal.WithLabelValues(result(err)).Inc()
}

// SetActiveWorkflows reports the registry size.
func (m *Metrics) SetActiveWorkflows(n int) {
	if m == nil {
		return
	}
	m.workflowsActive.Set(float64(n))
}

// ObserveJob records a notification job at stage "enqueue" or "deliver".
func (m *Metrics) ObserveJob(stage string, err error) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(stage, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
