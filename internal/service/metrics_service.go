package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	appointments    prometheus.Counter
	transitions     *prometheus.CounterVec
	calendarReads   prometheus.Counter
	exportsQueued   *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
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

	appointments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appointment_requests_created_total",
		Help: "Total appointment requests filed",
	})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appointment_transitions_total",
		Help: "Appointment status transitions by outcome",
	}, []string{"outcome"})

	calendarReads := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calendar_downloads_total",
		Help: "Total ICS calendar downloads served",
	})

	exportsQueued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exports_queued_total",
		Help: "Export jobs queued by format",
	}, []string{"format"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, appointments, transitions, calendarReads, exportsQueued, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		appointments:    appointments,
		transitions:     transitions,
		calendarReads:   calendarReads,
		exportsQueued:   exportsQueued,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records per-request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordAppointmentCreated increments the filed request counter.
func (m *MetricsService) RecordAppointmentCreated() {
	if m == nil {
		return
	}
	m.appointments.Inc()
}

// RecordTransition counts a status transition outcome (approved,
// rejected, conflict).
func (m *MetricsService) RecordTransition(outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(outcome).Inc()
}

// RecordCalendarDownload counts a served ICS artifact.
func (m *MetricsService) RecordCalendarDownload() {
	if m == nil {
		return
	}
	m.calendarReads.Inc()
}

// RecordExportQueued counts a queued export by format.
func (m *MetricsService) RecordExportQueued(format string) {
	if m == nil {
		return
	}
	m.exportsQueued.WithLabelValues(format).Inc()
}
