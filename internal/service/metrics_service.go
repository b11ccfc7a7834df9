package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// scheduling engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	schedulingTotal *prometheus.CounterVec
	calendarSync    *prometheus.CounterVec
	fanoutTotal     *prometheus.CounterVec
	sweepCompleted  prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers the core Prometheus collectors.
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

	schedulingTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_scheduling_total",
		Help: "Scheduling attempts by outcome",
	}, []string{"outcome"})

	calendarSync := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_sync_total",
		Help: "Calendar sync attempts by outcome",
	}, []string{"outcome"})

	fanoutTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_fanout_total",
		Help: "Notification fanout batches by outcome",
	}, []string{"outcome"})

	sweepCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exam_sweep_completed_total",
		Help: "Exams promoted to SELESAI by the completion sweep",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, schedulingTotal, calendarSync, fanoutTotal, sweepCompleted, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		schedulingTotal: schedulingTotal,
		calendarSync:    calendarSync,
		fanoutTotal:     fanoutTotal,
		sweepCompleted:  sweepCompleted,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordSchedulingOutcome counts an assignment attempt. Outcomes are
// "scheduled", "rescheduled", "conflict", "validation" and "error".
func (m *MetricsService) RecordSchedulingOutcome(outcome string) {
	if m == nil {
		return
	}
	m.schedulingTotal.WithLabelValues(outcome).Inc()
}

// RecordCalendarSync counts a sync attempt. Outcomes are "synced",
// "needs_reauth" and "failed".
func (m *MetricsService) RecordCalendarSync(outcome string) {
	if m == nil {
		return
	}
	m.calendarSync.WithLabelValues(outcome).Inc()
}

// RecordFanout counts a notification batch delivery.
func (m *MetricsService) RecordFanout(ok bool) {
	if m == nil {
		return
	}
	outcome := "delivered"
	if !ok {
		outcome = "failed"
	}
	m.fanoutTotal.WithLabelValues(outcome).Inc()
}

// RecordSweep adds the number of exams the completion sweep promoted.
func (m *MetricsService) RecordSweep(promoted int64) {
	if m == nil || promoted <= 0 {
		return
	}
	m.sweepCompleted.Add(float64(promoted))
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
