package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the grading engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	gradeWrites     *prometheus.CounterVec
	versionRetries  prometheus.Counter
	rankingBuilds   prometheus.Histogram
	reportBuilds    *prometheus.HistogramVec
	autoGradedTotal prometheus.Counter
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for exam payload cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total exam payload cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total exam payload cache misses",
	})

	gradeWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grade_component_writes_total",
		Help: "Subject grade component writes by component",
	}, []string{"component"})

	versionRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grade_version_retries_total",
		Help: "Retries caused by concurrent grade writes",
	})

	rankingBuilds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ranking_build_duration_seconds",
		Help:    "Duration of class ranking computations",
		Buckets: prometheus.DefBuckets,
	})

	reportBuilds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "report_build_duration_seconds",
		Help:    "Duration of report generation by kind",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	autoGradedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auto_graded_questions_total",
		Help: "Questions graded automatically from submitted attempts",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		gradeWrites, versionRetries, rankingBuilds, reportBuilds, autoGradedTotal, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		gradeWrites:     gradeWrites,
		versionRetries:  versionRetries,
		rankingBuilds:   rankingBuilds,
		reportBuilds:    reportBuilds,
		autoGradedTotal: autoGradedTotal,
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

// RecordCacheOperation records an exam payload cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordGradeWrite counts a successful component write.
func (m *MetricsService) RecordGradeWrite(component string) {
	if m == nil {
		return
	}
	m.gradeWrites.WithLabelValues(component).Inc()
}

// RecordVersionRetry counts a write retried after a concurrent update.
func (m *MetricsService) RecordVersionRetry() {
	if m == nil {
		return
	}
	m.versionRetries.Inc()
}

// ObserveRankingBuild records a class ranking computation.
func (m *MetricsService) ObserveRankingBuild(duration time.Duration) {
	if m == nil {
		return
	}
	m.rankingBuilds.Observe(duration.Seconds())
}

// ObserveReportBuild records report generation timing by kind (term, annual, sheet).
func (m *MetricsService) ObserveReportBuild(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.reportBuilds.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordAutoGraded counts questions graded automatically.
func (m *MetricsService) RecordAutoGraded(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.autoGradedTotal.Add(float64(count))
}
