package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic,
// the cache and the ledger and wage operations.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	ledgersCreated    prometheus.Counter
	attendanceUpdates prometheus.Counter
	lessonsDeleted    prometheus.Counter
	wageGroups        *prometheus.CounterVec
	wagePayments      *prometheus.CounterVec
	versionConflicts  *prometheus.CounterVec
	calculationTime   prometheus.Histogram

	cacheHitCount  uint64
	cacheMissCount uint64
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
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	ledgersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_ledgers_created_total",
		Help: "Attendance ledgers seeded from class schedules",
	})

	attendanceUpdates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_entries_updated_total",
		Help: "Student attendance flags overwritten",
	})

	lessonsDeleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_lessons_deleted_total",
		Help: "Lesson records removed administratively",
	})

	wageGroups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wage_calculation_groups_total",
		Help: "Teacher/class groups processed by monthly wage calculation",
	}, []string{"outcome"})

	wagePayments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wage_payments_total",
		Help: "Wage records receiving a payment",
	}, []string{"kind"})

	versionConflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "version_conflicts_total",
		Help: "Optimistic concurrency conflicts detected on write",
	}, []string{"entity"})

	calculationTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wage_calculation_duration_seconds",
		Help:    "Duration of monthly wage calculation passes",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		ledgersCreated, attendanceUpdates, lessonsDeleted,
		wageGroups, wagePayments, versionConflicts, calculationTime,
		goroutines,
	)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		ledgersCreated:    ledgersCreated,
		attendanceUpdates: attendanceUpdates,
		lessonsDeleted:    lessonsDeleted,
		wageGroups:        wageGroups,
		wagePayments:      wagePayments,
		versionConflicts:  versionConflicts,
		calculationTime:   calculationTime,
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

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordLedgerCreated counts a seeded attendance ledger.
func (m *MetricsService) RecordLedgerCreated() {
	if m == nil {
		return
	}
	m.ledgersCreated.Inc()
}

// RecordAttendanceUpdates counts overwritten attendance flags.
func (m *MetricsService) RecordAttendanceUpdates(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.attendanceUpdates.Add(float64(count))
}

// RecordLessonDeleted counts an administrative lesson removal.
func (m *MetricsService) RecordLessonDeleted() {
	if m == nil {
		return
	}
	m.lessonsDeleted.Inc()
}

// RecordWageCalculation records the outcome counts and duration of a monthly pass.
func (m *MetricsService) RecordWageCalculation(created, updated, failed int, duration time.Duration) {
	if m == nil {
		return
	}
	m.wageGroups.WithLabelValues("created").Add(float64(created))
	m.wageGroups.WithLabelValues("updated").Add(float64(updated))
	m.wageGroups.WithLabelValues("failed").Add(float64(failed))
	m.calculationTime.Observe(duration.Seconds())
}

// RecordWagePayments counts wage records paid through kind ("single" or "bulk").
func (m *MetricsService) RecordWagePayments(kind string, records int) {
	if m == nil || records <= 0 {
		return
	}
	m.wagePayments.WithLabelValues(kind).Add(float64(records))
}

// RecordVersionConflict counts an optimistic concurrency retry.
func (m *MetricsService) RecordVersionConflict(entity string) {
	if m == nil {
		return
	}
	m.versionConflicts.WithLabelValues(entity).Inc()
}
