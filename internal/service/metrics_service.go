package service

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsService holds the Prometheus collectors of a report run and can flush them to a
// node-exporter textfile.
type MetricsService struct {
	registry        *prometheus.Registry
	rowsFetched     *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	attachments     *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runsTotal       *prometheus.CounterVec
	lastSuccess     *prometheus.GaugeVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the report collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	rowsFetched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_rows_fetched_total",
		Help: "Attendance rows returned by the store, by scope",
	}, []string{"scope"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attendance_query_duration_seconds",
		Help:    "Duration of attendance store queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"scope"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendance_cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendance_cache_write_seconds",
		Help:    "Latency for cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_cache_misses_total",
		Help: "Total cache misses",
	})

	attachments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_report_attachments_total",
		Help: "Report tables handed to the dispatcher",
	}, []string{"report", "format"})

	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attendance_report_run_duration_seconds",
		Help:    "Wall time of a report run",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"report", "scope"})

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_report_runs_total",
		Help: "Report runs by outcome",
	}, []string{"report", "scope", "outcome"})

	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "attendance_report_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run",
	}, []string{"report", "scope"})

	registry.MustRegister(rowsFetched, dbQueryDuration, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses, attachments, runDuration, runsTotal, lastSuccess)

	return &MetricsService{
		registry:        registry,
		rowsFetched:     rowsFetched,
		dbQueryDuration: dbQueryDuration,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		attachments:     attachments,
		runDuration:     runDuration,
		runsTotal:       runsTotal,
		lastSuccess:     lastSuccess,
	}
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveQuery records a store query and the rows it produced.
func (m *MetricsService) ObserveQuery(scope string, rows int, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(scope).Observe(duration.Seconds())
	m.rowsFetched.WithLabelValues(scope).Add(float64(rows))
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
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordAttachment counts one dispatched table.
func (m *MetricsService) RecordAttachment(report, format string) {
	if m == nil {
		return
	}
	m.attachments.WithLabelValues(report, format).Inc()
}

// ObserveRun records the outcome and duration of a report run.
func (m *MetricsService) ObserveRun(report, scope string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.runDuration.WithLabelValues(report, scope).Observe(duration.Seconds())
	m.runsTotal.WithLabelValues(report, scope, outcome).Inc()
	if err == nil {
		m.lastSuccess.WithLabelValues(report, scope).SetToCurrentTime()
	}
}

// WriteTextfile flushes every collector to path in the text exposition format.
func (m *MetricsService) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
