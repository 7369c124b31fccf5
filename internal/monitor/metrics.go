// Package monitor exposes Prometheus metrics for the draw pipeline.
package monitor

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Draw pipeline metrics. The outcome label carries the business result of a
// draw request: win, lose, draw_quota_exhausted, win_quota_exhausted,
// not_started, ended, error.
var (
	DrawRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draw_requests_total",
			Help: "Total number of draw requests by outcome",
		},
		[]string{"activity_id", "outcome"},
	)

	DrawDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draw_duration_seconds",
			Help:    "Duration of draw request handling",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"activity_id"},
	)

	TicketsSeededTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_seeded_total",
			Help: "Total number of tickets seeded into allocators",
		},
		[]string{"activity_id"},
	)

	TicketsClaimedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_claimed_total",
			Help: "Total number of tickets claimed from allocators",
		},
		[]string{"activity_id"},
	)

	TicketsReturnedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_returned_total",
			Help: "Total number of tickets returned to allocators after a failed win",
		},
		[]string{"activity_id"},
	)

	WinRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "win_records_total",
			Help: "Total number of win records persisted",
		},
	)

	EventQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_queue_depth",
			Help: "Current number of win events waiting for the recorder",
		},
	)

	ActivitiesPreheatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "activities_preheated_total",
			Help: "Total number of activities preheated",
		},
	)
)

// Store and checkpoint metrics.
var (
	StoreEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "store_entries",
			Help: "Number of entries per store namespace",
		},
		[]string{"namespace"},
	)

	CheckpointsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkpoints_total",
			Help: "Total number of checkpoint flushes by status",
		},
		[]string{"status"},
	)

	CheckpointDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkpoint_duration_seconds",
			Help:    "Duration of checkpoint flushes",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// HTTP metrics, set by the gin middleware.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Runtime metrics sampled by CollectRuntime.
var (
	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "runtime_goroutines",
			Help: "Current number of goroutines",
		},
	)

	heapAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "runtime_heap_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)
)

// SizeReporter reports per-namespace entry counts. Satisfied by the store.
type SizeReporter interface {
	Size(namespace string) int
}

// CollectRuntime samples runtime and store gauges every interval until
// stopCh closes.
func CollectRuntime(reporter SizeReporter, namespaces []string, interval time.Duration, stopCh <-chan struct{}) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			goroutineCount.Set(float64(runtime.NumGoroutine()))

			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			heapAllocBytes.Set(float64(ms.HeapAlloc))

			if reporter != nil {
				for _, ns := range namespaces {
					StoreEntries.WithLabelValues(ns).Set(float64(reporter.Size(ns)))
				}
			}
		case <-stopCh:
			return
		}
	}
}
