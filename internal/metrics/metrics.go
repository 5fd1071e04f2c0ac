package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store metrics
	dbQueryTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bountyindexor_db_query_duration_seconds",
			Help:    "Duration of database operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	dbErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bountyindexor_db_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"operation"},
	)

	// Processor metrics
	LastIndexedBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bountyindexor_last_indexed_block",
			Help: "The last block height committed together with its checkpoint",
		},
	)

	ChainHead = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bountyindexor_chain_head_block",
			Help: "The highest indexable block reported by the source",
		},
	)

	BlocksProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bountyindexor_blocks_processed_total",
			Help: "Total number of blocks processed",
		},
	)

	BatchesCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bountyindexor_batches_committed_total",
			Help: "Total number of committed batches",
		},
	)

	EventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bountyindexor_events_applied_total",
			Help: "Total number of decoded events applied to the store by type",
		},
		[]string{"event"},
	)

	LogsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bountyindexor_logs_skipped_total",
			Help: "Total number of logs skipped by reason",
		},
		[]string{"reason"},
	)

	Anomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bountyindexor_anomalies_total",
			Help: "Total number of recoverable event anomalies by kind",
		},
		[]string{"kind"},
	)

	DeferredEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bountyindexor_deferred_events",
			Help: "Number of events waiting for their BountyCreated",
		},
	)

	BatchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bountyindexor_batch_retries_total",
			Help: "Total number of batch retries by failure class",
		},
		[]string{"class"},
	)

	ProcessorState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bountyindexor_processor_state",
			Help: "Current processor state (1 for the active state)",
		},
		[]string{"state"},
	)

	BatchProcessingTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bountyindexor_batch_processing_duration_seconds",
			Help:    "Time taken to process and commit a batch of blocks",
			Buckets: prometheus.DefBuckets,
		},
	)

	// System metrics
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bountyindexor_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bountyindexor_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bountyindexor_goroutines",
			Help: "Number of active goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bountyindexor_memory_usage_bytes",
			Help: "Memory usage statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

// ObserveDB records the duration of a store operation and counts it as failed when err is set.
func ObserveDB(operation string, start time.Time, err error) {
	dbQueryTime.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		dbErrors.WithLabelValues(operation).Inc()
	}
}

// SetProcessorState marks state as the active one among all known states.
func SetProcessorState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		ProcessorState.WithLabelValues(s).Set(v)
	}
}

func ComponentHealthSet(component string, healthy bool) {
	v := 1.0
	if !healthy {
		v = 0
	}
	ComponentHealth.WithLabelValues(component).Set(v)
}

// UpdateSystemMetrics updates runtime system metrics.
func UpdateSystemMetrics() {
	Uptime.Set(time.Since(startTime).Seconds())
	Goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("total_alloc").Set(float64(m.TotalAlloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
