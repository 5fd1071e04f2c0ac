package db

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	maintenanceRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bountyindexor_maintenance_runs_total",
		Help: "Total number of maintenance operations",
	})

	maintenanceOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bountyindexor_maintenance_outcomes_total",
		Help: "Total number of maintenance operations by outcome",
	}, []string{"status"})

	maintenanceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bountyindexor_maintenance_duration_seconds",
		Help:    "Duration of maintenance operations",
		Buckets: prometheus.DefBuckets,
	})

	maintenanceLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bountyindexor_maintenance_last_run_timestamp",
		Help: "Unix timestamp of last maintenance run",
	})

	maintenanceSpaceReclaimed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bountyindexor_maintenance_space_reclaimed_bytes",
		Help: "Bytes reclaimed by last maintenance operation",
	})

	walCheckpoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bountyindexor_wal_checkpoint_total",
		Help: "Total number of WAL checkpoint operations",
	}, []string{"mode"})

	vacuumRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bountyindexor_vacuum_total",
		Help: "Total number of VACUUM operations",
	})

	dbSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bountyindexor_db_size_bytes",
		Help: "Database size in bytes including WAL",
	})
)
