package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goran-ethernal/BountyIndexor/internal/common"
	"github.com/goran-ethernal/BountyIndexor/internal/logger"
	"github.com/goran-ethernal/BountyIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

func setupMaintenanceTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "maintenance.sqlite")
	dbConfig := config.DatabaseConfig{Path: dbPath, JournalMode: "WAL"}
	dbConfig.ApplyDefaults()

	db, err := NewSQLiteDBFromConfig(dbConfig)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS test_data (id INTEGER PRIMARY KEY, data TEXT)`)
	require.NoError(t, err)

	return db, dbPath
}

func TestNewMaintenanceCoordinator_NilConfig(t *testing.T) {
	db, dbPath := setupMaintenanceTestDB(t)

	m := NewMaintenanceCoordinator(dbPath, db, nil, logger.NewNopLogger())
	require.IsType(t, &NoOpMaintenance{}, m)

	require.NoError(t, m.Start(t.Context()))
	m.AcquireOperationLock()()
	require.NoError(t, m.RunMaintenance(t.Context()))
	require.Zero(t, m.GetMetrics().MaintenanceCount)
	require.NoError(t, m.Stop())
}

func TestMaintenanceCoordinator_RunMaintenance(t *testing.T) {
	db, dbPath := setupMaintenanceTestDB(t)

	for range 1000 {
		_, err := db.Exec("INSERT INTO test_data (data) VALUES (?)", "payload")
		require.NoError(t, err)
	}
	_, err := db.Exec("DELETE FROM test_data")
	require.NoError(t, err)

	coordinator := newMaintenanceCoordinator(dbPath, db, config.MaintenanceConfig{
		WALCheckpointMode: "TRUNCATE",
	}, logger.NewNopLogger())

	require.NoError(t, coordinator.RunMaintenance(context.Background()))

	metrics := coordinator.GetMetrics()
	require.Equal(t, uint64(1), metrics.MaintenanceCount)
	require.False(t, metrics.LastMaintenanceTime.IsZero())
	require.NoError(t, metrics.LastMaintenanceError)
}

func TestMaintenanceCoordinator_ContextCancellation(t *testing.T) {
	db, dbPath := setupMaintenanceTestDB(t)

	coordinator := newMaintenanceCoordinator(dbPath, db, config.MaintenanceConfig{
		WALCheckpointMode: "TRUNCATE",
	}, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, coordinator.RunMaintenance(ctx), context.Canceled)
}

func TestMaintenanceCoordinator_MaintenanceWaitsForOperations(t *testing.T) {
	db, dbPath := setupMaintenanceTestDB(t)

	coordinator := newMaintenanceCoordinator(dbPath, db, config.MaintenanceConfig{
		WALCheckpointMode: "PASSIVE",
	}, logger.NewNopLogger())

	unlock := coordinator.AcquireOperationLock()

	var finished atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, coordinator.RunMaintenance(context.Background()))
		finished.Store(true)
	}()

	time.Sleep(50 * time.Millisecond)
	require.False(t, finished.Load(), "maintenance must wait for the in-flight operation")

	unlock()
	<-done
	require.True(t, finished.Load())
}

func TestMaintenanceCoordinator_BackgroundMaintenance(t *testing.T) {
	db, dbPath := setupMaintenanceTestDB(t)

	coordinator := newMaintenanceCoordinator(dbPath, db, config.MaintenanceConfig{
		Enabled:           true,
		CheckInterval:     common.NewDuration(50 * time.Millisecond),
		VacuumOnStartup:   true,
		WALCheckpointMode: "PASSIVE",
	}, logger.NewNopLogger())

	require.NoError(t, coordinator.Start(t.Context()))
	require.Equal(t, uint64(1), coordinator.GetMetrics().MaintenanceCount, "startup maintenance should run")

	require.Eventually(t, func() bool {
		return coordinator.GetMetrics().MaintenanceCount > 1
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, coordinator.Stop())
}

func TestMaintenanceCoordinator_DisabledMaintenance(t *testing.T) {
	db, dbPath := setupMaintenanceTestDB(t)

	coordinator := newMaintenanceCoordinator(dbPath, db, config.MaintenanceConfig{
		CheckInterval:     common.NewDuration(10 * time.Millisecond),
		WALCheckpointMode: "TRUNCATE",
	}, logger.NewNopLogger())

	require.NoError(t, coordinator.Start(t.Context()))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, coordinator.Stop())

	require.Zero(t, coordinator.GetMetrics().MaintenanceCount)
}

func TestMaintenanceCoordinator_ConcurrentOperations(t *testing.T) {
	db, dbPath := setupMaintenanceTestDB(t)

	coordinator := newMaintenanceCoordinator(dbPath, db, config.MaintenanceConfig{
		WALCheckpointMode: "PASSIVE",
	}, logger.NewNopLogger())

	const workers, perWorker = 20, 5
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)

	for range workers {
		wg.Go(func() {
			for range perWorker {
				unlock := coordinator.AcquireOperationLock()
				_, err := db.Exec("INSERT INTO test_data (data) VALUES (?)", "x")
				unlock()
				if err == nil {
					successes.Add(1)
				}
			}
		})
	}

	wg.Go(func() {
		for range 3 {
			require.NoError(t, coordinator.RunMaintenance(context.Background()))
		}
	})

	wg.Wait()

	require.Equal(t, int32(workers*perWorker), successes.Load())
	require.Equal(t, uint64(3), coordinator.GetMetrics().MaintenanceCount)
}
