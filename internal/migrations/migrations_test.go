package migrations

import (
	"path/filepath"
	"testing"

	"github.com/goran-ethernal/BountyIndexor/internal/db"
	"github.com/goran-ethernal/BountyIndexor/internal/logger"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_UpAndDown(t *testing.T) {
	database, err := db.NewSQLiteDB(filepath.Join(t.TempDir(), "store.sqlite"))
	require.NoError(t, err)
	defer database.Close()

	log := logger.NewNopLogger()
	require.NoError(t, RunMigrations(log, database))

	for _, table := range []string{
		"bounties", "payouts", "workers", "daily_stats", "daily_workers",
		"deferred_events", "proofs", "checkpoint",
	} {
		var name string
		err := database.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}

	// checkpoint is a single row table
	_, err = database.Exec(`INSERT INTO checkpoint (id, last_processed_height, last_block_hash, updated_at) VALUES (2, 1, '0x', 0)`)
	require.Error(t, err)

	// completed_by is set iff status is completed
	_, err = database.Exec(`INSERT INTO bounties (bounty_id, creator, action, repo_owner, repo_name, reward,
		status, created_at, created_block, tx_hash) VALUES ('1', '0x', 0, 'o', 'r', '1', 'completed', 0, 0, '0x')`)
	require.Error(t, err)

	require.NoError(t, db.RunMigrationsDBExtended(log, database, All(), migrate.Down, 0))

	var count int
	require.NoError(t, database.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'bounties'`).Scan(&count))
	require.Zero(t, count)
}
