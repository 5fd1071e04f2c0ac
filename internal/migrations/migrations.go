package migrations

import (
	"database/sql"
	_ "embed"

	"github.com/goran-ethernal/BountyIndexor/internal/db"
	"github.com/goran-ethernal/BountyIndexor/internal/logger"
)

//go:embed 001_bounties.sql
var mig001 string

//go:embed 002_daily_stats.sql
var mig002 string

//go:embed 003_deferred_events.sql
var mig003 string

//go:embed 004_proofs.sql
var mig004 string

//go:embed 005_checkpoint.sql
var mig005 string

// All returns the schema migrations of the aggregation store in order.
func All() []db.Migration {
	return []db.Migration{
		{ID: "001_bounties.sql", SQL: mig001},
		{ID: "002_daily_stats.sql", SQL: mig002},
		{ID: "003_deferred_events.sql", SQL: mig003},
		{ID: "004_proofs.sql", SQL: mig004},
		{ID: "005_checkpoint.sql", SQL: mig005},
	}
}

// RunMigrations brings the schema of database up to date.
func RunMigrations(log *logger.Logger, database *sql.DB) error {
	return db.RunMigrationsDB(log, database, All())
}
