package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/goran-ethernal/BountyIndexor/internal/logger"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

// Migration is a single schema change. SQL holds both directions, the Down section
// first and the Up section after the "-- +migrate Up" marker.
type Migration struct {
	ID  string
	SQL string
}

// RunMigrationsDB applies all pending migrations.
func RunMigrationsDB(log *logger.Logger, db *sql.DB, migrations []Migration) error {
	return RunMigrationsDBExtended(log, db, migrations, migrate.Up, 0)
}

// RunMigrationsDBExtended applies at most maxMigrations migrations (0 = all) in the given direction.
func RunMigrationsDBExtended(log *logger.Logger,
	db *sql.DB,
	migrations []Migration,
	dir migrate.MigrationDirection,
	maxMigrations int) error {
	source, err := memorySource(migrations)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(source.Migrations))
	for _, m := range source.Migrations {
		ids = append(ids, m.Id)
	}

	log.Debugf("running migrations (max %d/%d): %s", maxMigrations, len(ids), strings.Join(ids, ", "))
	n, err := migrate.ExecMax(db, "sqlite3", source, dir, maxMigrations)
	if err != nil {
		return fmt.Errorf("error executing migrations %s: %w", strings.Join(ids, ", "), err)
	}

	log.Infof("successfully ran %d migrations", n)
	return nil
}

func memorySource(migrations []Migration) (*migrate.MemoryMigrationSource, error) {
	src := &migrate.MemoryMigrationSource{}
	for _, m := range migrations {
		down, up, found := strings.Cut(m.SQL, upMarker)
		if !found {
			return nil, fmt.Errorf("migration %s missing '%s' separator", m.ID, upMarker)
		}
		if _, after, ok := strings.Cut(down, downMarker); ok {
			down = after
		}

		src.Migrations = append(src.Migrations, &migrate.Migration{
			Id:   m.ID,
			Up:   []string{strings.TrimSpace(up)},
			Down: []string{strings.TrimSpace(down)},
		})
	}
	return src, nil
}
