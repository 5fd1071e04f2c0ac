package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/goran-ethernal/BountyIndexor/internal/checkpoint"
	"github.com/goran-ethernal/BountyIndexor/internal/common"
	"github.com/goran-ethernal/BountyIndexor/internal/config"
	"github.com/goran-ethernal/BountyIndexor/internal/db"
	"github.com/goran-ethernal/BountyIndexor/internal/migrations"
	"github.com/goran-ethernal/BountyIndexor/internal/store"
	pkgconfig "github.com/goran-ethernal/BountyIndexor/pkg/config"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

var resetConfirmed bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the checkpoint and contract totals from the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		checkpoints := checkpoint.NewManager(database, nil, componentLogger(cfg, common.ComponentCheckpoint))
		st := store.New(database, nil, checkpoints, componentLogger(cfg, common.ComponentStore))

		return printStatus(cmd.Context(), checkpoints, st)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe all projections and the checkpoint so the next run replays from start_height",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetConfirmed {
			return fmt.Errorf("reset deletes all indexed data; pass --yes to confirm")
		}

		cfg, database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		checkpoints := checkpoint.NewManager(database, nil, componentLogger(cfg, common.ComponentCheckpoint))
		st := store.New(database, nil, checkpoints, componentLogger(cfg, common.ComponentStore))

		if err := st.Reset(cmd.Context()); err != nil {
			return fmt.Errorf("failed to reset store: %w", err)
		}

		fmt.Printf("Store reset; indexing restarts at block %d\n", cfg.Indexer.StartHeight)
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		r := &jsonschema.Reflector{
			FieldNameTag:   "json",
			DoNotReference: true,
		}
		schema := r.Reflect(&pkgconfig.Config{})
		schema.Title = "BountyIndexor configuration"

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(schema)
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "confirm the reset")
}

// openDatabase loads the configuration and opens the migrated database it points at.
func openDatabase() (*pkgconfig.Config, *sql.DB, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	database, err := db.NewSQLiteDBFromConfig(cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database: %w", err)
	}

	if err := migrations.RunMigrations(componentLogger(cfg, common.ComponentStore), database); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return cfg, database, nil
}

func printStatus(ctx context.Context, checkpoints *checkpoint.Manager, st *store.Store) error {
	state, ok, err := checkpoints.LastProcessed(ctx)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	if ok {
		fmt.Printf("Last processed block: %d (%s)\n", state.Height, state.BlockHash.Hex())
		fmt.Printf("Updated at:           %s\n", state.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Last processed block: none")
	}

	deferred, err := st.CountDeferred(ctx)
	if err != nil {
		return fmt.Errorf("failed to count deferred events: %w", err)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}

	fmt.Printf("Deferred events:      %d\n", deferred)
	fmt.Printf("Bounties:             %d total, %d active, %d completed, %d cancelled\n",
		stats.TotalBounties, stats.ActiveBounties, stats.CompletedBounties, stats.CancelledBounties)
	fmt.Printf("Payouts:              %d totalling %s\n", stats.PaymentCount, stats.TotalPayments)
	fmt.Printf("Workers:              %d\n", stats.TotalWorkers)

	return nil
}
