package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/BountyIndexor/internal/bounty"
	"github.com/goran-ethernal/BountyIndexor/internal/checkpoint"
	"github.com/goran-ethernal/BountyIndexor/internal/common"
	"github.com/goran-ethernal/BountyIndexor/internal/config"
	"github.com/goran-ethernal/BountyIndexor/internal/db"
	"github.com/goran-ethernal/BountyIndexor/internal/metrics"
	"github.com/goran-ethernal/BountyIndexor/internal/migrations"
	"github.com/goran-ethernal/BountyIndexor/internal/processor"
	"github.com/goran-ethernal/BountyIndexor/internal/proof"
	"github.com/goran-ethernal/BountyIndexor/internal/rpc"
	"github.com/goran-ethernal/BountyIndexor/internal/source"
	"github.com/goran-ethernal/BountyIndexor/internal/store"
	"github.com/goran-ethernal/BountyIndexor/internal/types"
	"github.com/goran-ethernal/BountyIndexor/pkg/api"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start indexing and serve the API",
	RunE:  runIndexer,
}

func runIndexer(cmd *cobra.Command, args []string) error {
	fmt.Printf(banner, version)

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := componentLogger(cfg, common.ComponentProcessor)
	defer log.Close() //nolint:errcheck

	finality, err := types.ParseBlockFinality(cfg.Indexer.Finality)
	if err != nil {
		return fmt.Errorf("invalid finality configuration: %w", err)
	}

	log.Info("Connecting to Ethereum node...")
	ethClient, err := rpc.NewClient(ctx, cfg.RPC.URL, cfg.RPC.Retry)
	if err != nil {
		return fmt.Errorf("failed to create RPC client: %w", err)
	}
	defer ethClient.Close()

	database, err := db.NewSQLiteDBFromConfig(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer database.Close()

	log.Info("Running database migrations...")
	if err := migrations.RunMigrations(log, database); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	maintenance := db.NewMaintenanceCoordinator(
		cfg.DB.Path,
		database,
		cfg.Maintenance,
		componentLogger(cfg, common.ComponentMaintenance),
	)
	if err := maintenance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start database maintenance: %w", err)
	}
	defer func() {
		if err := maintenance.Stop(); err != nil {
			log.Warnf("Failed to stop database maintenance: %v", err)
		}
	}()

	checkpoints := checkpoint.NewManager(database, maintenance, componentLogger(cfg, common.ComponentCheckpoint))
	st := store.New(database, maintenance, checkpoints, componentLogger(cfg, common.ComponentStore))

	decoder := bounty.NewDecoder(
		ethcommon.HexToAddress(cfg.Indexer.ContractAddress),
		ethcommon.HexToAddress(cfg.Indexer.VaultAddress),
	)

	src := source.New(source.Config{
		Finality:      finality,
		Confirmations: cfg.Indexer.FinalityConfirmations,
		Addresses:     decoder.Addresses(),
		Topics:        decoder.Topics(),
	}, ethClient, componentLogger(cfg, common.ComponentSource))

	proc := processor.New(
		processor.NewConfig(cfg.Indexer, cfg.RPC.Retry),
		src,
		st,
		checkpoints,
		decoder,
		componentLogger(cfg, common.ComponentProcessor),
	)

	var proofs api.ProofSubmitter
	if cfg.ProofVerifier != nil {
		proofLog := componentLogger(cfg, common.ComponentProof)
		proofs = proof.NewService(proof.NewHTTPVerifier(*cfg.ProofVerifier, proofLog), st, proofLog)
		log.Infof("Proof verification enabled: %s", cfg.ProofVerifier.URL)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return metrics.NewServer(cfg.Metrics, componentLogger(cfg, common.ComponentAPI)).Run(ctx)
	})

	if cfg.API != nil && cfg.API.Enabled {
		apiServer := api.NewServer(cfg.API, st, proc, proofs, componentLogger(cfg, common.ComponentAPI))
		g.Go(func() error {
			return apiServer.Start(ctx)
		})
	}

	g.Go(func() error {
		log.Info("Starting BountyIndexor...")
		return proc.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("indexer stopped: %w", err)
	}

	log.Info("BountyIndexor stopped successfully")
	return nil
}
