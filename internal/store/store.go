// Package store is the aggregation store: the bounty, payout and worker projections
// built from decoded events, together with their read-only query surface.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/goran-ethernal/BountyIndexor/internal/bounty"
	"github.com/goran-ethernal/BountyIndexor/internal/checkpoint"
	internalcommon "github.com/goran-ethernal/BountyIndexor/internal/common"
	"github.com/goran-ethernal/BountyIndexor/internal/db"
	"github.com/goran-ethernal/BountyIndexor/internal/logger"
	"github.com/goran-ethernal/BountyIndexor/internal/metrics"
	"github.com/russross/meddler"
)

const (
	tableBounties     = "bounties"
	tablePayouts      = "payouts"
	tableWorkers      = "workers"
	tableDailyStats   = "daily_stats"
	tableDailyWorkers = "daily_workers"
	tableDeferred     = "deferred_events"
	tableProofs       = "proofs"

	// MaxListLimit caps the number of rows a list query returns.
	MaxListLimit = 1000
)

var (
	// ErrNotFound is returned by queries for records that are not indexed yet.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned by queries given a malformed address or id.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Store persists the projections in SQLite. Writes only happen through Batch.Commit.
type Store struct {
	db          *sql.DB
	log         *logger.Logger
	maintenance db.Maintenance
	checkpoints *checkpoint.Manager
}

// New creates a store on an already migrated database.
func New(database *sql.DB, maintenance db.Maintenance, checkpoints *checkpoint.Manager, log *logger.Logger) *Store {
	if maintenance == nil {
		maintenance = &db.NoOpMaintenance{}
	}

	return &Store{
		db:          database,
		log:         log.WithComponent(internalcommon.ComponentStore),
		maintenance: maintenance,
		checkpoints: checkpoints,
	}
}

// NewBatch starts staging the mutations of one batch.
func (s *Store) NewBatch() *Batch {
	return newBatch(s)
}

// Reset deletes every projection and the checkpoint so indexing restarts from genesis.
func (s *Store) Reset(ctx context.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveDB("reset", start, err) }(time.Now())

	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer db.Rollback(tx, s.log)

	for _, table := range []string{
		tableBounties, tablePayouts, tableWorkers, tableDailyStats, tableDailyWorkers, tableDeferred,
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := s.checkpoints.ClearTx(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Warn("store reset, all projections removed")

	return nil
}

// GetWorker returns the worker with the given address.
func (s *Store) GetWorker(ctx context.Context, address string) (*bounty.WorkerRecord, error) {
	addr, err := internalcommon.NormalizeAddressString(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	return loadWorker(s.db, addr)
}

// GetBounty returns the bounty with the given decimal id.
func (s *Store) GetBounty(ctx context.Context, id string) (*bounty.BountyRecord, error) {
	v, err := internalcommon.ParseBigInt(id)
	if err != nil || id == "" {
		return nil, fmt.Errorf("%w: bounty id %q", ErrInvalidArgument, id)
	}

	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	return loadBounty(s.db, v.String())
}

// ListPayouts returns the payouts of a worker, most recent first.
func (s *Store) ListPayouts(ctx context.Context, address string, limit int) ([]*bounty.PayoutRecord, error) {
	addr, err := internalcommon.NormalizeAddressString(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	var payouts []*bounty.PayoutRecord
	err = meddler.QueryAll(s.db, &payouts, `
		SELECT * FROM payouts
		WHERE worker = ?
		ORDER BY block_number DESC, tx_index DESC, log_index DESC
		LIMIT ?
	`, addr, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}

	return payouts, nil
}

// ListTopWorkers returns workers by reputation, highest first.
// Ties go to the worker whose first bounty is earlier.
func (s *Store) ListTopWorkers(ctx context.Context, limit int) ([]*bounty.WorkerRecord, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	var workers []*bounty.WorkerRecord
	err := meddler.QueryAll(s.db, &workers, `
		SELECT * FROM workers
		ORDER BY reputation_score DESC, first_bounty_at IS NULL, first_bounty_at ASC, address ASC
		LIMIT ?
	`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list top workers: %w", err)
	}

	return workers, nil
}

// ListDailyStats returns the daily aggregates between two YYYY-MM-DD days, inclusive.
// An empty bound is open.
func (s *Store) ListDailyStats(ctx context.Context, from, to string) ([]*bounty.DailyStats, error) {
	for _, day := range []string{from, to} {
		if day == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, day); err != nil {
			return nil, fmt.Errorf("%w: day %q", ErrInvalidArgument, day)
		}
	}
	if to == "" {
		to = "9999-12-31"
	}

	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	var stats []*bounty.DailyStats
	err := meddler.QueryAll(s.db, &stats, `
		SELECT * FROM daily_stats WHERE day >= ? AND day <= ? ORDER BY day ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily stats: %w", err)
	}

	return stats, nil
}

// Stats returns platform-wide totals.
func (s *Store) Stats(ctx context.Context) (*bounty.ContractStats, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	stats := &bounty.ContractStats{
		TotalPayments:  new(big.Int),
		AveragePayment: new(big.Int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM bounties GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count bounties: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status bounty.BountyStatus
			count  uint64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan bounty count: %w", err)
		}

		stats.TotalBounties += count
		switch status {
		case bounty.StatusActive:
			stats.ActiveBounties = count
		case bounty.StatusCompleted:
			stats.CompletedBounties = count
		case bounty.StatusCancelled:
			stats.CancelledBounties = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count bounties: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workers`).Scan(&stats.TotalWorkers); err != nil {
		return nil, fmt.Errorf("failed to count workers: %w", err)
	}

	// amounts are uint256 text, so totals are summed here rather than in SQL
	var days []*bounty.DailyStats
	if err := meddler.QueryAll(s.db, &days, `SELECT * FROM daily_stats`); err != nil {
		return nil, fmt.Errorf("failed to load daily stats: %w", err)
	}
	for _, d := range days {
		stats.TotalPayments.Add(stats.TotalPayments, d.TotalPayments)
		stats.PaymentCount += d.PaymentCount
	}
	if stats.PaymentCount > 0 {
		stats.AveragePayment.Div(stats.TotalPayments, new(big.Int).SetUint64(stats.PaymentCount))
	}

	return stats, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 10 //nolint:mnd
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

func loadWorker(q meddler.DB, address string) (*bounty.WorkerRecord, error) {
	var w bounty.WorkerRecord
	err := meddler.QueryRow(q, &w, `SELECT * FROM workers WHERE address = ?`, address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load worker %s: %w", address, err)
	}
	return &w, nil
}

func loadBounty(q meddler.DB, id string) (*bounty.BountyRecord, error) {
	var b bounty.BountyRecord
	err := meddler.QueryRow(q, &b, `SELECT * FROM bounties WHERE bounty_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bounty %s: %w", id, err)
	}
	return &b, nil
}

func loadDailyStats(q meddler.DB, day string) (*bounty.DailyStats, error) {
	var d bounty.DailyStats
	err := meddler.QueryRow(q, &d, `SELECT * FROM daily_stats WHERE day = ?`, day)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load daily stats %s: %w", day, err)
	}
	return &d, nil
}

func exists(q meddler.DB, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRow(query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
