// Package checkpoint tracks the last block whose events are durably aggregated.
// The checkpoint row is only ever written inside the transaction that commits a batch.
package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	internalcommon "github.com/goran-ethernal/BountyIndexor/internal/common"
	"github.com/goran-ethernal/BountyIndexor/internal/db"
	"github.com/goran-ethernal/BountyIndexor/internal/logger"
	"github.com/russross/meddler"
)

// ErrNotMonotonic is returned when advancing to a height at or below the current checkpoint.
var ErrNotMonotonic = errors.New("checkpoint must advance")

// State is the last processed block.
type State struct {
	Height    uint64
	BlockHash common.Hash
	UpdatedAt time.Time
}

type checkpointRow struct {
	ID                  int64       `meddler:"id"`
	LastProcessedHeight uint64      `meddler:"last_processed_height"`
	LastBlockHash       common.Hash `meddler:"last_block_hash,hash"`
	UpdatedAt           int64       `meddler:"updated_at"`
}

// Manager reads and advances the checkpoint.
type Manager struct {
	db          *sql.DB
	log         *logger.Logger
	maintenance db.Maintenance
}

// NewManager creates a checkpoint manager.
func NewManager(database *sql.DB, maintenance db.Maintenance, log *logger.Logger) *Manager {
	if maintenance == nil {
		maintenance = &db.NoOpMaintenance{}
	}

	return &Manager{
		db:          database,
		log:         log.WithComponent(internalcommon.ComponentCheckpoint),
		maintenance: maintenance,
	}
}

// LastProcessed returns the checkpoint. ok is false when nothing was committed yet.
func (m *Manager) LastProcessed(ctx context.Context) (state State, ok bool, err error) {
	unlock := m.maintenance.AcquireOperationLock()
	defer unlock()

	return load(m.db)
}

// ResumeHeight returns the first height to fetch: one past the checkpoint, or genesis without one.
func (m *Manager) ResumeHeight(ctx context.Context, genesis uint64) (uint64, error) {
	state, ok, err := m.LastProcessed(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		m.log.Infof("no checkpoint found, starting from genesis height %d", genesis)
		return genesis, nil
	}

	m.log.Infof("resuming after checkpoint: height=%d, hash=%s", state.Height, state.BlockHash.Hex())
	return state.Height + 1, nil
}

// AdvanceTx moves the checkpoint to state within tx. The caller owns tx and commits it
// together with the batch data, so data and checkpoint become visible at once.
func (m *Manager) AdvanceTx(ctx context.Context, tx *sql.Tx, state State) error {
	current, ok, err := load(tx)
	if err != nil {
		return err
	}
	if ok && state.Height <= current.Height {
		return fmt.Errorf("%w: current=%d, new=%d", ErrNotMonotonic, current.Height, state.Height)
	}

	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkpoint (id, last_processed_height, last_block_hash, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_processed_height = excluded.last_processed_height,
			last_block_hash = excluded.last_block_hash,
			updated_at = excluded.updated_at
	`, state.Height, state.BlockHash.Hex(), updatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to advance checkpoint: %w", err)
	}

	m.log.Debugf("checkpoint staged: height=%d, hash=%s", state.Height, state.BlockHash.Hex())

	return nil
}

// ClearTx removes the checkpoint within tx so the next run starts from genesis.
func (m *Manager) ClearTx(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoint`); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}

	m.log.Info("checkpoint cleared")

	return nil
}

func load(q meddler.DB) (State, bool, error) {
	var row checkpointRow
	err := meddler.QueryRow(q, &row, `SELECT * FROM checkpoint WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	return State{
		Height:    row.LastProcessedHeight,
		BlockHash: row.LastBlockHash,
		UpdatedAt: time.Unix(row.UpdatedAt, 0),
	}, true, nil
}
