package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/BountyIndexor/internal/bounty"
	"github.com/russross/meddler"
)

const (
	deferredCompleted = "completed"
	deferredCancelled = "cancelled"
)

// deferredRow is a BountyCompleted or BountyCancelled waiting for its BountyCreated.
type deferredRow struct {
	TxHash      common.Hash `meddler:"tx_hash,hash"`
	LogIndex    uint        `meddler:"log_index"`
	BountyID    string      `meddler:"bounty_id"`
	Kind        string      `meddler:"kind"`
	Worker      *string     `meddler:"worker,address"`
	Reward      *big.Int    `meddler:"reward,bigint"`
	BlockNumber uint64      `meddler:"block_number"`
	BlockHash   common.Hash `meddler:"block_hash,hash"`
	Timestamp   uint64      `meddler:"timestamp"`
	TxIndex     uint        `meddler:"tx_index"`
	Address     string      `meddler:"address"`
}

func toDeferredRow(ev bounty.Event) (*deferredRow, error) {
	m := ev.Meta()
	row := &deferredRow{
		TxHash:      m.TxHash,
		LogIndex:    m.LogIndex,
		BlockNumber: m.BlockNumber,
		BlockHash:   m.BlockHash,
		Timestamp:   m.Timestamp,
		TxIndex:     m.TxIndex,
		Address:     m.Address,
	}

	switch e := ev.(type) {
	case *bounty.BountyCompleted:
		worker := e.Worker
		row.Kind = deferredCompleted
		row.BountyID = e.BountyID.String()
		row.Worker = &worker
		row.Reward = e.Reward
	case *bounty.BountyCancelled:
		row.Kind = deferredCancelled
		row.BountyID = e.BountyID.String()
	default:
		return nil, fmt.Errorf("cannot defer %s event", bounty.Name(ev))
	}

	return row, nil
}

func (r *deferredRow) event() (bounty.Event, error) {
	id, ok := new(big.Int).SetString(r.BountyID, 10)
	if !ok {
		return nil, fmt.Errorf("invalid deferred bounty id %q", r.BountyID)
	}

	meta := bounty.LogMeta{
		Address:     r.Address,
		BlockNumber: r.BlockNumber,
		BlockHash:   r.BlockHash,
		Timestamp:   r.Timestamp,
		TxHash:      r.TxHash,
		TxIndex:     r.TxIndex,
		LogIndex:    r.LogIndex,
	}

	switch r.Kind {
	case deferredCompleted:
		if r.Worker == nil || r.Reward == nil {
			return nil, fmt.Errorf("deferred completion %s is missing worker or reward", meta.Key())
		}
		return &bounty.BountyCompleted{LogMeta: meta, BountyID: id, Worker: *r.Worker, Reward: r.Reward}, nil
	case deferredCancelled:
		return &bounty.BountyCancelled{LogMeta: meta, BountyID: id}, nil
	default:
		return nil, fmt.Errorf("unknown deferred event kind %q", r.Kind)
	}
}

// LoadDeferred returns the persisted deferred events in chain order.
func (s *Store) LoadDeferred(ctx context.Context) ([]bounty.Event, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	var rows []*deferredRow
	err := meddler.QueryAll(s.db, &rows, `
		SELECT * FROM deferred_events ORDER BY block_number ASC, tx_index ASC, log_index ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load deferred events: %w", err)
	}

	events := make([]bounty.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := r.event()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	return events, nil
}

// CountDeferred returns the number of persisted deferred events.
func (s *Store) CountDeferred(ctx context.Context) (int, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deferred_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count deferred events: %w", err)
	}
	return n, nil
}

func replaceDeferred(ctx context.Context, tx *sql.Tx, events []bounty.Event) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM deferred_events`); err != nil {
		return fmt.Errorf("failed to clear deferred events: %w", err)
	}

	for _, ev := range events {
		row, err := toDeferredRow(ev)
		if err != nil {
			return err
		}
		if err := meddler.Insert(tx, tableDeferred, row); err != nil {
			return fmt.Errorf("failed to insert deferred event %s: %w", ev.Meta().Key(), err)
		}
	}

	return nil
}
