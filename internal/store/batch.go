package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/goran-ethernal/BountyIndexor/internal/bounty"
	"github.com/goran-ethernal/BountyIndexor/internal/checkpoint"
	"github.com/goran-ethernal/BountyIndexor/internal/db"
	"github.com/goran-ethernal/BountyIndexor/internal/metrics"
	"github.com/russross/meddler"
)

// ApplyResult tells the caller what a batch mutation did.
type ApplyResult int

const (
	// Applied means the mutation was staged.
	Applied ApplyResult = iota
	// Duplicate means the event was already reflected in the store and nothing changed.
	Duplicate
	// Rejected means the event conflicts with the bounty's state and was ignored.
	Rejected
	// MissingBounty means the bounty is not known yet; the caller should defer the event.
	MissingBounty
)

func (r ApplyResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case Duplicate:
		return "duplicate"
	case Rejected:
		return "rejected"
	case MissingBounty:
		return "missing_bounty"
	default:
		return fmt.Sprintf("result_%d", int(r))
	}
}

// ErrBatchClosed is returned when a committed batch is used again.
var ErrBatchClosed = errors.New("batch already committed")

type stagedBounty struct {
	rec   *bounty.BountyRecord
	isNew bool
	dirty bool
}

type stagedWorker struct {
	rec   *bounty.WorkerRecord
	isNew bool
	dirty bool
}

type stagedDay struct {
	rec        *bounty.DailyStats
	isNew      bool
	newWorkers map[string]struct{}
}

// Batch is an in-memory arena of pending mutations keyed by entity identity.
// Reads fall through to committed state; nothing is visible to readers until Commit.
// A Batch is not safe for concurrent use.
type Batch struct {
	store *Store

	bounties   map[string]*stagedBounty
	workers    map[string]*stagedWorker
	payouts    []*bounty.PayoutRecord
	payoutIDs  map[string]struct{}
	payoutKeys map[bounty.LogKey]struct{}
	days       map[string]*stagedDay
	deferred   []bounty.Event

	closed bool
}

func newBatch(s *Store) *Batch {
	return &Batch{
		store:      s,
		bounties:   make(map[string]*stagedBounty),
		workers:    make(map[string]*stagedWorker),
		payoutIDs:  make(map[string]struct{}),
		payoutKeys: make(map[bounty.LogKey]struct{}),
		days:       make(map[string]*stagedDay),
	}
}

func (b *Batch) lookupBounty(id string) (*stagedBounty, error) {
	if sb, ok := b.bounties[id]; ok {
		return sb, nil
	}

	rec, err := loadBounty(b.store.db, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sb := &stagedBounty{rec: rec}
	b.bounties[id] = sb
	return sb, nil
}

// UpsertBounty stages a new bounty. A second BountyCreated for a known id is rejected,
// unless it is the very log that created the bounty.
func (b *Batch) UpsertBounty(ev *bounty.BountyCreated) (ApplyResult, error) {
	if b.closed {
		return 0, ErrBatchClosed
	}

	id := ev.BountyID.String()
	existing, err := b.lookupBounty(id)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		if existing.rec.TxHash == ev.TxHash && existing.rec.CreatedBlock == ev.BlockNumber {
			return Duplicate, nil
		}
		return Rejected, nil
	}

	b.bounties[id] = &stagedBounty{
		rec: &bounty.BountyRecord{
			BountyID:     id,
			Creator:      ev.Creator,
			Action:       ev.Action,
			RepoOwner:    ev.RepoOwner,
			RepoName:     ev.RepoName,
			Reward:       new(big.Int).Set(ev.Reward),
			Status:       bounty.StatusActive,
			CreatedAt:    int64(ev.Timestamp),
			CreatedBlock: ev.BlockNumber,
			TxHash:       ev.TxHash,
		},
		isNew: true,
	}

	return Applied, nil
}

// CompleteBounty marks an active bounty completed by the event's worker.
func (b *Batch) CompleteBounty(ev *bounty.BountyCompleted) (ApplyResult, error) {
	if b.closed {
		return 0, ErrBatchClosed
	}

	sb, err := b.lookupBounty(ev.BountyID.String())
	if err != nil {
		return 0, err
	}
	if sb == nil {
		return MissingBounty, nil
	}

	switch sb.rec.Status {
	case bounty.StatusCompleted:
		if sb.rec.CompletedBy != nil && *sb.rec.CompletedBy == ev.Worker {
			return Duplicate, nil
		}
		return Rejected, nil
	case bounty.StatusCancelled:
		return Rejected, nil
	}

	worker := ev.Worker
	completedAt := int64(ev.Timestamp)
	sb.rec.Status = bounty.StatusCompleted
	sb.rec.CompletedBy = &worker
	sb.rec.CompletedAt = &completedAt
	sb.dirty = true

	return Applied, nil
}

// CancelBounty marks an active bounty cancelled.
func (b *Batch) CancelBounty(ev *bounty.BountyCancelled) (ApplyResult, error) {
	if b.closed {
		return 0, ErrBatchClosed
	}

	sb, err := b.lookupBounty(ev.BountyID.String())
	if err != nil {
		return 0, err
	}
	if sb == nil {
		return MissingBounty, nil
	}

	switch sb.rec.Status {
	case bounty.StatusCancelled:
		return Duplicate, nil
	case bounty.StatusCompleted:
		return Rejected, nil
	}

	sb.rec.Status = bounty.StatusCancelled
	sb.dirty = true

	return Applied, nil
}

// RecordPayout stages a payout and folds it into the recipient's aggregates and the daily stats.
// created is false when the payout is already known by id or by log identity.
func (b *Batch) RecordPayout(ev *bounty.FundsReleased, proofID *string) (created bool, err error) {
	if b.closed {
		return false, ErrBatchClosed
	}

	id := ev.PayoutID()
	key := ev.Key()
	if _, ok := b.payoutIDs[id]; ok {
		return false, nil
	}
	if _, ok := b.payoutKeys[key]; ok {
		return false, nil
	}

	found, err := exists(b.store.db,
		`SELECT 1 FROM payouts WHERE id = ? OR (tx_hash = ? AND log_index = ?)`, id, ev.TxHash.Hex(), ev.LogIndex)
	if err != nil {
		return false, fmt.Errorf("failed to look up payout %s: %w", id, err)
	}
	if found {
		return false, nil
	}

	worker, err := b.stagedWorker(ev.Recipient)
	if err != nil {
		return false, err
	}
	if err := b.addToDay(ev); err != nil {
		return false, err
	}

	timestamp := int64(ev.Timestamp)
	worker.rec.AddPayout(ev.Amount, timestamp)
	worker.dirty = true

	b.payouts = append(b.payouts, &bounty.PayoutRecord{
		ID:          id,
		BountyID:    ev.BountyID.String(),
		Worker:      ev.Recipient,
		Amount:      new(big.Int).Set(ev.Amount),
		Timestamp:   timestamp,
		BlockNumber: ev.BlockNumber,
		TxHash:      ev.TxHash,
		TxIndex:     ev.TxIndex,
		LogIndex:    ev.LogIndex,
		ProofID:     proofID,
	})
	b.payoutIDs[id] = struct{}{}
	b.payoutKeys[key] = struct{}{}

	return true, nil
}

// GetOrCreateWorker returns the staged worker for address, creating an empty one if it is unknown.
// The returned record belongs to the batch.
func (b *Batch) GetOrCreateWorker(address string) (*bounty.WorkerRecord, error) {
	if b.closed {
		return nil, ErrBatchClosed
	}

	sw, err := b.stagedWorker(address)
	if err != nil {
		return nil, err
	}
	return sw.rec, nil
}

func (b *Batch) stagedWorker(address string) (*stagedWorker, error) {
	if sw, ok := b.workers[address]; ok {
		return sw, nil
	}

	rec, err := loadWorker(b.store.db, address)
	switch {
	case errors.Is(err, ErrNotFound):
		sw := &stagedWorker{rec: bounty.NewWorker(address), isNew: true}
		b.workers[address] = sw
		return sw, nil
	case err != nil:
		return nil, err
	}

	sw := &stagedWorker{rec: rec}
	b.workers[address] = sw
	return sw, nil
}

// SetWorkerScore stores a recomputed reputation score on a staged worker.
func (b *Batch) SetWorkerScore(address string, score float64) error {
	if b.closed {
		return ErrBatchClosed
	}

	sw, ok := b.workers[address]
	if !ok {
		return fmt.Errorf("worker %s is not part of the batch", address)
	}

	sw.rec.ReputationScore = score
	sw.dirty = true
	return nil
}

// Defer adds an event to the set persisted as waiting for its bounty.
// The deferred set of a committed batch replaces the previously persisted one.
func (b *Batch) Defer(ev bounty.Event) error {
	if b.closed {
		return ErrBatchClosed
	}

	switch ev.(type) {
	case *bounty.BountyCompleted, *bounty.BountyCancelled:
	default:
		return fmt.Errorf("cannot defer %s event", bounty.Name(ev))
	}

	b.deferred = append(b.deferred, ev)
	return nil
}

func (b *Batch) addToDay(ev *bounty.FundsReleased) error {
	day := bounty.DayOf(int64(ev.Timestamp))

	sd, ok := b.days[day]
	if !ok {
		rec, err := loadDailyStats(b.store.db, day)
		switch {
		case errors.Is(err, ErrNotFound):
			sd = &stagedDay{
				rec: &bounty.DailyStats{
					Day:            day,
					TotalPayments:  new(big.Int),
					AveragePayment: new(big.Int),
				},
				isNew: true,
			}
		case err != nil:
			return err
		default:
			sd = &stagedDay{rec: rec}
		}
		sd.newWorkers = make(map[string]struct{})
		b.days[day] = sd
	}

	if _, seen := sd.newWorkers[ev.Recipient]; !seen {
		known := false
		if !sd.isNew {
			var err error
			known, err = exists(b.store.db,
				`SELECT 1 FROM daily_workers WHERE day = ? AND worker = ?`, day, ev.Recipient)
			if err != nil {
				return fmt.Errorf("failed to look up daily worker: %w", err)
			}
		}
		if !known {
			sd.newWorkers[ev.Recipient] = struct{}{}
			sd.rec.UniqueWorkers++
		}
	}

	sd.rec.PaymentCount++
	sd.rec.TotalPayments = new(big.Int).Add(sd.rec.TotalPayments, ev.Amount)
	sd.rec.AveragePayment = new(big.Int).Div(sd.rec.TotalPayments, new(big.Int).SetUint64(sd.rec.PaymentCount))

	return nil
}

// Commit writes every staged mutation and advances the checkpoint in a single transaction.
// The batch cannot be used afterwards, whether or not Commit succeeded.
func (b *Batch) Commit(ctx context.Context, state checkpoint.State) (err error) {
	if b.closed {
		return ErrBatchClosed
	}
	b.closed = true

	defer func(start time.Time) { metrics.ObserveDB("commit", start, err) }(time.Now())

	s := b.store
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer db.Rollback(tx, s.log)

	for id, sb := range b.bounties {
		switch {
		case sb.isNew:
			if err := meddler.Insert(tx, tableBounties, sb.rec); err != nil {
				return fmt.Errorf("failed to insert bounty %s: %w", id, err)
			}
		case sb.dirty:
			_, err := tx.ExecContext(ctx, `
				UPDATE bounties SET status = ?, completed_by = ?, completed_at = ? WHERE bounty_id = ?
			`, string(sb.rec.Status), sb.rec.CompletedBy, sb.rec.CompletedAt, id)
			if err != nil {
				return fmt.Errorf("failed to update bounty %s: %w", id, err)
			}
		}
	}

	for _, p := range b.payouts {
		if err := meddler.Insert(tx, tablePayouts, p); err != nil {
			return fmt.Errorf("failed to insert payout %s: %w", p.ID, err)
		}
	}

	for addr, sw := range b.workers {
		switch {
		case sw.isNew:
			if err := meddler.Insert(tx, tableWorkers, sw.rec); err != nil {
				return fmt.Errorf("failed to insert worker %s: %w", addr, err)
			}
		case sw.dirty:
			w := sw.rec
			_, err := tx.ExecContext(ctx, `
				UPDATE workers SET completed_bounties = ?, total_earnings = ?, first_bounty_at = ?,
					last_bounty_at = ?, reputation_score = ?
				WHERE address = ?
			`, w.CompletedBounties, w.TotalEarnings.String(), w.FirstBountyAt, w.LastBountyAt,
				w.ReputationScore, addr)
			if err != nil {
				return fmt.Errorf("failed to update worker %s: %w", addr, err)
			}
		}
	}

	for day, sd := range b.days {
		if sd.isNew {
			if err := meddler.Insert(tx, tableDailyStats, sd.rec); err != nil {
				return fmt.Errorf("failed to insert daily stats %s: %w", day, err)
			}
		} else {
			d := sd.rec
			_, err := tx.ExecContext(ctx, `
				UPDATE daily_stats SET total_payments = ?, payment_count = ?, unique_workers = ?, average_payment = ?
				WHERE day = ?
			`, d.TotalPayments.String(), d.PaymentCount, d.UniqueWorkers, d.AveragePayment.String(), day)
			if err != nil {
				return fmt.Errorf("failed to update daily stats %s: %w", day, err)
			}
		}

		for worker := range sd.newWorkers {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO daily_workers (day, worker) VALUES (?, ?)`, day, worker); err != nil {
				return fmt.Errorf("failed to insert daily worker: %w", err)
			}
		}
	}

	if err := replaceDeferred(ctx, tx, b.deferred); err != nil {
		return err
	}

	if err := s.checkpoints.AdvanceTx(ctx, tx, state); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debugf("batch committed: height=%d, bounties=%d, payouts=%d, workers=%d, deferred=%d",
		state.Height, len(b.bounties), len(b.payouts), len(b.workers), len(b.deferred))

	return nil
}
