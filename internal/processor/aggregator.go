package processor

import (
	"context"
	"errors"

	"github.com/goran-ethernal/BountyIndexor/internal/bounty"
	"github.com/goran-ethernal/BountyIndexor/internal/logger"
	"github.com/goran-ethernal/BountyIndexor/internal/metrics"
	"github.com/goran-ethernal/BountyIndexor/internal/store"
)

// aggregator applies the events of one batch in order. Completions and cancellations
// of bounties that are not known yet wait in pending and are replayed as soon as the
// BountyCreated shows up.
type aggregator struct {
	ctx   context.Context
	batch *store.Batch
	store Store
	log   *logger.Logger

	pending map[string][]bounty.Event
	order   []string
	touched []string
	applied map[string]int
}

func newAggregator(ctx context.Context, batch *store.Batch, st Store, log *logger.Logger) *aggregator {
	return &aggregator{
		ctx:     ctx,
		batch:   batch,
		store:   st,
		log:     log,
		pending: make(map[string][]bounty.Event),
		applied: make(map[string]int),
	}
}

// apply stages a single event. replayed marks events loaded from the deferred set.
func (a *aggregator) apply(ev bounty.Event, replayed bool) error {
	switch e := ev.(type) {
	case *bounty.BountyCreated:
		res, err := a.batch.UpsertBounty(e)
		if err != nil {
			return err
		}
		switch res {
		case store.Applied:
			a.count(ev)
			return a.flush(e.BountyID.String())
		case store.Rejected:
			metrics.Anomalies.WithLabelValues("duplicate_created").Inc()
			a.log.Warnf("ignoring second BountyCreated for bounty %s (log %s, block %d)",
				e.BountyID, e.Key(), e.BlockNumber)
		}
		return nil

	case *bounty.BountyCompleted:
		res, err := a.batch.CompleteBounty(e)
		if err != nil {
			return err
		}
		return a.settle(ev, e.BountyID.String(), res, replayed)

	case *bounty.BountyCancelled:
		res, err := a.batch.CancelBounty(e)
		if err != nil {
			return err
		}
		return a.settle(ev, e.BountyID.String(), res, replayed)

	case *bounty.FundsReleased:
		return a.release(e)

	default:
		return nil
	}
}

func (a *aggregator) settle(ev bounty.Event, id string, res store.ApplyResult, replayed bool) error {
	switch res {
	case store.Applied:
		a.count(ev)
	case store.MissingBounty:
		if !replayed {
			metrics.Anomalies.WithLabelValues("out_of_order").Inc()
		}
		a.hold(id, ev)
	case store.Rejected:
		metrics.Anomalies.WithLabelValues("illegal_transition").Inc()
		a.log.Warnf("ignoring %s for bounty %s: transition not allowed (log %s, block %d)",
			bounty.Name(ev), id, ev.Meta().Key(), ev.Meta().BlockNumber)
	}
	return nil
}

// release records a payout. The proof lookup is best effort; a payout is never
// held back for a missing proof or a missing bounty.
func (a *aggregator) release(e *bounty.FundsReleased) error {
	var proofID *string

	proof, err := a.store.FindVerifiedProof(a.ctx, e.BountyID.String(), e.Recipient)
	switch {
	case err == nil:
		proofID = &proof.ID
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	created, err := a.batch.RecordPayout(e, proofID)
	if err != nil {
		return err
	}
	if created {
		a.count(e)
		a.touched = append(a.touched, e.Recipient)
	}
	return nil
}

func (a *aggregator) hold(id string, ev bounty.Event) {
	if _, ok := a.pending[id]; !ok {
		a.order = append(a.order, id)
	}
	a.pending[id] = append(a.pending[id], ev)
}

// flush replays the events held for a bounty that was just created.
func (a *aggregator) flush(id string) error {
	held := a.pending[id]
	delete(a.pending, id)

	for _, ev := range held {
		a.log.Debugf("applying held %s for bounty %s", bounty.Name(ev), id)
		if err := a.apply(ev, true); err != nil {
			return err
		}
	}
	return nil
}

// unresolved returns the events still waiting for their bounty, in arrival order.
func (a *aggregator) unresolved() []bounty.Event {
	var out []bounty.Event
	for _, id := range a.order {
		out = append(out, a.pending[id]...)
	}
	return out
}

func (a *aggregator) count(ev bounty.Event) {
	a.applied[bounty.Name(ev)]++
}
