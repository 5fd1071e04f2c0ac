// Package processor runs the indexing loop: it fetches ordered block ranges, decodes
// their logs, applies the events to the aggregation store, rescores the workers the
// batch touched and commits everything together with the checkpoint.
package processor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/BountyIndexor/internal/bounty"
	"github.com/goran-ethernal/BountyIndexor/internal/checkpoint"
	internalcommon "github.com/goran-ethernal/BountyIndexor/internal/common"
	"github.com/goran-ethernal/BountyIndexor/internal/logger"
	"github.com/goran-ethernal/BountyIndexor/internal/metrics"
	"github.com/goran-ethernal/BountyIndexor/internal/reorg"
	"github.com/goran-ethernal/BountyIndexor/internal/rpc"
	"github.com/goran-ethernal/BountyIndexor/internal/store"
	"github.com/goran-ethernal/BountyIndexor/pkg/config"
	"github.com/goran-ethernal/BountyIndexor/pkg/source"
	"github.com/samber/lo"
)

var errCaughtUp = errors.New("caught up with the indexable head")

// Config is the processor configuration.
type Config struct {
	StartHeight         uint64
	ChunkSize           uint64
	MaxIntegrityRetries int
	MaxCommitRetries    int
	PollInterval        time.Duration
	EarningsNormalizer  *big.Int
	// Retry sets the backoff between batch retries.
	Retry *config.RetryConfig
}

// NewConfig builds the processor configuration from the indexer section.
func NewConfig(cfg config.IndexerConfig, retry *config.RetryConfig) Config {
	return Config{
		StartHeight:         cfg.StartHeight,
		ChunkSize:           cfg.ChunkSize,
		MaxIntegrityRetries: cfg.MaxIntegrityRetries,
		MaxCommitRetries:    cfg.MaxCommitRetries,
		PollInterval:        cfg.PollInterval.Duration,
		EarningsNormalizer:  cfg.Normalizer(),
		Retry:               retry,
	}
}

// Store is the part of the aggregation store the processor writes through.
type Store interface {
	NewBatch() *store.Batch
	LoadDeferred(ctx context.Context) ([]bounty.Event, error)
	FindVerifiedProof(ctx context.Context, bountyID, worker string) (*bounty.ProofRecord, error)
}

// Checkpoints reads the committed checkpoint.
type Checkpoints interface {
	LastProcessed(ctx context.Context) (checkpoint.State, bool, error)
}

// Processor is the single writer of the aggregation store.
type Processor struct {
	cfg         Config
	source      source.BlockSource
	store       Store
	checkpoints Checkpoints
	decoder     *bounty.Decoder
	params      bounty.ReputationParams
	log         *logger.Logger

	// position after the last commit
	next     uint64
	lastHash common.Hash
	hasLast  bool

	mu     sync.RWMutex
	status Status
}

// New creates a processor.
func New(
	cfg Config,
	src source.BlockSource,
	st Store,
	checkpoints Checkpoints,
	decoder *bounty.Decoder,
	log *logger.Logger,
) *Processor {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 1
	}

	return &Processor{
		cfg:         cfg,
		source:      src,
		store:       st,
		checkpoints: checkpoints,
		decoder:     decoder,
		params:      bounty.ReputationParams{EarningsNormalizer: cfg.EarningsNormalizer},
		log:         log.WithComponent(internalcommon.ComponentProcessor),
		status:      Status{State: StateIdle, UpdatedAt: time.Now()},
	}
}

// Run processes batches until ctx is cancelled. Cancellation is honoured between batches
// and while fetching; a fetched batch is always driven to commit or to a clean abort.
// Once the processor fails, Run keeps the failed status visible until ctx is cancelled
// and then returns an error wrapping ErrFailed.
func (p *Processor) Run(ctx context.Context) error {
	if err := p.resume(ctx); err != nil {
		return err
	}

	var integrityFailures, commitFailures, transientFailures int

	for {
		if ctx.Err() != nil {
			p.setState(StateIdle)
			p.log.Info("processor stopped")
			return nil
		}

		err := p.step(ctx)
		switch {
		case err == nil:
			integrityFailures, commitFailures, transientFailures = 0, 0, 0
			continue
		case errors.Is(err, errCaughtUp):
			p.setState(StateIdle)
			_ = rpc.Sleep(ctx, p.cfg.PollInterval)
			continue
		case ctx.Err() != nil:
			continue
		}

		class := classify(err)
		metrics.BatchRetries.WithLabelValues(class).Inc()
		p.updateStatus(func(s *Status) { s.LastError = err.Error() })

		var attempt int
		switch class {
		case classTransient:
			transientFailures++
			attempt = transientFailures
		case classIntegrity:
			integrityFailures++
			attempt = integrityFailures
			if integrityFailures > p.cfg.MaxIntegrityRetries {
				return p.fail(ctx, err)
			}
		case classCommit:
			commitFailures++
			attempt = commitFailures
			if commitFailures > p.cfg.MaxCommitRetries {
				return p.fail(ctx, err)
			}
		}

		p.log.Warnf("batch from %d failed (%s, attempt %d): %v", p.next, class, attempt, err)
		_ = rpc.Sleep(ctx, rpc.Backoff(attempt+1, p.cfg.Retry))
	}
}

func (p *Processor) resume(ctx context.Context) error {
	state, ok, err := p.checkpoints.LastProcessed(ctx)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	p.next = p.cfg.StartHeight
	if ok {
		p.next = state.Height + 1
		p.lastHash = state.BlockHash
		p.hasLast = true
		metrics.LastIndexedBlock.Set(float64(state.Height))
		p.log.Infof("resuming from checkpoint: height=%d, hash=%s", state.Height, state.BlockHash.Hex())
	} else {
		p.log.Infof("no checkpoint, starting from height %d", p.next)
	}

	p.updateStatus(func(s *Status) {
		s.HasCheckpoint = ok
		s.LastCommitted = state.Height
	})
	p.setState(StateIdle)

	return nil
}

func (p *Processor) fail(ctx context.Context, err error) error {
	p.log.Errorf("processor failed, operator intervention required: %v", err)
	p.setState(StateFailed)
	metrics.ComponentHealthSet(internalcommon.ComponentProcessor, false)

	<-ctx.Done()
	return fmt.Errorf("%w: %w", ErrFailed, err)
}

func (p *Processor) setState(state State) {
	p.updateStatus(func(s *Status) { s.State = state })
	metrics.SetProcessorState(string(state), allStates)
}

// step fetches and commits one batch starting at p.next.
func (p *Processor) step(ctx context.Context) error {
	p.setState(StateFetching)

	head, err := p.source.Head(ctx)
	if errors.Is(err, source.ErrNotReady) {
		return errCaughtUp
	}
	if err != nil {
		return fmt.Errorf("failed to get head: %w", err)
	}

	metrics.ChainHead.Set(float64(head))
	p.updateStatus(func(s *Status) { s.Head = head })

	if p.next > head {
		return errCaughtUp
	}

	from := p.next
	to := min(from+p.cfg.ChunkSize-1, head)

	blocks, err := p.source.FetchBlocks(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to fetch blocks %d-%d: %w", from, to, err)
	}

	if err := p.validate(from, to, blocks); err != nil {
		return err
	}

	// the fetched batch is driven to commit regardless of cancellation
	return p.process(context.WithoutCancel(ctx), blocks)
}

// validate checks the batch contract: every height of [from, to] in ascending order,
// each log inside the block it claims, and a parent chain extending the checkpoint.
func (p *Processor) validate(from, to uint64, blocks []source.Block) error {
	if uint64(len(blocks)) != to-from+1 {
		return integrityErrorf(from, to, "expected %d blocks, got %d", to-from+1, len(blocks))
	}

	hashes := make([]common.Hash, len(blocks))
	parents := make([]common.Hash, len(blocks))

	for i, b := range blocks {
		if b.Number != from+uint64(i) {
			return integrityErrorf(from, to, "block %d at position %d, expected %d", b.Number, i, from+uint64(i))
		}
		for _, l := range b.Logs {
			if l.BlockNumber != b.Number || (l.BlockHash != (common.Hash{}) && l.BlockHash != b.Hash) {
				return integrityErrorf(from, to, "log %s:%d does not belong to block %d (%s)",
					l.TxHash.Hex(), l.Index, b.Number, b.Hash.Hex())
			}
		}
		hashes[i] = b.Hash
		parents[i] = b.ParentHash
	}

	if p.hasLast {
		if err := reorg.VerifyParent(p.next-1, p.lastHash, from, blocks[0].ParentHash); err != nil {
			return err
		}
	}

	return reorg.VerifyChain(from, hashes, parents)
}

// process decodes, aggregates, scores and commits a validated batch.
func (p *Processor) process(ctx context.Context, blocks []source.Block) (err error) {
	start := time.Now()
	last := blocks[len(blocks)-1]

	defer func() {
		if err != nil {
			err = &CommitError{Height: last.Number, Err: err}
		}
	}()

	p.setState(StateDecoding)
	events := p.decode(blocks)

	p.setState(StateAggregating)
	batch := p.store.NewBatch()
	agg := newAggregator(ctx, batch, p.store, p.log)

	deferred, err := p.store.LoadDeferred(ctx)
	if err != nil {
		return err
	}
	for _, ev := range deferred {
		if err := agg.apply(ev, true); err != nil {
			return err
		}
	}
	for _, ev := range events {
		if err := agg.apply(ev, false); err != nil {
			return err
		}
	}

	remaining := agg.unresolved()
	for _, ev := range remaining {
		p.log.Warnf("deferring %s for unknown bounty %s (log %s, block %d)",
			bounty.Name(ev), bountyID(ev), ev.Meta().Key(), ev.Meta().BlockNumber)
		if err := batch.Defer(ev); err != nil {
			return err
		}
	}

	p.setState(StateScoring)
	touched := lo.Uniq(agg.touched)
	for _, addr := range touched {
		w, err := batch.GetOrCreateWorker(addr)
		if err != nil {
			return err
		}
		if err := batch.SetWorkerScore(addr, bounty.Score(w.ReputationInput(), p.params)); err != nil {
			return err
		}
	}

	p.setState(StateCommitting)
	if err := batch.Commit(ctx, checkpoint.State{Height: last.Number, BlockHash: last.Hash}); err != nil {
		return err
	}

	p.next = last.Number + 1
	p.lastHash = last.Hash
	p.hasLast = true

	p.updateStatus(func(s *Status) {
		s.LastCommitted = last.Number
		s.HasCheckpoint = true
		s.Deferred = len(remaining)
		s.LastError = ""
	})
	p.setState(StateIdle)

	for name, n := range agg.applied {
		metrics.EventsApplied.WithLabelValues(name).Add(float64(n))
	}
	metrics.DeferredEvents.Set(float64(len(remaining)))
	metrics.LastIndexedBlock.Set(float64(last.Number))
	metrics.BlocksProcessed.Add(float64(len(blocks)))
	metrics.BatchesCommitted.Inc()
	metrics.BatchProcessingTime.Observe(time.Since(start).Seconds())
	metrics.ComponentHealthSet(internalcommon.ComponentProcessor, true)

	p.log.Infof("committed blocks %d-%d: %d events, %d workers rescored, %d deferred",
		blocks[0].Number, last.Number, len(events), len(touched), len(remaining))

	return nil
}

// decode turns the logs of the batch into events in chain order. Repeated logs,
// malformed logs and logs of unknown events are skipped.
func (p *Processor) decode(blocks []source.Block) []bounty.Event {
	var (
		events []bounty.Event
		seen   = make(map[bounty.LogKey]struct{})
	)

	for _, b := range blocks {
		logs := slices.Clone(b.Logs)
		slices.SortStableFunc(logs, func(a, c types.Log) int {
			return cmp.Or(cmp.Compare(a.TxIndex, c.TxIndex), cmp.Compare(a.Index, c.Index))
		})

		for _, l := range logs {
			key := bounty.LogKey{TxHash: l.TxHash, LogIndex: l.Index}
			if _, dup := seen[key]; dup {
				metrics.LogsSkipped.WithLabelValues("duplicate").Inc()
				continue
			}
			seen[key] = struct{}{}

			ev, err := p.decoder.Decode(l, b.Timestamp)
			if err != nil {
				metrics.LogsSkipped.WithLabelValues("malformed").Inc()
				p.log.Warnf("skipping malformed log: %v", err)
				continue
			}
			if _, ok := ev.(*bounty.Unrecognized); ok {
				metrics.LogsSkipped.WithLabelValues("unrecognized").Inc()
				p.log.Debugf("skipping unrecognized log %s in block %d", key, l.BlockNumber)
				continue
			}

			events = append(events, ev)
		}
	}

	return events
}

func bountyID(ev bounty.Event) string {
	switch e := ev.(type) {
	case *bounty.BountyCreated:
		return e.BountyID.String()
	case *bounty.BountyCompleted:
		return e.BountyID.String()
	case *bounty.BountyCancelled:
		return e.BountyID.String()
	case *bounty.FundsReleased:
		return e.BountyID.String()
	default:
		return ""
	}
}
