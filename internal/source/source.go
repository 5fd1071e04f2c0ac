// Package source implements the block source on top of an Ethereum JSON-RPC node.
package source

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/BountyIndexor/internal/common"
	"github.com/goran-ethernal/BountyIndexor/internal/logger"
	irpc "github.com/goran-ethernal/BountyIndexor/internal/rpc"
	itypes "github.com/goran-ethernal/BountyIndexor/internal/types"
	"github.com/goran-ethernal/BountyIndexor/pkg/rpc"
	"github.com/goran-ethernal/BountyIndexor/pkg/source"
)

// Compile-time check to ensure RPCSource implements source.BlockSource interface.
var _ source.BlockSource = (*RPCSource)(nil)

// Config contains configuration for the RPCSource.
type Config struct {
	// Finality specifies how the indexing ceiling is chosen
	Finality itypes.BlockFinality

	// Confirmations are withheld behind the latest block (only for "latest" mode)
	Confirmations uint64

	// Addresses are the contract addresses to filter
	Addresses []ethcommon.Address

	// Topics are the event signatures to filter, matched against topic 0
	Topics []ethcommon.Hash
}

// RPCSource fetches blocks and logs from a node.
type RPCSource struct {
	cfg Config
	rpc rpc.EthClient
	log *logger.Logger
}

// New creates a new RPCSource.
func New(cfg Config, rpcClient rpc.EthClient, log *logger.Logger) *RPCSource {
	return &RPCSource{
		cfg: cfg,
		rpc: rpcClient,
		log: log.WithComponent(common.ComponentSource),
	}
}

// Head returns the highest indexable block.
func (s *RPCSource) Head(ctx context.Context) (uint64, error) {
	var (
		header *types.Header
		err    error
	)

	switch s.cfg.Finality {
	case itypes.FinalityFinalized:
		header, err = s.rpc.GetFinalizedBlockHeader(ctx)
	case itypes.FinalitySafe:
		header, err = s.rpc.GetSafeBlockHeader(ctx)
	case itypes.FinalityLatest:
		header, err = s.rpc.GetLatestBlockHeader(ctx)
	default:
		return 0, fmt.Errorf("invalid finality mode: %s", s.cfg.Finality)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get %s block header: %w", s.cfg.Finality, err)
	}

	ceiling, ok := s.cfg.Finality.Ceiling(header.Number.Uint64(), s.cfg.Confirmations)
	if !ok {
		return 0, fmt.Errorf("%w: head %d is within %d confirmations",
			source.ErrNotReady, header.Number.Uint64(), s.cfg.Confirmations)
	}

	return ceiling, nil
}

// FetchBlocks returns the blocks in [from, to] with the matching logs attached.
// Logs flagged as removed by the node are dropped.
func (s *RPCSource) FetchBlocks(ctx context.Context, from, to uint64) ([]source.Block, error) {
	if from > to {
		return nil, fmt.Errorf("invalid range: from %d > to %d", from, to)
	}

	logs, err := s.fetchLogs(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logs: %w", err)
	}

	nums := make([]uint64, 0, to-from+1)
	for n := from; n <= to; n++ {
		nums = append(nums, n)
	}

	headers, err := s.rpc.BatchGetBlockHeaders(ctx, nums)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch headers: %w", err)
	}

	blocks := make([]source.Block, len(headers))
	index := make(map[uint64]int, len(headers))
	for i, h := range headers {
		blocks[i] = source.Block{
			Number:     h.Number.Uint64(),
			Hash:       h.Hash(),
			ParentHash: h.ParentHash,
			Timestamp:  h.Time,
		}
		index[blocks[i].Number] = i
	}

	removed := 0
	for _, l := range logs {
		if l.Removed {
			removed++
			continue
		}

		i, ok := index[l.BlockNumber]
		if !ok {
			return nil, fmt.Errorf("%w: log %s:%d in block %d outside range %d-%d",
				source.ErrInconsistent, l.TxHash.Hex(), l.Index, l.BlockNumber, from, to)
		}
		blocks[i].Logs = append(blocks[i].Logs, l)
	}

	s.log.Debugf("fetched blocks %d-%d: %d logs, %d removed logs dropped", from, to, len(logs)-removed, removed)

	return blocks, nil
}

// fetchLogs fetches logs for the whole range, splitting it whenever the node
// refuses a query as too wide.
func (s *RPCSource) fetchLogs(ctx context.Context, from, to uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: s.cfg.Addresses,
		Topics:    [][]ethcommon.Hash{s.cfg.Topics},
	}

	logs, err := s.rpc.GetLogs(ctx, query)
	if err == nil {
		return logs, nil
	}
	if !irpc.IsTooManyResults(err) {
		return nil, err
	}

	if from == to {
		return nil, fmt.Errorf("cannot split range further, single block %d has too many logs: %w", from, err)
	}

	split := (from + to) / 2 //nolint:mnd
	if sFrom, sTo, ok := irpc.SuggestedBlockRange(err); ok && sFrom == from && sTo < to {
		split = sTo
	}

	s.log.Infof("too many logs in range %d-%d, splitting at %d", from, to, split)

	first, err := s.fetchLogs(ctx, from, split)
	if err != nil {
		return nil, err
	}
	second, err := s.fetchLogs(ctx, split+1, to)
	if err != nil {
		return nil, err
	}

	return append(first, second...), nil
}
