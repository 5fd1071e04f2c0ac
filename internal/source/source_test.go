package source

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/BountyIndexor/internal/logger"
	"github.com/goran-ethernal/BountyIndexor/internal/rpc/mocks"
	itypes "github.com/goran-ethernal/BountyIndexor/internal/types"
	"github.com/goran-ethernal/BountyIndexor/pkg/source"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var contract = ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")

func createTestHeader(blockNum uint64) *types.Header {
	return &types.Header{
		Number:     new(big.Int).SetUint64(blockNum),
		ParentHash: ethcommon.BigToHash(new(big.Int).SetUint64(blockNum + 1000)),
		Difficulty: big.NewInt(1),
		GasLimit:   8000000,
		Time:       1000000 + blockNum,
	}
}

func headers(from, to uint64) []*types.Header {
	var hs []*types.Header
	for n := from; n <= to; n++ {
		hs = append(hs, createTestHeader(n))
	}
	return hs
}

func rangeQuery(from, to uint64) any {
	return mock.MatchedBy(func(q ethereum.FilterQuery) bool {
		return q.FromBlock.Uint64() == from && q.ToBlock.Uint64() == to
	})
}

func setupSource(t *testing.T, finality itypes.BlockFinality, confirmations uint64) (*RPCSource, *mocks.EthClient) {
	t.Helper()

	client := mocks.NewEthClient(t)
	cfg := Config{
		Finality:      finality,
		Confirmations: confirmations,
		Addresses:     []ethcommon.Address{contract},
		Topics:        []ethcommon.Hash{ethcommon.HexToHash("0xaaaa")},
	}

	return New(cfg, client, logger.NewNopLogger()), client
}

func TestRPCSource_Head(t *testing.T) {
	ctx := context.Background()

	t.Run("latest minus confirmations", func(t *testing.T) {
		src, client := setupSource(t, itypes.FinalityLatest, 12)
		client.On("GetLatestBlockHeader", mock.Anything).Return(createTestHeader(100), nil)

		head, err := src.Head(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(88), head)
	})

	t.Run("finalized tag", func(t *testing.T) {
		src, client := setupSource(t, itypes.FinalityFinalized, 12)
		client.On("GetFinalizedBlockHeader", mock.Anything).Return(createTestHeader(70), nil)

		head, err := src.Head(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(70), head)
	})

	t.Run("safe tag", func(t *testing.T) {
		src, client := setupSource(t, itypes.FinalitySafe, 0)
		client.On("GetSafeBlockHeader", mock.Anything).Return(createTestHeader(75), nil)

		head, err := src.Head(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(75), head)
	})

	t.Run("chain shorter than confirmations", func(t *testing.T) {
		src, client := setupSource(t, itypes.FinalityLatest, 12)
		client.On("GetLatestBlockHeader", mock.Anything).Return(createTestHeader(5), nil)

		_, err := src.Head(ctx)
		require.ErrorIs(t, err, source.ErrNotReady)
	})

	t.Run("rpc error", func(t *testing.T) {
		src, client := setupSource(t, itypes.FinalityLatest, 0)
		client.On("GetLatestBlockHeader", mock.Anything).Return(nil, errors.New("connection refused"))

		_, err := src.Head(ctx)
		require.ErrorContains(t, err, "connection refused")
	})
}

func TestRPCSource_FetchBlocks(t *testing.T) {
	src, client := setupSource(t, itypes.FinalityLatest, 0)
	ctx := context.Background()

	logs := []types.Log{
		{Address: contract, BlockNumber: 11, TxIndex: 0, Index: 0},
		{Address: contract, BlockNumber: 11, TxIndex: 1, Index: 1, Removed: true},
		{Address: contract, BlockNumber: 13, TxIndex: 0, Index: 0},
	}
	hs := headers(10, 13)

	client.On("GetLogs", mock.Anything, rangeQuery(10, 13)).Return(logs, nil)
	client.On("BatchGetBlockHeaders", mock.Anything, []uint64{10, 11, 12, 13}).Return(hs, nil)

	blocks, err := src.FetchBlocks(ctx, 10, 13)
	require.NoError(t, err)
	require.Len(t, blocks, 4)

	for i, b := range blocks {
		require.Equal(t, uint64(10+i), b.Number)
		require.Equal(t, hs[i].Hash(), b.Hash)
		require.Equal(t, hs[i].ParentHash, b.ParentHash)
		require.Equal(t, hs[i].Time, b.Timestamp)
	}

	require.Empty(t, blocks[0].Logs)
	require.Len(t, blocks[1].Logs, 1, "removed log is dropped")
	require.Empty(t, blocks[2].Logs)
	require.Len(t, blocks[3].Logs, 1)
}

func TestRPCSource_FetchBlocksSplitsWideRanges(t *testing.T) {
	src, client := setupSource(t, itypes.FinalityLatest, 0)
	ctx := context.Background()

	tooMany := errors.New("query returned more than 10000 results")

	client.On("GetLogs", mock.Anything, rangeQuery(0, 9)).Return(nil, tooMany).Once()
	client.On("GetLogs", mock.Anything, rangeQuery(0, 4)).Return([]types.Log{{BlockNumber: 2}}, nil).Once()
	client.On("GetLogs", mock.Anything, rangeQuery(5, 9)).Return(nil, tooMany).Once()
	client.On("GetLogs", mock.Anything, rangeQuery(5, 7)).Return([]types.Log{{BlockNumber: 6}}, nil).Once()
	client.On("GetLogs", mock.Anything, rangeQuery(8, 9)).Return([]types.Log{{BlockNumber: 9}}, nil).Once()
	client.On("BatchGetBlockHeaders", mock.Anything, mock.Anything).Return(headers(0, 9), nil)

	blocks, err := src.FetchBlocks(ctx, 0, 9)
	require.NoError(t, err)
	require.Len(t, blocks, 10)
	require.Len(t, blocks[2].Logs, 1)
	require.Len(t, blocks[6].Logs, 1)
	require.Len(t, blocks[9].Logs, 1)
}

func TestRPCSource_FetchBlocksUsesSuggestedRange(t *testing.T) {
	src, client := setupSource(t, itypes.FinalityLatest, 0)
	ctx := context.Background()

	suggested := errors.New("query returned more than 10000 results. Try with this block range [0x0, 0x2].")

	client.On("GetLogs", mock.Anything, rangeQuery(0, 9)).Return(nil, suggested).Once()
	client.On("GetLogs", mock.Anything, rangeQuery(0, 2)).Return([]types.Log{}, nil).Once()
	client.On("GetLogs", mock.Anything, rangeQuery(3, 9)).Return([]types.Log{}, nil).Once()
	client.On("BatchGetBlockHeaders", mock.Anything, mock.Anything).Return(headers(0, 9), nil)

	_, err := src.FetchBlocks(ctx, 0, 9)
	require.NoError(t, err)
}

func TestRPCSource_FetchBlocksSingleBlockTooWide(t *testing.T) {
	src, client := setupSource(t, itypes.FinalityLatest, 0)

	client.On("GetLogs", mock.Anything, rangeQuery(4, 4)).Return(nil, errors.New("too many results"))

	_, err := src.FetchBlocks(context.Background(), 4, 4)
	require.ErrorContains(t, err, "cannot split range further")
}

func TestRPCSource_FetchBlocksLogOutsideRange(t *testing.T) {
	src, client := setupSource(t, itypes.FinalityLatest, 0)

	client.On("GetLogs", mock.Anything, rangeQuery(1, 2)).Return([]types.Log{{BlockNumber: 7}}, nil)
	client.On("BatchGetBlockHeaders", mock.Anything, []uint64{1, 2}).Return(headers(1, 2), nil)

	_, err := src.FetchBlocks(context.Background(), 1, 2)
	require.ErrorIs(t, err, source.ErrInconsistent)
}

func TestRPCSource_FetchBlocksInvalidRange(t *testing.T) {
	src, _ := setupSource(t, itypes.FinalityLatest, 0)

	_, err := src.FetchBlocks(context.Background(), 5, 4)
	require.Error(t, err)
}
