package rpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/BountyIndexor/pkg/config"
	pkgrpc "github.com/goran-ethernal/BountyIndexor/pkg/rpc"
)

// Compile-time check to ensure Client implements pkgrpc.EthClient interface.
var _ pkgrpc.EthClient = (*Client)(nil)

const maxHeaderBatch = 100

// Client wraps the Ethereum RPC client. Every call is measured and retried
// on transient failures according to the retry configuration.
type Client struct {
	eth   *ethclient.Client
	rpc   *rpc.Client
	retry *config.RetryConfig
}

// NewClient creates a new RPC client connected to the given endpoint.
// A nil retry config executes every call once.
func NewClient(ctx context.Context, endpoint string, retry *config.RetryConfig) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}

	return newClient(rpcClient, retry), nil
}

func newClient(rpcClient *rpc.Client, retry *config.RetryConfig) *Client {
	return &Client{
		eth:   ethclient.NewClient(rpcClient),
		rpc:   rpcClient,
		retry: retry,
	}
}

// Close closes the RPC client connection.
func (c *Client) Close() {
	c.eth.Close()
}

// call runs fn under the retry policy and records request metrics for method.
func (c *Client) call(ctx context.Context, method string, fn func() error) error {
	return retryWithBackoff(ctx, c.retry, method, func() error {
		start := time.Now()
		rpcRequests.WithLabelValues(method).Inc()

		err := fn()
		rpcDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		if err != nil {
			rpcErrors.WithLabelValues(method, errorType(err)).Inc()
		}
		return err
	})
}

// GetLogs retrieves logs matching the given filter query.
func (c *Client) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.call(ctx, "eth_getLogs", func() (err error) {
		logs, err = c.eth.FilterLogs(ctx, query)
		return err
	})
	return logs, err
}

// GetBlockHeader retrieves the header for a specific block number.
func (c *Client) GetBlockHeader(ctx context.Context, blockNum uint64) (*types.Header, error) {
	return c.header(ctx, new(big.Int).SetUint64(blockNum))
}

// GetLatestBlockHeader retrieves the latest block header.
func (c *Client) GetLatestBlockHeader(ctx context.Context) (*types.Header, error) {
	return c.header(ctx, nil)
}

// GetFinalizedBlockHeader retrieves the finalized block header.
func (c *Client) GetFinalizedBlockHeader(ctx context.Context) (*types.Header, error) {
	return c.header(ctx, big.NewInt(int64(rpc.FinalizedBlockNumber)))
}

// GetSafeBlockHeader retrieves the safe block header.
func (c *Client) GetSafeBlockHeader(ctx context.Context) (*types.Header, error) {
	return c.header(ctx, big.NewInt(int64(rpc.SafeBlockNumber)))
}

func (c *Client) header(ctx context.Context, number *big.Int) (*types.Header, error) {
	var header *types.Header
	err := c.call(ctx, "eth_getBlockByNumber", func() (err error) {
		header, err = c.eth.HeaderByNumber(ctx, number)
		return err
	})
	return header, err
}

// BatchGetBlockHeaders retrieves headers for multiple block numbers, up to
// maxHeaderBatch per batch call. Missing blocks are reported as an error.
func (c *Client) BatchGetBlockHeaders(ctx context.Context, blockNums []uint64) ([]*types.Header, error) {
	all := make([]*types.Header, 0, len(blockNums))

	for i := 0; i < len(blockNums); i += maxHeaderBatch {
		chunk := blockNums[i:min(i+maxHeaderBatch, len(blockNums))]
		results := make([]*types.Header, len(chunk))

		err := c.call(ctx, "batch_eth_getBlockByNumber", func() error {
			batch := make([]rpc.BatchElem, len(chunk))
			for j, num := range chunk {
				batch[j] = rpc.BatchElem{
					Method: "eth_getBlockByNumber",
					Args:   []any{toBlockNumArg(num), false},
					Result: &results[j],
				}
			}

			if err := c.rpc.BatchCallContext(ctx, batch); err != nil {
				return err
			}
			for _, elem := range batch {
				if elem.Error != nil {
					return elem.Error
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		for j, h := range results {
			if h == nil {
				return nil, fmt.Errorf("block %d not found", chunk[j])
			}
		}
		all = append(all, results...)
	}

	return all, nil
}

// toBlockNumArg converts a block number to hex format.
func toBlockNumArg(blockNum uint64) string {
	return fmt.Sprintf("0x%x", blockNum)
}
