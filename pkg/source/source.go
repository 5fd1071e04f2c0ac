package source

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrNotReady is returned by Head when no block is indexable yet.
	ErrNotReady = errors.New("no indexable block yet")

	// ErrInconsistent marks source data that violates the batch contract.
	ErrInconsistent = errors.New("inconsistent source data")
)

// Block is one block of the feed with the relevant logs it contains, in emission order.
type Block struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Timestamp  uint64
	Logs       []types.Log
}

// BlockSource is the range-queryable upstream feed of blocks and logs.
type BlockSource interface {
	// Head returns the highest block that may be indexed, after finality is applied.
	Head(ctx context.Context) (uint64, error)

	// FetchBlocks returns every block in [from, to] in ascending order, each carrying its logs.
	FetchBlocks(ctx context.Context, from, to uint64) ([]Block, error)
}
