// Package bountytest builds raw contract logs for tests.
package bountytest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/BountyIndexor/internal/bounty"
)

var (
	Contract = common.HexToAddress("0xB0B0000000000000000000000000000000000001")
	Vault    = common.HexToAddress("0xFA17000000000000000000000000000000000002")
)

var (
	uint8Type, _   = abi.NewType("uint8", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)
	stringType, _  = abi.NewType("string", "", nil)
)

// Pos is the chain position of a log.
type Pos struct {
	Block    uint64
	TxIndex  uint
	LogIndex uint
}

func (p Pos) apply(l types.Log) types.Log {
	l.BlockNumber = p.Block
	l.BlockHash = BlockHash(p.Block)
	l.TxIndex = p.TxIndex
	l.Index = p.LogIndex
	l.TxHash = TxHash(p.Block, p.TxIndex)
	return l
}

// BlockHash returns a deterministic hash for a block number.
func BlockHash(n uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(n + 0xb10c))
}

// TxHash returns a deterministic hash for a transaction.
func TxHash(block uint64, txIndex uint) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(block<<16 | uint64(txIndex)))
}

func idTopic(id int64) common.Hash {
	return common.BigToHash(big.NewInt(id))
}

func addrTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// Created returns a BountyCreated log emitted by Contract.
func Created(p Pos, id int64, creator common.Address, reward int64) types.Log {
	data, err := abi.Arguments{{Type: uint8Type}, {Type: stringType}, {Type: stringType}, {Type: uint256Type}}.
		Pack(uint8(bounty.ActionMergePR), "octo", "repo", big.NewInt(reward))
	if err != nil {
		panic(err)
	}

	return p.apply(types.Log{
		Address: Contract,
		Topics:  []common.Hash{bounty.TopicBountyCreated, idTopic(id), addrTopic(creator)},
		Data:    data,
	})
}

// Completed returns a BountyCompleted log emitted by Contract.
func Completed(p Pos, id int64, worker common.Address, reward int64) types.Log {
	return p.apply(types.Log{
		Address: Contract,
		Topics:  []common.Hash{bounty.TopicBountyCompleted, idTopic(id), addrTopic(worker)},
		Data:    common.BigToHash(big.NewInt(reward)).Bytes(),
	})
}

// Cancelled returns a BountyCancelled log emitted by Contract.
func Cancelled(p Pos, id int64) types.Log {
	return p.apply(types.Log{
		Address: Contract,
		Topics:  []common.Hash{bounty.TopicBountyCancelled, idTopic(id)},
	})
}

// Released returns a FundsReleased log emitted by Vault.
func Released(p Pos, id int64, recipient common.Address, amount int64) types.Log {
	return p.apply(types.Log{
		Address: Vault,
		Topics:  []common.Hash{bounty.TopicFundsReleased, idTopic(id), addrTopic(recipient)},
		Data:    common.BigToHash(big.NewInt(amount)).Bytes(),
	})
}
