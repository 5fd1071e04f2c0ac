package bounty

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	internalcommon "github.com/goran-ethernal/BountyIndexor/internal/common"
)

// Event names.
const (
	EventBountyCreated   = "BountyCreated"
	EventBountyCompleted = "BountyCompleted"
	EventBountyCancelled = "BountyCancelled"
	EventFundsReleased   = "FundsReleased"
)

// Event signatures as emitted by the bounty contract and the payout vault.
const (
	SigBountyCreated   = "BountyCreated(uint256,address,uint8,string,string,uint256)"
	SigBountyCompleted = "BountyCompleted(uint256,address,uint256)"
	SigBountyCancelled = "BountyCancelled(uint256)"
	SigFundsReleased   = "FundsReleased(uint256,address,uint256)"
)

// Topic hashes of the indexed events.
var (
	TopicBountyCreated   = crypto.Keccak256Hash([]byte(SigBountyCreated))
	TopicBountyCompleted = crypto.Keccak256Hash([]byte(SigBountyCompleted))
	TopicBountyCancelled = crypto.Keccak256Hash([]byte(SigBountyCancelled))
	TopicFundsReleased   = crypto.Keccak256Hash([]byte(SigFundsReleased))
)

var (
	errTopicCount = errors.New("unexpected topic count")
	errDataLength = errors.New("unexpected data length")

	uint8Type   = mustType("uint8")
	uint256Type = mustType("uint256")
	stringType  = mustType("string")

	// non-indexed arguments of BountyCreated: action, repoOwner, repoName, reward
	createdData = abi.Arguments{{Type: uint8Type}, {Type: stringType}, {Type: stringType}, {Type: uint256Type}}
	// non-indexed argument of BountyCompleted and FundsReleased
	amountData = abi.Arguments{{Type: uint256Type}}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// Decoder turns raw logs into typed events.
// Bounty events are only recognized from the bounty contract and FundsReleased only from the vault.
type Decoder struct {
	contract common.Address
	vault    common.Address
}

// NewDecoder creates a decoder for the given bounty contract and payout vault.
func NewDecoder(contract, vault common.Address) *Decoder {
	return &Decoder{contract: contract, vault: vault}
}

// Addresses returns the contract addresses whose logs the decoder understands.
func (d *Decoder) Addresses() []common.Address {
	return []common.Address{d.contract, d.vault}
}

// Topics returns the event signature hashes the decoder understands.
func (d *Decoder) Topics() []common.Hash {
	return []common.Hash{TopicBountyCreated, TopicBountyCompleted, TopicBountyCancelled, TopicFundsReleased}
}

// Decode decodes log. timestamp is the timestamp of the block containing the log.
// A signature unknown for the emitting address yields *Unrecognized; a known signature
// with malformed topics or data yields a *DecodeError.
func (d *Decoder) Decode(log types.Log, timestamp uint64) (Event, error) {
	meta := LogMeta{
		Address:     internalcommon.NormalizeAddress(log.Address),
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		Timestamp:   timestamp,
		TxHash:      log.TxHash,
		TxIndex:     log.TxIndex,
		LogIndex:    log.Index,
	}

	if len(log.Topics) == 0 {
		return &Unrecognized{LogMeta: meta}, nil
	}
	topic := log.Topics[0]

	var (
		ev   Event
		name string
		err  error
	)
	switch {
	case log.Address == d.contract && topic == TopicBountyCreated:
		name = EventBountyCreated
		ev, err = decodeCreated(meta, log)
	case log.Address == d.contract && topic == TopicBountyCompleted:
		name = EventBountyCompleted
		ev, err = decodeCompleted(meta, log)
	case log.Address == d.contract && topic == TopicBountyCancelled:
		name = EventBountyCancelled
		ev, err = decodeCancelled(meta, log)
	case log.Address == d.vault && topic == TopicFundsReleased:
		name = EventFundsReleased
		ev, err = decodeFundsReleased(meta, log)
	default:
		return &Unrecognized{LogMeta: meta, Topic: topic}, nil
	}

	if err != nil {
		return nil, &DecodeError{Event: name, Key: meta.Key(), Block: meta.BlockNumber, Err: err}
	}
	return ev, nil
}

func checkTopics(log types.Log, want int) error {
	if len(log.Topics) != want {
		return fmt.Errorf("%w: expected %d, got %d", errTopicCount, want, len(log.Topics))
	}
	return nil
}

func topicUint(h common.Hash) *big.Int {
	return new(big.Int).SetBytes(h.Bytes())
}

func topicAddress(h common.Hash) string {
	return internalcommon.NormalizeAddress(common.BytesToAddress(h.Bytes()))
}

func decodeCreated(meta LogMeta, log types.Log) (*BountyCreated, error) {
	if err := checkTopics(log, 3); err != nil { //nolint:mnd
		return nil, err
	}

	values, err := createdData.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errDataLength, err)
	}

	return &BountyCreated{
		LogMeta:   meta,
		BountyID:  topicUint(log.Topics[1]),
		Creator:   topicAddress(log.Topics[2]),
		Action:    TaskAction(values[0].(uint8)),
		RepoOwner: values[1].(string),
		RepoName:  values[2].(string),
		Reward:    values[3].(*big.Int),
	}, nil
}

func decodeCompleted(meta LogMeta, log types.Log) (*BountyCompleted, error) {
	if err := checkTopics(log, 3); err != nil { //nolint:mnd
		return nil, err
	}

	reward, err := unpackAmount(log.Data)
	if err != nil {
		return nil, err
	}

	return &BountyCompleted{
		LogMeta:  meta,
		BountyID: topicUint(log.Topics[1]),
		Worker:   topicAddress(log.Topics[2]),
		Reward:   reward,
	}, nil
}

func decodeCancelled(meta LogMeta, log types.Log) (*BountyCancelled, error) {
	if err := checkTopics(log, 2); err != nil { //nolint:mnd
		return nil, err
	}

	return &BountyCancelled{
		LogMeta:  meta,
		BountyID: topicUint(log.Topics[1]),
	}, nil
}

func decodeFundsReleased(meta LogMeta, log types.Log) (*FundsReleased, error) {
	if err := checkTopics(log, 3); err != nil { //nolint:mnd
		return nil, err
	}

	amount, err := unpackAmount(log.Data)
	if err != nil {
		return nil, err
	}

	return &FundsReleased{
		LogMeta:   meta,
		BountyID:  topicUint(log.Topics[1]),
		Recipient: topicAddress(log.Topics[2]),
		Amount:    amount,
	}, nil
}

func unpackAmount(data []byte) (*big.Int, error) {
	if len(data) != common.HashLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", errDataLength, common.HashLength, len(data))
	}
	values, err := amountData.Unpack(data)
	if err != nil {
		return nil, err
	}
	return values[0].(*big.Int), nil
}
