// Package bounty holds the bounty domain: decoded contract events, the records
// projected from them and the reputation score derived from worker statistics.
package bounty

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TaskAction is the task type a bounty rewards.
type TaskAction uint8

const (
	ActionStarRepo TaskAction = iota
	ActionMergePR
	ActionOpenIssue
	ActionComment
	ActionCustom
)

func (a TaskAction) String() string {
	switch a {
	case ActionStarRepo:
		return "star_repo"
	case ActionMergePR:
		return "merge_pr"
	case ActionOpenIssue:
		return "open_issue"
	case ActionComment:
		return "comment"
	case ActionCustom:
		return "custom"
	default:
		return fmt.Sprintf("action_%d", uint8(a))
	}
}

// LogKey identifies a log on chain.
type LogKey struct {
	TxHash   common.Hash
	LogIndex uint
}

func (k LogKey) String() string {
	return fmt.Sprintf("%s:%d", k.TxHash.Hex(), k.LogIndex)
}

// LogMeta is the chain position of the log an event was decoded from.
type LogMeta struct {
	Address     string
	BlockNumber uint64
	BlockHash   common.Hash
	Timestamp   uint64
	TxHash      common.Hash
	TxIndex     uint
	LogIndex    uint
}

// Key returns the identity used for deduplication.
func (m LogMeta) Key() LogKey {
	return LogKey{TxHash: m.TxHash, LogIndex: m.LogIndex}
}

// Time returns the block timestamp.
func (m LogMeta) Time() time.Time {
	return time.Unix(int64(m.Timestamp), 0).UTC()
}

// Event is one decoded log. The set of implementations is closed:
// BountyCreated, BountyCompleted, BountyCancelled, FundsReleased and Unrecognized.
type Event interface {
	Meta() LogMeta
	event()
}

// BountyCreated is emitted by the bounty contract when a bounty is funded.
type BountyCreated struct {
	LogMeta
	BountyID  *big.Int
	Creator   string
	Action    TaskAction
	RepoOwner string
	RepoName  string
	Reward    *big.Int
}

// BountyCompleted is emitted by the bounty contract when a worker's claim is accepted.
type BountyCompleted struct {
	LogMeta
	BountyID *big.Int
	Worker   string
	Reward   *big.Int
}

// BountyCancelled is emitted by the bounty contract when the creator withdraws a bounty.
type BountyCancelled struct {
	LogMeta
	BountyID *big.Int
}

// FundsReleased is emitted by the payout vault when a worker is paid.
type FundsReleased struct {
	LogMeta
	BountyID  *big.Int
	Recipient string
	Amount    *big.Int
}

// Unrecognized is a log whose signature is not known for its emitting address.
type Unrecognized struct {
	LogMeta
	Topic common.Hash
}

func (e *BountyCreated) Meta() LogMeta   { return e.LogMeta }
func (e *BountyCompleted) Meta() LogMeta { return e.LogMeta }
func (e *BountyCancelled) Meta() LogMeta { return e.LogMeta }
func (e *FundsReleased) Meta() LogMeta   { return e.LogMeta }
func (e *Unrecognized) Meta() LogMeta    { return e.LogMeta }

func (*BountyCreated) event()   {}
func (*BountyCompleted) event() {}
func (*BountyCancelled) event() {}
func (*FundsReleased) event()   {}
func (*Unrecognized) event()    {}

// Name returns the event name used in logs and metrics.
func Name(e Event) string {
	switch e.(type) {
	case *BountyCreated:
		return EventBountyCreated
	case *BountyCompleted:
		return EventBountyCompleted
	case *BountyCancelled:
		return EventBountyCancelled
	case *FundsReleased:
		return EventFundsReleased
	case *Unrecognized:
		return "Unrecognized"
	default:
		panic(fmt.Sprintf("unknown event type %T", e))
	}
}

// PayoutID is the composite payout identity: bounty id, block height and transaction index.
func (e *FundsReleased) PayoutID() string {
	return fmt.Sprintf("%s-%d-%d", e.BountyID.String(), e.BlockNumber, e.TxIndex)
}

// DecodeError is returned for a log that carries a known signature but cannot be decoded.
type DecodeError struct {
	Event string
	Key   LogKey
	Block uint64
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s log %s in block %d: %v", e.Event, e.Key, e.Block, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
