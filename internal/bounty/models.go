package bounty

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BountyStatus is the lifecycle state of a bounty.
// The only transitions are active to completed and active to cancelled.
type BountyStatus string

const (
	StatusActive    BountyStatus = "active"
	StatusCompleted BountyStatus = "completed"
	StatusCancelled BountyStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s BountyStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// DefaultSuccessRate is the success rate of a worker with no recorded failures.
const DefaultSuccessRate = 100

// BountyRecord is the current state of a bounty.
type BountyRecord struct {
	BountyID        string       `meddler:"bounty_id"`
	Creator         string       `meddler:"creator,address"`
	Action          TaskAction   `meddler:"action"`
	RepoOwner       string       `meddler:"repo_owner"`
	RepoName        string       `meddler:"repo_name"`
	PROrIssueNumber *int64       `meddler:"pr_or_issue_number"`
	Reward          *big.Int     `meddler:"reward,bigint"`
	Status          BountyStatus `meddler:"status"`
	CompletedBy     *string      `meddler:"completed_by,address"`
	CreatedAt       int64        `meddler:"created_at"`
	CompletedAt     *int64       `meddler:"completed_at"`
	CreatedBlock    uint64       `meddler:"created_block"`
	TxHash          common.Hash  `meddler:"tx_hash,hash"`
}

// PayoutRecord is an immutable record of funds released to a worker.
type PayoutRecord struct {
	ID          string      `meddler:"id"`
	BountyID    string      `meddler:"bounty_id"`
	Worker      string      `meddler:"worker,address"`
	Amount      *big.Int    `meddler:"amount,bigint"`
	Timestamp   int64       `meddler:"timestamp"`
	BlockNumber uint64      `meddler:"block_number"`
	TxHash      common.Hash `meddler:"tx_hash,hash"`
	TxIndex     uint        `meddler:"tx_index"`
	LogIndex    uint        `meddler:"log_index"`
	ProofID     *string     `meddler:"proof_id"`
}

// WorkerRecord aggregates the payouts of one wallet.
// CompletedBounties and TotalEarnings only ever increase.
type WorkerRecord struct {
	Address           string   `meddler:"address,address"`
	CompletedBounties uint64   `meddler:"completed_bounties"`
	TotalEarnings     *big.Int `meddler:"total_earnings,bigint"`
	SuccessRate       float64  `meddler:"success_rate"`
	FirstBountyAt     *int64   `meddler:"first_bounty_at"`
	LastBountyAt      *int64   `meddler:"last_bounty_at"`
	ReputationScore   float64  `meddler:"reputation_score"`
}

// NewWorker returns an empty worker record for address.
func NewWorker(address string) *WorkerRecord {
	return &WorkerRecord{
		Address:       address,
		TotalEarnings: new(big.Int),
		SuccessRate:   DefaultSuccessRate,
	}
}

// AddPayout folds one payout into the aggregates.
func (w *WorkerRecord) AddPayout(amount *big.Int, timestamp int64) {
	w.CompletedBounties++
	if w.TotalEarnings == nil {
		w.TotalEarnings = new(big.Int)
	}
	w.TotalEarnings = new(big.Int).Add(w.TotalEarnings, amount)

	if w.FirstBountyAt == nil || timestamp < *w.FirstBountyAt {
		w.FirstBountyAt = &timestamp
	}
	if w.LastBountyAt == nil || timestamp > *w.LastBountyAt {
		ts := timestamp
		w.LastBountyAt = &ts
	}
}

// ReputationInput returns the inputs of Score for this worker.
func (w *WorkerRecord) ReputationInput() ReputationInput {
	in := ReputationInput{
		CompletedTasks: w.CompletedBounties,
		TotalEarned:    w.TotalEarnings,
		SuccessRate:    w.SuccessRate,
	}
	if w.FirstBountyAt != nil {
		in.FirstBountyAt = time.Unix(*w.FirstBountyAt, 0)
	}
	if w.LastBountyAt != nil {
		in.LastBountyAt = time.Unix(*w.LastBountyAt, 0)
	}
	return in
}

// Clone returns a deep copy.
func (w *WorkerRecord) Clone() *WorkerRecord {
	c := *w
	if w.TotalEarnings != nil {
		c.TotalEarnings = new(big.Int).Set(w.TotalEarnings)
	}
	if w.FirstBountyAt != nil {
		v := *w.FirstBountyAt
		c.FirstBountyAt = &v
	}
	if w.LastBountyAt != nil {
		v := *w.LastBountyAt
		c.LastBountyAt = &v
	}
	return &c
}

// Clone returns a deep copy.
func (b *BountyRecord) Clone() *BountyRecord {
	c := *b
	if b.Reward != nil {
		c.Reward = new(big.Int).Set(b.Reward)
	}
	if b.CompletedBy != nil {
		v := *b.CompletedBy
		c.CompletedBy = &v
	}
	if b.CompletedAt != nil {
		v := *b.CompletedAt
		c.CompletedAt = &v
	}
	if b.PROrIssueNumber != nil {
		v := *b.PROrIssueNumber
		c.PROrIssueNumber = &v
	}
	return &c
}

// DailyStats aggregates the payouts of one UTC day.
type DailyStats struct {
	Day            string   `meddler:"day"`
	TotalPayments  *big.Int `meddler:"total_payments,bigint"`
	PaymentCount   uint64   `meddler:"payment_count"`
	UniqueWorkers  uint64   `meddler:"unique_workers"`
	AveragePayment *big.Int `meddler:"average_payment,bigint"`
}

// DayOf returns the UTC day key of a unix timestamp.
func DayOf(timestamp int64) string {
	return time.Unix(timestamp, 0).UTC().Format(time.DateOnly)
}

// ProofRecord is the outcome of verifying a worker's off-chain claim for a bounty.
type ProofRecord struct {
	ID        string `meddler:"id"`
	BountyID  string `meddler:"bounty_id"`
	Worker    string `meddler:"worker,address"`
	ClaimURL  string `meddler:"claim_url"`
	Verified  bool   `meddler:"verified"`
	ClaimData string `meddler:"claim_data"`
	CreatedAt int64  `meddler:"created_at"`
}

// ContractStats are platform-wide totals.
type ContractStats struct {
	TotalBounties     uint64
	ActiveBounties    uint64
	CompletedBounties uint64
	CancelledBounties uint64
	TotalPayments     *big.Int
	PaymentCount      uint64
	TotalWorkers      uint64
	AveragePayment    *big.Int
}
