package api

import (
	"encoding/json"
	"time"

	"github.com/goran-ethernal/BountyIndexor/internal/bounty"
	"github.com/goran-ethernal/BountyIndexor/internal/processor"
)

// Big integers are rendered as base-10 strings and timestamps as RFC 3339 UTC.

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse describes the processing pipeline.
type StatusResponse struct {
	State               string    `json:"state"`
	LastCommittedHeight *uint64   `json:"last_committed_height"`
	ChainHead           uint64    `json:"chain_head"`
	Lag                 uint64    `json:"lag"`
	DeferredEvents      int       `json:"deferred_events"`
	LastError           string    `json:"last_error,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// WorkerResponse is a worker's aggregates and reputation.
type WorkerResponse struct {
	Address           string     `json:"address"`
	CompletedBounties uint64     `json:"completed_bounties"`
	TotalEarnings     string     `json:"total_earnings"`
	SuccessRate       float64    `json:"success_rate"`
	FirstBountyAt     *time.Time `json:"first_bounty_at,omitempty"`
	LastBountyAt      *time.Time `json:"last_bounty_at,omitempty"`
	ReputationScore   float64    `json:"reputation_score"`
}

// BountyResponse is a bounty and its lifecycle state.
type BountyResponse struct {
	ID              string     `json:"id"`
	Creator         string     `json:"creator"`
	Action          string     `json:"action"`
	RepoOwner       string     `json:"repo_owner"`
	RepoName        string     `json:"repo_name"`
	PROrIssueNumber *int64     `json:"pr_or_issue_number,omitempty"`
	Reward          string     `json:"reward"`
	Status          string     `json:"status"`
	CompletedBy     *string    `json:"completed_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedBlock    uint64     `json:"created_block"`
	TxHash          string     `json:"tx_hash"`
}

// PayoutResponse is a single payout to a worker.
type PayoutResponse struct {
	ID          string    `json:"id"`
	BountyID    string    `json:"bounty_id"`
	Worker      string    `json:"worker"`
	Amount      string    `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
	BlockNumber uint64    `json:"block_number"`
	TxHash      string    `json:"tx_hash"`
	LogIndex    uint      `json:"log_index"`
	ProofID     *string   `json:"proof_id,omitempty"`
}

// DailyStatsResponse is the payment activity of one UTC day.
type DailyStatsResponse struct {
	Day            string `json:"day"`
	TotalPayments  string `json:"total_payments"`
	PaymentCount   uint64 `json:"payment_count"`
	UniqueWorkers  uint64 `json:"unique_workers"`
	AveragePayment string `json:"average_payment"`
}

// StatsResponse holds platform-wide totals.
type StatsResponse struct {
	TotalBounties     uint64 `json:"total_bounties"`
	ActiveBounties    uint64 `json:"active_bounties"`
	CompletedBounties uint64 `json:"completed_bounties"`
	CancelledBounties uint64 `json:"cancelled_bounties"`
	TotalPayments     string `json:"total_payments"`
	PaymentCount      uint64 `json:"payment_count"`
	TotalWorkers      uint64 `json:"total_workers"`
	AveragePayment    string `json:"average_payment"`
}

// SubmitProofRequest is a worker's claim for a bounty.
type SubmitProofRequest struct {
	Worker   string   `json:"worker"`
	ClaimURL string   `json:"claim_url"`
	Headers  []string `json:"headers,omitempty"`
}

// ProofResponse is a stored proof.
type ProofResponse struct {
	ID        string          `json:"id"`
	BountyID  string          `json:"bounty_id"`
	Worker    string          `json:"worker"`
	ClaimURL  string          `json:"claim_url"`
	Verified  bool            `json:"verified"`
	ClaimData json.RawMessage `json:"claim_data" swaggertype:"object"`
	CreatedAt time.Time       `json:"created_at"`
}

func unixTime(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}

func unixTimePtr(ts *int64) *time.Time {
	if ts == nil {
		return nil
	}
	t := unixTime(*ts)
	return &t
}

func newStatusResponse(s processor.Status) StatusResponse {
	resp := StatusResponse{
		State:          string(s.State),
		ChainHead:      s.Head,
		Lag:            s.Lag,
		DeferredEvents: s.Deferred,
		LastError:      s.LastError,
		UpdatedAt:      s.UpdatedAt.UTC(),
	}
	if s.HasCheckpoint {
		height := s.LastCommitted
		resp.LastCommittedHeight = &height
	}
	return resp
}

func newWorkerResponse(w *bounty.WorkerRecord) WorkerResponse {
	return WorkerResponse{
		Address:           w.Address,
		CompletedBounties: w.CompletedBounties,
		TotalEarnings:     w.TotalEarnings.String(),
		SuccessRate:       w.SuccessRate,
		FirstBountyAt:     unixTimePtr(w.FirstBountyAt),
		LastBountyAt:      unixTimePtr(w.LastBountyAt),
		ReputationScore:   w.ReputationScore,
	}
}

func newBountyResponse(b *bounty.BountyRecord) BountyResponse {
	return BountyResponse{
		ID:              b.BountyID,
		Creator:         b.Creator,
		Action:          b.Action.String(),
		RepoOwner:       b.RepoOwner,
		RepoName:        b.RepoName,
		PROrIssueNumber: b.PROrIssueNumber,
		Reward:          b.Reward.String(),
		Status:          string(b.Status),
		CompletedBy:     b.CompletedBy,
		CreatedAt:       unixTime(b.CreatedAt),
		CompletedAt:     unixTimePtr(b.CompletedAt),
		CreatedBlock:    b.CreatedBlock,
		TxHash:          b.TxHash.Hex(),
	}
}

func newPayoutResponse(p *bounty.PayoutRecord) PayoutResponse {
	return PayoutResponse{
		ID:          p.ID,
		BountyID:    p.BountyID,
		Worker:      p.Worker,
		Amount:      p.Amount.String(),
		Timestamp:   unixTime(p.Timestamp),
		BlockNumber: p.BlockNumber,
		TxHash:      p.TxHash.Hex(),
		LogIndex:    p.LogIndex,
		ProofID:     p.ProofID,
	}
}

func newDailyStatsResponse(d *bounty.DailyStats) DailyStatsResponse {
	return DailyStatsResponse{
		Day:            d.Day,
		TotalPayments:  d.TotalPayments.String(),
		PaymentCount:   d.PaymentCount,
		UniqueWorkers:  d.UniqueWorkers,
		AveragePayment: d.AveragePayment.String(),
	}
}

func newStatsResponse(s *bounty.ContractStats) StatsResponse {
	return StatsResponse{
		TotalBounties:     s.TotalBounties,
		ActiveBounties:    s.ActiveBounties,
		CompletedBounties: s.CompletedBounties,
		CancelledBounties: s.CancelledBounties,
		TotalPayments:     s.TotalPayments.String(),
		PaymentCount:      s.PaymentCount,
		TotalWorkers:      s.TotalWorkers,
		AveragePayment:    s.AveragePayment.String(),
	}
}

func newProofResponse(p *bounty.ProofRecord) ProofResponse {
	return ProofResponse{
		ID:        p.ID,
		BountyID:  p.BountyID,
		Worker:    p.Worker,
		ClaimURL:  p.ClaimURL,
		Verified:  p.Verified,
		ClaimData: json.RawMessage(p.ClaimData),
		CreatedAt: unixTime(p.CreatedAt),
	}
}
