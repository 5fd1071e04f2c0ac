package proof

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/goran-ethernal/BountyIndexor/internal/bounty"
	"github.com/goran-ethernal/BountyIndexor/internal/common"
	"github.com/goran-ethernal/BountyIndexor/internal/logger"
	"github.com/goran-ethernal/BountyIndexor/internal/store"
	"github.com/google/uuid"
)

// Store persists proof records.
type Store interface {
	SaveProof(ctx context.Context, proof *bounty.ProofRecord) error
}

// Submission is a worker's claim for a bounty.
type Submission struct {
	BountyID string
	Worker   string
	ClaimURL string
	// Headers are forwarded to the prover when it fetches ClaimURL.
	Headers []string
}

// Service verifies submissions and records the outcome.
type Service struct {
	verifier Verifier
	store    Store
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a proof service.
func NewService(verifier Verifier, st Store, log *logger.Logger) *Service {
	return &Service{
		verifier: verifier,
		store:    st,
		log:      log.WithComponent(common.ComponentProof),
		now:      time.Now,
	}
}

// Submit verifies a submission and stores the resulting proof, verified or not.
// Invalid submissions are rejected with store.ErrInvalidArgument before reaching the verifier.
func (s *Service) Submit(ctx context.Context, sub Submission) (*bounty.ProofRecord, error) {
	id, err := common.ParseBigInt(sub.BountyID)
	if err != nil || sub.BountyID == "" {
		return nil, fmt.Errorf("%w: bounty id %q", store.ErrInvalidArgument, sub.BountyID)
	}
	worker, err := common.NormalizeAddressString(sub.Worker)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidArgument, err)
	}
	u, err := url.Parse(sub.ClaimURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: claim url %q", store.ErrInvalidArgument, sub.ClaimURL)
	}

	res, err := s.verifier.Verify(ctx, sub.ClaimURL, sub.Headers)
	if err != nil {
		return nil, fmt.Errorf("failed to verify claim for bounty %s: %w", id, err)
	}

	rec := &bounty.ProofRecord{
		ID:        uuid.NewString(),
		BountyID:  id.String(),
		Worker:    worker,
		ClaimURL:  sub.ClaimURL,
		Verified:  res.Verified,
		ClaimData: string(res.ClaimData),
		CreatedAt: s.now().Unix(),
	}
	if rec.ClaimData == "" {
		rec.ClaimData = "{}"
	}

	if err := s.store.SaveProof(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Infof("proof %s for bounty %s by %s: verified=%t", rec.ID, rec.BountyID, rec.Worker, rec.Verified)

	return rec, nil
}
