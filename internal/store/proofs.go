package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goran-ethernal/BountyIndexor/internal/bounty"
	"github.com/russross/meddler"
)

// SaveProof stores a proof record. Proofs are written outside batches since they
// never change the aggregates.
func (s *Store) SaveProof(ctx context.Context, proof *bounty.ProofRecord) error {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	if err := meddler.Insert(s.db, tableProofs, proof); err != nil {
		return fmt.Errorf("failed to insert proof %s: %w", proof.ID, err)
	}

	s.log.Debugf("proof saved: id=%s, bounty=%s, worker=%s, verified=%t",
		proof.ID, proof.BountyID, proof.Worker, proof.Verified)

	return nil
}

// FindVerifiedProof returns the latest verified proof a worker submitted for a bounty.
func (s *Store) FindVerifiedProof(ctx context.Context, bountyID, worker string) (*bounty.ProofRecord, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	var proof bounty.ProofRecord
	err := meddler.QueryRow(s.db, &proof, `
		SELECT * FROM proofs
		WHERE bounty_id = ? AND worker = ? AND verified = 1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, bountyID, worker)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find proof: %w", err)
	}

	return &proof, nil
}
