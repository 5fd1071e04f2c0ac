package types

import "fmt"

// BlockFinality represents the finality mode used to pick the indexing ceiling.
type BlockFinality string

const (
	// FinalityFinalized uses the finalized block tag
	FinalityFinalized BlockFinality = "finalized"

	// FinalitySafe uses the safe block tag
	FinalitySafe BlockFinality = "safe"

	// FinalityLatest uses the latest block minus a number of confirmations
	FinalityLatest BlockFinality = "latest"
)

// String returns the string representation of BlockFinality.
func (f BlockFinality) String() string {
	return string(f)
}

// IsValid checks if the BlockFinality value is valid.
func (f BlockFinality) IsValid() bool {
	switch f {
	case FinalityFinalized, FinalitySafe, FinalityLatest:
		return true
	default:
		return false
	}
}

// Ceiling returns the highest block that may be indexed given the tagged head.
// Confirmations are only withheld in latest mode; tagged heads are already settled.
// The boolean is false when the chain is not yet longer than the confirmation window.
func (f BlockFinality) Ceiling(head, confirmations uint64) (uint64, bool) {
	if f != FinalityLatest {
		return head, true
	}
	if head < confirmations {
		return 0, false
	}
	return head - confirmations, true
}

// ParseBlockFinality parses a string into a BlockFinality type.
func ParseBlockFinality(s string) (BlockFinality, error) {
	f := BlockFinality(s)
	if !f.IsValid() {
		return "", fmt.Errorf("invalid block finality: %s (must be one of: finalized, safe, latest)", s)
	}
	return f, nil
}
