package reorg

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// VerifyParent checks that the block at lastHeight+1 with the given parent hash
// extends the last committed block. An empty lastHash (fresh start, or a checkpoint
// written by a reset) skips the check.
func VerifyParent(lastHeight uint64, lastHash common.Hash, next uint64, parent common.Hash) error {
	if lastHash == (common.Hash{}) {
		return nil
	}
	if next != lastHeight+1 {
		return fmt.Errorf("block %d does not follow checkpoint %d", next, lastHeight)
	}
	if parent != lastHash {
		reorgsDetected.Inc()
		reorgLastDetected.SetToCurrentTime()
		return NewReorgError(next, fmt.Sprintf("parent hash %s does not match committed block %d hash %s",
			parent.Hex(), lastHeight, lastHash.Hex()))
	}
	return nil
}

// VerifyChain checks parent links inside a sequence of consecutive blocks.
// hashes[i] and parents[i] belong to block first+i.
func VerifyChain(first uint64, hashes, parents []common.Hash) error {
	if len(hashes) != len(parents) {
		return fmt.Errorf("mismatched hash and parent counts: %d != %d", len(hashes), len(parents))
	}
	for i := 1; i < len(hashes); i++ {
		if parents[i] != hashes[i-1] {
			reorgsDetected.Inc()
			reorgLastDetected.SetToCurrentTime()
			return NewReorgError(first+uint64(i), "block does not extend its predecessor in the fetched range")
		}
	}
	return nil
}
