package reorg

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestVerifyParent(t *testing.T) {
	last := common.HexToHash("0xaa")

	require.NoError(t, VerifyParent(0, common.Hash{}, 1, common.HexToHash("0x01")), "no hash means no check")
	require.NoError(t, VerifyParent(10, last, 11, last))
	require.ErrorContains(t, VerifyParent(10, last, 12, last), "does not follow")

	err := VerifyParent(10, last, 11, common.HexToHash("0xbb"))
	var reorgErr *ReorgDetectedError
	require.True(t, errors.As(err, &reorgErr))
	require.Equal(t, uint64(11), reorgErr.FirstReorgBlock)
}

func TestVerifyChain(t *testing.T) {
	h := []common.Hash{common.HexToHash("0x1"), common.HexToHash("0x2"), common.HexToHash("0x3")}

	require.NoError(t, VerifyChain(5, h, []common.Hash{{}, h[0], h[1]}))

	err := VerifyChain(5, h, []common.Hash{{}, h[0], common.HexToHash("0xff")})
	var reorgErr *ReorgDetectedError
	require.ErrorAs(t, err, &reorgErr)
	require.Equal(t, uint64(7), reorgErr.FirstReorgBlock)

	require.Error(t, VerifyChain(5, h, h[:2]))
}
