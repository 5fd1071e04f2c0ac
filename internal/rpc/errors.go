package rpc

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/BountyIndexor/internal/common"
)

var (
	tooManyResultsRe = regexp.MustCompile(`(?i)(query returned more than \d+ results|too many results|block range is too (large|wide)|exceed(s|ed) max(imum)? block range)`)
	blockRangeRe     = regexp.MustCompile(`\[(0x[0-9a-fA-F]+),\s*(0x[0-9a-fA-F]+)\]`)
)

// IsTooManyResults reports whether the node refused a log query because the range was too wide.
func IsTooManyResults(err error) bool {
	if err == nil {
		return false
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && tooManyResultsRe.MatchString(fmt.Sprintf("%v", dataErr.ErrorData())) {
		return true
	}

	return tooManyResultsRe.MatchString(err.Error())
}

// SuggestedBlockRange extracts the range some providers suggest when a log query is too wide.
// Expected format: "... Try with this block range [0x7dfd25, 0x7e0fcc]."
func SuggestedBlockRange(err error) (fromBlock, toBlock uint64, ok bool) {
	if err == nil {
		return 0, 0, false
	}

	msg := err.Error()
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		msg = strings.Join([]string{msg, fmt.Sprintf("%v", dataErr.ErrorData())}, " ")
	}

	matches := blockRangeRe.FindStringSubmatch(msg)
	if len(matches) != 3 { //nolint:mnd
		return 0, 0, false
	}

	from, err1 := common.ParseUint64orHex(&matches[1])
	to, err2 := common.ParseUint64orHex(&matches[2])
	if err1 != nil || err2 != nil || from > to {
		return 0, 0, false
	}

	return from, to, true
}
