package processor

import (
	"errors"
	"fmt"

	"github.com/goran-ethernal/BountyIndexor/internal/reorg"
	"github.com/goran-ethernal/BountyIndexor/internal/rpc"
	"github.com/goran-ethernal/BountyIndexor/pkg/source"
)

// Failure classes, also used as metric labels.
const (
	classTransient = "transient"
	classIntegrity = "integrity"
	classCommit    = "commit"
)

// ErrFailed is returned by Run once the processor has entered the failed state.
var ErrFailed = errors.New("processor failed")

// IntegrityError reports a fetched batch that violates the batch contract.
type IntegrityError struct {
	From, To uint64
	Reason   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("malformed batch %d-%d: %s", e.From, e.To, e.Reason)
}

func integrityErrorf(from, to uint64, format string, args ...any) error {
	return &IntegrityError{From: from, To: to, Reason: fmt.Sprintf(format, args...)}
}

// CommitError wraps a failure while staging or committing a batch.
type CommitError struct {
	Height uint64
	Err    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("failed to commit batch ending at %d: %v", e.Height, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// classify maps a batch error to its retry class. Errors that are neither commit
// failures nor recognizably transient count against the integrity budget.
func classify(err error) string {
	var (
		commitErr    *CommitError
		integrityErr *IntegrityError
		reorgErr     *reorg.ReorgDetectedError
	)

	switch {
	case errors.As(err, &commitErr):
		return classCommit
	case errors.As(err, &integrityErr), errors.As(err, &reorgErr), errors.Is(err, source.ErrInconsistent):
		return classIntegrity
	case rpc.IsRetryable(err):
		return classTransient
	default:
		return classIntegrity
	}
}
