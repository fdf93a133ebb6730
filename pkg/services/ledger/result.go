package ledger

import "fmt"

// FailureReason is a stable, machine-comparable cause of a failed commit.
type FailureReason string

const (
	ReasonExecutionReverted  FailureReason = "execution reverted"
	ReasonSimulationFailed   FailureReason = "simulation failed"
	ReasonSubmissionRejected FailureReason = "submission rejected"
	ReasonTimeout            FailureReason = "timeout"
	ReasonCanceled           FailureReason = "canceled"
	ReasonNetworkError       FailureReason = "network error"
)

// Retryable reports whether repeating the same commit may succeed.
func (r FailureReason) Retryable() bool {
	switch r {
	case ReasonTimeout, ReasonCanceled, ReasonNetworkError:
		return true
	default:
		return false
	}
}

// TransactionResult is either Confirmed or Failed.
type TransactionResult interface {
	transactionResult()
}

type Confirmed struct {
	TxID        string
	BlockNumber uint64
	GasUsed     uint64
}

// Failed carries the provisional TxID when the transaction reached the
// network before failing (reverted or not confirmed in time).
type Failed struct {
	Reason FailureReason
	TxID   string
	Err    error
}

func (Confirmed) transactionResult() {}
func (Failed) transactionResult()    {}

func (f Failed) Message() string {
	if f.Err == nil {
		return string(f.Reason)
	}
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}
