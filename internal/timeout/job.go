package timeout

import (
	"time"

	"github.com/google/uuid"
)

// JobID derives the deterministic queue key for a transaction's timeout job.
// One transaction can never have more than one live timeout job because
// scheduling is keyed by this id.
func JobID(transactionID uuid.UUID) string {
	return "timeout-" + transactionID.String()
}

// Job is the delayed-work descriptor. It is a pure data record: the handler
// decides everything from a fresh read of the transaction, never from these
// captured values (which may be stale by the time the job fires).
type Job struct {
	TransactionID         uuid.UUID `json:"transaction_id"`
	ExternalTransactionID int64     `json:"external_transaction_id"`
	UserID                uuid.UUID `json:"user_id"`
	Amount                int64     `json:"amount"`
	CreatedAt             time.Time `json:"created_at"`

	// Attempts counts handler failures; managed by the queue.
	Attempts int `json:"attempts"`
}
