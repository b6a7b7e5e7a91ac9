package model

import (
	"time"

	"github.com/google/uuid"
)

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusCompleted RefundStatus = "completed"
	RefundStatusFailed    RefundStatus = "failed"
)

// Refund blocks deletion of its transaction regardless of its own status.
type Refund struct {
	ID            int64        `json:"id"`
	TransactionID uuid.UUID    `json:"transaction_id"`
	Amount        int64        `json:"amount"`
	Reason        string       `json:"reason"`
	Status        RefundStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
}
