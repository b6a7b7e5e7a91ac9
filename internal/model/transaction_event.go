package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit event type tags. The column is free-form, these are the ones the
// gateway itself writes.
const (
	EventTypeCreated         = "created"
	EventTypeStatusChanged   = "status_changed"
	EventTypeGatewayResponse = "GATEWAY_RESPONSE_UPDATED"
)

// TransactionEvent is an append-only audit record. One row is written for
// every transaction creation and every observed status change.
type TransactionEvent struct {
	ID            int64           `json:"id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	EventType     string          `json:"event_type"`
	FromValue     *string         `json:"from_value,omitempty"`
	ToValue       *string         `json:"to_value,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
