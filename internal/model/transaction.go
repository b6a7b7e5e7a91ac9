package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	StatusPending         TransactionStatus = "pending"
	StatusAwaitingPayment TransactionStatus = "awaiting_payment"
	StatusProcessing      TransactionStatus = "processing"
	StatusCompleted       TransactionStatus = "completed"
	StatusFailed          TransactionStatus = "failed"
	StatusCancelled       TransactionStatus = "cancelled"
	StatusRefunded        TransactionStatus = "refunded"
)

const DefaultCurrency = "VND"

// PendingStatuses groups statuses that count as "still in flight" for stats.
var PendingStatuses = []TransactionStatus{StatusPending, StatusAwaitingPayment, StatusProcessing}

// FailedStatuses groups statuses that count as "unsuccessful" for stats.
var FailedStatuses = []TransactionStatus{StatusFailed, StatusCancelled}

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAwaitingPayment, StatusProcessing,
		StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether no further transition is defined out of s.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Unresolved reports whether a transaction is still waiting for a payment
// outcome. The timeout job only acts on unresolved transactions.
func (s TransactionStatus) Unresolved() bool {
	return s == StatusPending || s == StatusAwaitingPayment
}

type Transaction struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"user_id"`
	PaymentMethodID *uuid.UUID        `json:"payment_method_id,omitempty"`
	Amount          int64             `json:"amount"` // smallest currency unit
	Currency        string            `json:"currency"`
	Description     string            `json:"description"`
	Status          TransactionStatus `json:"status"`
	ExternalRef     *int64            `json:"external_ref,omitempty"` // provider order code
	GatewayProvider *string           `json:"gateway_provider,omitempty"`
	GatewayResponse json.RawMessage   `json:"gateway_response,omitempty"`
	FraudScore      *float64          `json:"fraud_score,omitempty"`
	FraudDecision   *string           `json:"fraud_decision,omitempty"`
	FraudProvider   *string           `json:"fraud_provider,omitempty"`
	FraudMetadata   json.RawMessage   `json:"fraud_metadata,omitempty"`
	JobID           *string           `json:"job_id,omitempty"`
	ClientIP        *string           `json:"client_ip,omitempty"`
	UserAgent       *string           `json:"user_agent,omitempty"`
	DeviceID        *string           `json:"device_id,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// TransactionCreateRequest is the input for creating a transaction.
type TransactionCreateRequest struct {
	UserID          uuid.UUID
	PaymentMethodID *uuid.UUID
	Amount          int64
	Currency        string
	Description     string
	ClientIP        *string
	UserAgent       *string
	DeviceID        *string
}

func (p TransactionCreateRequest) Validate() error {
	if p.UserID == uuid.Nil {
		return errors.New("user_id is required")
	}
	if p.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	if p.Currency != "" && len(p.Currency) != 3 {
		return errors.New("currency must be a 3-letter code")
	}
	return nil
}

// TransactionPatch is a partial update; nil fields are left untouched.
type TransactionPatch struct {
	Status          *TransactionStatus
	Description     *string
	PaymentMethodID *uuid.UUID
	ExternalRef     *int64
	GatewayProvider *string
	GatewayResponse json.RawMessage
	FraudScore      *float64
	FraudDecision   *string
	FraudProvider   *string
	FraudMetadata   json.RawMessage
	JobID           *string
}

// TransactionFilter controls List queries.
type TransactionFilter struct {
	UserID          *uuid.UUID
	Statuses        []TransactionStatus
	GatewayProvider *string
	ExternalRef     *int64
	From            *time.Time
	To              *time.Time
	Limit           int
	Offset          int
}

// TransactionStats are aggregate counts for a user or the whole system.
// Pending covers pending/awaiting_payment/processing, Failed covers
// failed/cancelled, TotalAmount sums completed transactions only.
type TransactionStats struct {
	Total       int64 `json:"total"`
	Completed   int64 `json:"completed"`
	Pending     int64 `json:"pending"`
	Failed      int64 `json:"failed"`
	TotalAmount int64 `json:"total_amount"`
}

// TransactionDetail is a transaction plus its related summaries.
type TransactionDetail struct {
	Transaction   *Transaction        `json:"transaction"`
	Owner         *UserSummary        `json:"owner,omitempty"`
	PaymentMethod *PaymentMethod      `json:"payment_method,omitempty"`
	Events        []*TransactionEvent `json:"events,omitempty"`
	Refunds       []*Refund           `json:"refunds,omitempty"`
}
