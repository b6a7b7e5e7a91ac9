package events

import (
	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/model"
)

// Kind tags an in-process lifecycle event.
type Kind string

const (
	KindTransactionCreated       Kind = "transaction.created"
	KindPaymentLinkCreated       Kind = "payment.link_created"
	KindTransactionStatusUpdated Kind = "transaction.status_updated"
	KindTransactionFailed        Kind = "transaction.failed"
	KindPaymentSucceeded         Kind = "payment.success"
	KindPaymentFailed            Kind = "payment.failed"
)

type Event interface {
	Kind() Kind
}

// TransactionCreated is emitted by the transaction service after the creation
// unit of work commits. Consumed by the payment orchestration listener.
type TransactionCreated struct {
	TransactionID   uuid.UUID  `json:"transaction_id"`
	UserID          uuid.UUID  `json:"user_id"`
	Amount          int64      `json:"amount"`
	Currency        string     `json:"currency"`
	Description     string     `json:"description"`
	PaymentMethodID *uuid.UUID `json:"payment_method_id,omitempty"`
}

func (TransactionCreated) Kind() Kind { return KindTransactionCreated }

// PaymentLinkCreated is emitted by the orchestration listener once the
// provider returned a checkout link. The order code is what the timeout
// scheduler needs to key the delayed job.
type PaymentLinkCreated struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	UserID        uuid.UUID `json:"user_id"`
	Amount        int64     `json:"amount"`
	CheckoutURL   string    `json:"checkout_url"`
	QRCode        string    `json:"qr_code"`
	OrderCode     int64     `json:"order_code"`
}

func (PaymentLinkCreated) Kind() Kind { return KindPaymentLinkCreated }

// TransactionStatusUpdated is emitted by the transaction service when a
// provider callback moved a transaction into a terminal status.
type TransactionStatusUpdated struct {
	TransactionID       uuid.UUID               `json:"transaction_id"`
	Status              model.TransactionStatus `json:"status"`
	ShouldCancelTimeout bool                    `json:"should_cancel_timeout"`
}

func (TransactionStatusUpdated) Kind() Kind { return KindTransactionStatusUpdated }

// TransactionFailed carries an owner snapshot for realtime notification.
type TransactionFailed struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	UserID        uuid.UUID `json:"user_id"`
	Email         string    `json:"email,omitempty"`
	FullName      string    `json:"full_name,omitempty"`
	Amount        int64     `json:"amount"`
	Reason        string    `json:"reason"`
}

func (TransactionFailed) Kind() Kind { return KindTransactionFailed }

type PaymentSucceeded struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email,omitempty"`
	FullName string    `json:"full_name,omitempty"`
	Amount   int64     `json:"amount"`
	Message  string    `json:"message"`
}

func (PaymentSucceeded) Kind() Kind { return KindPaymentSucceeded }

type PaymentFailed struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email,omitempty"`
	FullName string    `json:"full_name,omitempty"`
	Amount   int64     `json:"amount"`
	Reason   string    `json:"reason"`
}

func (PaymentFailed) Kind() Kind { return KindPaymentFailed }
