package listeners

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/events"
	gateway "github.com/zenpay/payment-gateway/internal/gateways"
	"github.com/zenpay/payment-gateway/internal/model"
	"github.com/zenpay/payment-gateway/pkg/logger"
)

const providerName = "payos"

type TransactionUpdater interface {
	Update(ctx context.Context, id uuid.UUID, patch model.TransactionPatch) (*model.Transaction, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// PaymentLinkCreator is the provider surface the orchestration needs.
// Satisfied by *gateway.Client.
type PaymentLinkCreator interface {
	CreatePaymentLink(ctx context.Context, req *gateway.CreatePaymentRequest) (*gateway.PaymentLink, error)
}

type Publisher interface {
	Publish(ctx context.Context, e events.Event)
}

// Orchestration reacts to transaction.created: it asks the provider for a
// hosted checkout link and moves the transaction to AWAITING_PAYMENT, or to
// FAILED when the provider turns it down.
type Orchestration struct {
	transactions TransactionUpdater
	users        UserStore
	gateway      PaymentLinkCreator
	bus          Publisher
}

func NewOrchestration(transactions TransactionUpdater, users UserStore, gw PaymentLinkCreator, bus Publisher) *Orchestration {
	return &Orchestration{
		transactions: transactions,
		users:        users,
		gateway:      gw,
		bus:          bus,
	}
}

func (o *Orchestration) Register(bus *events.Bus) {
	bus.Subscribe(events.KindTransactionCreated, func(ctx context.Context, e events.Event) {
		created, ok := e.(events.TransactionCreated)
		if !ok {
			return
		}
		o.handleCreated(ctx, created)
	})
}

// newOrderCode derives the provider's numeric order code from the current
// clock, bounded to nine digits. Collisions inside one millisecond window are
// caught by the unique index on external_ref and surface as a provider retry.
func newOrderCode() int64 {
	return time.Now().UnixMilli() % 1_000_000_000
}

func (o *Orchestration) handleCreated(ctx context.Context, created events.TransactionCreated) {
	// Best effort: PROCESSING is a progress hint for clients polling the
	// transaction, not a gate for the provider call.
	processing := model.StatusProcessing
	if _, err := o.transactions.Update(ctx, created.TransactionID, model.TransactionPatch{Status: &processing}); err != nil {
		logger.Warn("failed to mark transaction processing",
			"transaction_id", created.TransactionID.String(),
			"error", err)
	}

	link, err := o.gateway.CreatePaymentLink(ctx, &gateway.CreatePaymentRequest{
		OrderCode:   newOrderCode(),
		Amount:      created.Amount,
		Description: created.Description,
		ReferenceID: created.TransactionID.String(),
	})
	if err != nil {
		o.failCreated(ctx, created, err)
		return
	}

	provider := providerName
	awaiting := model.StatusAwaitingPayment
	if _, err := o.transactions.Update(ctx, created.TransactionID, model.TransactionPatch{
		Status:          &awaiting,
		ExternalRef:     &link.OrderCode,
		GatewayProvider: &provider,
		GatewayResponse: link.Raw,
	}); err != nil {
		logger.Error("failed to store payment link",
			"transaction_id", created.TransactionID.String(),
			"order_code", link.OrderCode,
			"error", err)
		return
	}

	logger.Info("payment link created",
		"transaction_id", created.TransactionID.String(),
		"order_code", link.OrderCode)

	o.bus.Publish(ctx, events.PaymentLinkCreated{
		TransactionID: created.TransactionID,
		UserID:        created.UserID,
		Amount:        created.Amount,
		CheckoutURL:   link.CheckoutURL,
		QRCode:        link.QRCode,
		OrderCode:     link.OrderCode,
	})
}

func (o *Orchestration) failCreated(ctx context.Context, created events.TransactionCreated, cause error) {
	logger.Error("provider refused payment link",
		"transaction_id", created.TransactionID.String(),
		"error", cause)

	failure, _ := json.Marshal(map[string]string{
		"error":     cause.Error(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	failed := model.StatusFailed
	if _, err := o.transactions.Update(ctx, created.TransactionID, model.TransactionPatch{
		Status:          &failed,
		GatewayResponse: failure,
	}); err != nil {
		logger.Error("failed to mark transaction failed",
			"transaction_id", created.TransactionID.String(),
			"error", err)
	}

	ev := events.TransactionFailed{
		TransactionID: created.TransactionID,
		UserID:        created.UserID,
		Amount:        created.Amount,
		Reason:        "Could not create payment link",
	}
	if owner, err := o.users.GetByID(ctx, created.UserID); err == nil {
		ev.Email = owner.Email
		ev.FullName = owner.FullName
	}
	o.bus.Publish(ctx, ev)
}
