package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fasthttp/router"
	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/events"
	gateway "github.com/zenpay/payment-gateway/internal/gateways"
	"github.com/zenpay/payment-gateway/internal/model"
	"github.com/zenpay/payment-gateway/internal/repository"
	xhttp "github.com/zenpay/payment-gateway/pkg/http"
	"github.com/zenpay/payment-gateway/pkg/logger"
)

type WebhookTransactionService interface {
	UpdateGatewayResponse(ctx context.Context, externalRef int64, raw json.RawMessage, newStatus model.TransactionStatus) (*model.Transaction, bool, error)
}

type WebhookUserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type WebhookPublisher interface {
	Publish(ctx context.Context, e events.Event)
}

// WebhookHandler receives the provider's asynchronous payment results. The
// provider retries undelivered webhooks, so any payload we can never act on
// (unknown order code, malformed data) is acknowledged with 200 to stop the
// redelivery loop; only signature failures are rejected.
type WebhookHandler struct {
	svc         WebhookTransactionService
	users       WebhookUserStore
	bus         WebhookPublisher
	checksumKey string
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhooks/payos", h.HandlePayOS)
}

func NewWebhookHandler(svc WebhookTransactionService, users WebhookUserStore, bus WebhookPublisher, checksumKey string) *WebhookHandler {
	return &WebhookHandler{
		svc:         svc,
		users:       users,
		bus:         bus,
		checksumKey: checksumKey,
	}
}

func (h *WebhookHandler) HandlePayOS(ctx *xhttp.RequestCtx) {
	payload, data, err := gateway.ParseWebhook(h.checksumKey, ctx.PostBody())
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			logger.Warn("webhook signature rejected", "remote", ctx.RemoteIP().String())
			writeError(ctx, 401, "invalid signature")
			return
		}
		logger.Warn("malformed webhook acknowledged", "error", err)
		writeJSON(ctx, 200, map[string]string{"status": "ignored"})
		return
	}

	status := model.StatusFailed
	if payload.Succeeded() {
		status = model.StatusCompleted
	}

	txn, changed, err := h.svc.UpdateGatewayResponse(ctx, data.OrderCode, payload.Data, status)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			logger.Warn("webhook for unknown order code acknowledged",
				"order_code", data.OrderCode)
			writeJSON(ctx, 200, map[string]string{"status": "ignored"})
			return
		}
		logger.Error("webhook processing failed",
			"order_code", data.OrderCode,
			"error", err)
		writeError(ctx, 500, "internal error")
		return
	}

	logger.Info("webhook processed",
		"order_code", data.OrderCode,
		"transaction_id", txn.ID.String(),
		"status", string(txn.Status),
		"changed", changed)

	// Redelivered webhooks reach here with changed == false: the state write
	// was a no-op and the user must not be notified twice.
	if changed {
		h.notify(ctx, txn, payload)
	}

	writeJSON(ctx, 200, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) notify(ctx *xhttp.RequestCtx, txn *model.Transaction, payload *gateway.WebhookPayload) {
	var email, fullName string
	if owner, err := h.users.GetByID(ctx, txn.UserID); err == nil {
		email = owner.Email
		fullName = owner.FullName
	}

	if payload.Succeeded() {
		h.bus.Publish(ctx, events.PaymentSucceeded{
			UserID:   txn.UserID,
			Email:    email,
			FullName: fullName,
			Amount:   txn.Amount,
			Message:  "Payment completed",
		})
		return
	}
	h.bus.Publish(ctx, events.PaymentFailed{
		UserID:   txn.UserID,
		Email:    email,
		FullName: fullName,
		Amount:   txn.Amount,
		Reason:   payload.Desc,
	})
}
