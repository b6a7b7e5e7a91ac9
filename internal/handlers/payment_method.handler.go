package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/model"
	xhttp "github.com/zenpay/payment-gateway/pkg/http"
)

type PaymentMethodService interface {
	Create(ctx context.Context, p model.PaymentMethodCreateRequest) (*model.PaymentMethod, error)
	Get(ctx context.Context, id uuid.UUID) (*model.PaymentMethod, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.PaymentMethod, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type PaymentMethodHandler struct {
	svc PaymentMethodService
}

func RegisterPaymentMethodRoutes(e *router.Group, h *PaymentMethodHandler) {
	e.POST("/payment-methods", h.CreatePaymentMethod)
	e.GET("/payment-methods", h.ListPaymentMethods)
	e.GET("/payment-methods/{id}", h.GetPaymentMethod)
	e.DELETE("/payment-methods/{id}", h.DeletePaymentMethod)
}

func NewPaymentMethodHandler(svc PaymentMethodService) *PaymentMethodHandler {
	return &PaymentMethodHandler{svc: svc}
}

type createPaymentMethodRequest struct {
	UserID       string `json:"user_id"`
	Type         string `json:"type"`
	Label        string `json:"label"`
	MaskedNumber string `json:"masked_number"`
	IsDefault    bool   `json:"is_default"`
}

func (h *PaymentMethodHandler) CreatePaymentMethod(ctx *xhttp.RequestCtx) {
	var req createPaymentMethodRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(ctx, 400, "invalid user_id")
		return
	}

	pm, err := h.svc.Create(ctx, model.PaymentMethodCreateRequest{
		UserID:       userID,
		Type:         model.PaymentMethodType(req.Type),
		Label:        req.Label,
		MaskedNumber: req.MaskedNumber,
		IsDefault:    req.IsDefault,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, pm)
}

func (h *PaymentMethodHandler) GetPaymentMethod(ctx *xhttp.RequestCtx) {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid payment method id")
		return
	}

	pm, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, pm)
}

func (h *PaymentMethodHandler) ListPaymentMethods(ctx *xhttp.RequestCtx) {
	userID, err := uuid.Parse(query(ctx, "user_id"))
	if err != nil {
		writeError(ctx, 400, "user_id query parameter is required")
		return
	}

	items, err := h.svc.ListByUser(ctx, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]any{"items": items})
}

func (h *PaymentMethodHandler) DeletePaymentMethod(ctx *xhttp.RequestCtx) {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid payment method id")
		return
	}

	if err := h.svc.Delete(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(204)
}
