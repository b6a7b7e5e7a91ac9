package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/model"
	"github.com/zenpay/payment-gateway/internal/repository"
	"github.com/zenpay/payment-gateway/internal/services"
	xhttp "github.com/zenpay/payment-gateway/pkg/http"
)

type TransactionService interface {
	Create(ctx context.Context, p model.TransactionCreateRequest) (*model.TransactionDetail, error)
	Get(ctx context.Context, id uuid.UUID) (*model.TransactionDetail, error)
	Update(ctx context.Context, id uuid.UUID, patch model.TransactionPatch) (*model.Transaction, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, f model.TransactionFilter) ([]*model.Transaction, int64, error)
	Stats(ctx context.Context, userID *uuid.UUID) (*model.TransactionStats, error)
}

type TransactionHandler struct {
	svc TransactionService
}

func RegisterTransactionRoutes(e *router.Group, h *TransactionHandler) {
	e.POST("/transactions", h.CreateTransaction)
	e.GET("/transactions", h.ListTransactions)
	e.GET("/transactions/stats", h.GetStats)
	e.GET("/transactions/{id}", h.GetTransaction)
	e.PATCH("/transactions/{id}", h.UpdateTransaction)
	e.DELETE("/transactions/{id}", h.DeleteTransaction)
	e.GET("/users/{id}/transactions", h.ListUserTransactions)
}

func NewTransactionHandler(svc TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

type createTransactionRequest struct {
	UserID          string `json:"user_id"`
	PaymentMethodID string `json:"payment_method_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Description     string `json:"description"`
	DeviceID        string `json:"device_id"`
}

type updateTransactionRequest struct {
	Status      *string `json:"status"`
	Description *string `json:"description"`
}

type listTransactionsResponse struct {
	Items []*model.Transaction `json:"items"`
	Total int64                `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *TransactionHandler) CreateTransaction(ctx *xhttp.RequestCtx) {
	var req createTransactionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(ctx, 400, "invalid user_id")
		return
	}

	p := model.TransactionCreateRequest{
		UserID:      userID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
	}
	if req.PaymentMethodID != "" {
		pmID, err := uuid.Parse(req.PaymentMethodID)
		if err != nil {
			writeError(ctx, 400, "invalid payment_method_id")
			return
		}
		p.PaymentMethodID = &pmID
	}
	if ip := ctx.RemoteIP().String(); ip != "" {
		p.ClientIP = &ip
	}
	if ua := string(ctx.UserAgent()); ua != "" {
		p.UserAgent = &ua
	}
	if req.DeviceID != "" {
		p.DeviceID = &req.DeviceID
	}

	detail, err := h.svc.Create(ctx, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, detail)
}

func (h *TransactionHandler) GetTransaction(ctx *xhttp.RequestCtx) {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid transaction id")
		return
	}

	detail, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, detail)
}

func (h *TransactionHandler) UpdateTransaction(ctx *xhttp.RequestCtx) {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid transaction id")
		return
	}

	var req updateTransactionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	var patch model.TransactionPatch
	if req.Status != nil {
		status := model.TransactionStatus(*req.Status)
		patch.Status = &status
	}
	patch.Description = req.Description

	txn, err := h.svc.Update(ctx, id, patch)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, txn)
}

func (h *TransactionHandler) DeleteTransaction(ctx *xhttp.RequestCtx) {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid transaction id")
		return
	}

	if err := h.svc.Delete(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(204)
}

func (h *TransactionHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	f := transactionFilter(ctx)
	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, listTransactionsResponse{Items: items, Total: total})
}

func (h *TransactionHandler) ListUserTransactions(ctx *xhttp.RequestCtx) {
	userID, err := paramUUID(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid user id")
		return
	}

	f := transactionFilter(ctx)
	items, total, err := h.svc.ListByUser(ctx, userID, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, listTransactionsResponse{Items: items, Total: total})
}

func (h *TransactionHandler) GetStats(ctx *xhttp.RequestCtx) {
	var userID *uuid.UUID
	if v := query(ctx, "user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(ctx, 400, "invalid user_id")
			return
		}
		userID = &id
	}

	stats, err := h.svc.Stats(ctx, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, stats)
}

func transactionFilter(ctx *xhttp.RequestCtx) model.TransactionFilter {
	var f model.TransactionFilter

	if v := query(ctx, "user_id"); v != "" {
		if id, e := uuid.Parse(v); e == nil {
			f.UserID = &id
		}
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.TransactionStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "provider"); v != "" {
		f.GatewayProvider = &v
	}
	if v := query(ctx, "external_ref"); v != "" {
		if ref, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.ExternalRef = &ref
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	return f
}

/* --------------------------------- Helpers ----------------------------------- */

// writeServiceError maps domain errors onto HTTP statuses: validation → 400,
// not-found → 404, conflict → 409, anything else → 500.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, repository.ErrTransactionNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrPaymentMethodNotFound):
		writeError(ctx, 404, err.Error())
	case errors.Is(err, repository.ErrDuplicateEmail),
		errors.Is(err, services.ErrHasRefunds):
		writeError(ctx, 409, err.Error())
	case errors.Is(err, services.ErrPaymentMethodNotOwned),
		errors.Is(err, services.ErrInvalidStatus):
		writeError(ctx, 400, err.Error())
	default:
		writeError(ctx, 400, err.Error())
	}
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func paramUUID(ctx *xhttp.RequestCtx, name string) (uuid.UUID, error) {
	v, _ := ctx.UserValue(name).(string)
	return uuid.Parse(v)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
