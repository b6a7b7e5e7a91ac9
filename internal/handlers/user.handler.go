package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/model"
	xhttp "github.com/zenpay/payment-gateway/pkg/http"
)

type UserService interface {
	Create(ctx context.Context, p model.UserCreateRequest) (*model.User, error)
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	List(ctx context.Context, f model.UserFilter) ([]*model.User, int64, error)
}

type UserHandler struct {
	svc UserService
}

func RegisterUserRoutes(e *router.Group, h *UserHandler) {
	e.POST("/users", h.CreateUser)
	e.GET("/users", h.ListUsers)
	e.GET("/users/{id}", h.GetUser)
}

func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

type createUserRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type listUsersResponse struct {
	Items []*model.User `json:"items"`
	Total int64         `json:"total"`
}

func (h *UserHandler) CreateUser(ctx *xhttp.RequestCtx) {
	var req createUserRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	user, err := h.svc.Create(ctx, model.UserCreateRequest{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     req.Role,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, user)
}

func (h *UserHandler) GetUser(ctx *xhttp.RequestCtx) {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid user id")
		return
	}

	user, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, user)
}

func (h *UserHandler) ListUsers(ctx *xhttp.RequestCtx) {
	var f model.UserFilter
	if v := query(ctx, "email"); v != "" {
		f.Email = &v
	}
	if v := query(ctx, "active"); v != "" {
		if b, e := strconv.ParseBool(v); e == nil {
			f.Active = &b
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

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, listUsersResponse{Items: items, Total: total})
}
