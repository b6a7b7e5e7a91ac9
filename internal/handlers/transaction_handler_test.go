package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/zenpay/payment-gateway/internal/model"
	"github.com/zenpay/payment-gateway/internal/repository"
	"github.com/zenpay/payment-gateway/internal/services"
	xhttp "github.com/zenpay/payment-gateway/pkg/http"
)

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) Create(ctx context.Context, p model.TransactionCreateRequest) (*model.TransactionDetail, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TransactionDetail), args.Error(1)
}

func (m *MockTransactionService) Get(ctx context.Context, id uuid.UUID) (*model.TransactionDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TransactionDetail), args.Error(1)
}

func (m *MockTransactionService) Update(ctx context.Context, id uuid.UUID, patch model.TransactionPatch) (*model.Transaction, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionService) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTransactionService) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionService) ListByUser(ctx context.Context, userID uuid.UUID, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	args := m.Called(ctx, userID, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionService) Stats(ctx context.Context, userID *uuid.UUID) (*model.TransactionStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TransactionStats), args.Error(1)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestTransactionHandler_CreateTransaction(t *testing.T) {
	t.Run("successful creation", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc)

		userID := uuid.New()
		txID := uuid.New()
		reqBody := createTransactionRequest{
			UserID:      userID.String(),
			Amount:      20000,
			Currency:    "VND",
			Description: "order 42",
		}
		bodyBytes, _ := json.Marshal(reqBody)

		svc.On("Create", mock.Anything, mock.MatchedBy(func(p model.TransactionCreateRequest) bool {
			return p.UserID == userID && p.Amount == 20000 && p.Currency == "VND"
		})).Return(&model.TransactionDetail{
			Transaction: &model.Transaction{ID: txID, UserID: userID, Amount: 20000, Status: model.StatusPending},
		}, nil)

		ctx := setupTestContext("POST", "/api/v1/transactions", bodyBytes)
		handler.CreateTransaction(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.TransactionDetail
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, txID, response.Transaction.ID)
		assert.Equal(t, model.StatusPending, response.Transaction.Status)

		svc.AssertExpectations(t)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc)

		ctx := setupTestContext("POST", "/api/v1/transactions", []byte("invalid"))
		handler.CreateTransaction(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("invalid user id", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc)

		bodyBytes, _ := json.Marshal(createTransactionRequest{UserID: "not-a-uuid", Amount: 100})
		ctx := setupTestContext("POST", "/api/v1/transactions", bodyBytes)
		handler.CreateTransaction(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unknown user maps to 404", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc)

		svc.On("Create", mock.Anything, mock.Anything).Return(nil, repository.ErrUserNotFound)

		bodyBytes, _ := json.Marshal(createTransactionRequest{UserID: uuid.NewString(), Amount: 100})
		ctx := setupTestContext("POST", "/api/v1/transactions", bodyBytes)
		handler.CreateTransaction(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("foreign payment method maps to 400", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc)

		svc.On("Create", mock.Anything, mock.Anything).Return(nil, services.ErrPaymentMethodNotOwned)

		bodyBytes, _ := json.Marshal(createTransactionRequest{
			UserID:          uuid.NewString(),
			PaymentMethodID: uuid.NewString(),
			Amount:          100,
		})
		ctx := setupTestContext("POST", "/api/v1/transactions", bodyBytes)
		handler.CreateTransaction(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestTransactionHandler_GetTransaction(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc)

		txID := uuid.New()
		svc.On("Get", mock.Anything, txID).Return(&model.TransactionDetail{
			Transaction: &model.Transaction{ID: txID, Status: model.StatusAwaitingPayment},
		}, nil)

		ctx := setupTestContext("GET", "/api/v1/transactions/"+txID.String(), nil)
		ctx.SetUserValue("id", txID.String())
		handler.GetTransaction(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc)

		txID := uuid.New()
		svc.On("Get", mock.Anything, txID).Return(nil, repository.ErrTransactionNotFound)

		ctx := setupTestContext("GET", "/api/v1/transactions/"+txID.String(), nil)
		ctx.SetUserValue("id", txID.String())
		handler.GetTransaction(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("invalid id", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc)

		ctx := setupTestContext("GET", "/api/v1/transactions/abc", nil)
		ctx.SetUserValue("id", "abc")
		handler.GetTransaction(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestTransactionHandler_DeleteTransaction(t *testing.T) {
	t.Run("refund conflict maps to 409", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc)

		txID := uuid.New()
		svc.On("Delete", mock.Anything, txID).Return(services.ErrHasRefunds)

		ctx := setupTestContext("DELETE", "/api/v1/transactions/"+txID.String(), nil)
		ctx.SetUserValue("id", txID.String())
		handler.DeleteTransaction(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})

	t.Run("successful delete", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc)

		txID := uuid.New()
		svc.On("Delete", mock.Anything, txID).Return(nil)

		ctx := setupTestContext("DELETE", "/api/v1/transactions/"+txID.String(), nil)
		ctx.SetUserValue("id", txID.String())
		handler.DeleteTransaction(ctx)

		assert.Equal(t, 204, ctx.Response.StatusCode())
	})
}

func TestTransactionHandler_ListTransactions(t *testing.T) {
	t.Run("filters parsed from query", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc)

		userID := uuid.New()
		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.TransactionFilter) bool {
			return f.UserID != nil && *f.UserID == userID &&
				len(f.Statuses) == 2 &&
				f.Limit == 5 && f.Offset == 10
		})).Return([]*model.Transaction{}, int64(0), nil)

		ctx := setupTestContext("GET",
			"/api/v1/transactions?user_id="+userID.String()+"&status=completed,failed&limit=5&offset=10", nil)
		handler.ListTransactions(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestTransactionHandler_GetStats(t *testing.T) {
	svc := new(MockTransactionService)
	handler := NewTransactionHandler(svc)

	userID := uuid.New()
	svc.On("Stats", mock.Anything, mock.MatchedBy(func(id *uuid.UUID) bool {
		return id != nil && *id == userID
	})).Return(&model.TransactionStats{Total: 2, Completed: 1, Failed: 1, TotalAmount: 50000}, nil)

	ctx := setupTestContext("GET", "/api/v1/transactions/stats?user_id="+userID.String(), nil)
	handler.GetStats(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var stats model.TransactionStats
	err := json.Unmarshal(ctx.Response.Body(), &stats)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(50000), stats.TotalAmount)
}
