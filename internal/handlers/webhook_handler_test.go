package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zenpay/payment-gateway/internal/events"
	gateway "github.com/zenpay/payment-gateway/internal/gateways"
	"github.com/zenpay/payment-gateway/internal/model"
	"github.com/zenpay/payment-gateway/internal/repository"
)

const testChecksumKey = "test-checksum-key"

type MockWebhookTransactionService struct {
	mock.Mock
}

func (m *MockWebhookTransactionService) UpdateGatewayResponse(ctx context.Context, externalRef int64, raw json.RawMessage, newStatus model.TransactionStatus) (*model.Transaction, bool, error) {
	args := m.Called(ctx, externalRef, raw, newStatus)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Transaction), args.Bool(1), args.Error(2)
}

type MockWebhookUserStore struct {
	mock.Mock
}

func (m *MockWebhookUserStore) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type MockWebhookPublisher struct {
	mock.Mock
}

func (m *MockWebhookPublisher) Publish(ctx context.Context, e events.Event) {
	m.Called(ctx, e)
}

// signedWebhookBody builds a provider callback whose signature matches
// testChecksumKey.
func signedWebhookBody(t *testing.T, code string, data gateway.WebhookData) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)

	body, err := json.Marshal(gateway.WebhookPayload{
		Code:      code,
		Desc:      "success",
		Data:      raw,
		Signature: gateway.Sign(testChecksumKey, raw),
	})
	require.NoError(t, err)
	return body
}

func TestWebhookHandler_SuccessfulPayment(t *testing.T) {
	svc := new(MockWebhookTransactionService)
	users := new(MockWebhookUserStore)
	bus := new(MockWebhookPublisher)
	handler := NewWebhookHandler(svc, users, bus, testChecksumKey)

	txID := uuid.New()
	userID := uuid.New()
	orderCode := int64(424242)

	svc.On("UpdateGatewayResponse", mock.Anything, orderCode, mock.Anything, model.StatusCompleted).
		Return(&model.Transaction{ID: txID, UserID: userID, Amount: 20000, Status: model.StatusCompleted}, true, nil)
	users.On("GetByID", mock.Anything, userID).
		Return(&model.User{ID: userID, Email: "a@b.com", FullName: "Test User"}, nil)
	bus.On("Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		ok, isType := e.(events.PaymentSucceeded)
		return isType && ok.UserID == userID && ok.Amount == 20000
	})).Return()

	body := signedWebhookBody(t, gateway.CodeSuccess, gateway.WebhookData{
		OrderCode: orderCode,
		Amount:    20000,
		Code:      gateway.CodeSuccess,
	})
	ctx := setupTestContext("POST", "/webhooks/payos", body)
	handler.HandlePayOS(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	svc.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestWebhookHandler_FailedPayment(t *testing.T) {
	svc := new(MockWebhookTransactionService)
	users := new(MockWebhookUserStore)
	bus := new(MockWebhookPublisher)
	handler := NewWebhookHandler(svc, users, bus, testChecksumKey)

	txID := uuid.New()
	userID := uuid.New()
	orderCode := int64(99)

	svc.On("UpdateGatewayResponse", mock.Anything, orderCode, mock.Anything, model.StatusFailed).
		Return(&model.Transaction{ID: txID, UserID: userID, Amount: 5000, Status: model.StatusFailed}, true, nil)
	users.On("GetByID", mock.Anything, userID).Return(nil, repository.ErrUserNotFound)
	bus.On("Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		_, isType := e.(events.PaymentFailed)
		return isType
	})).Return()

	body := signedWebhookBody(t, "01", gateway.WebhookData{
		OrderCode: orderCode,
		Amount:    5000,
		Code:      "01",
	})
	ctx := setupTestContext("POST", "/webhooks/payos", body)
	handler.HandlePayOS(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	svc.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestWebhookHandler_InvalidSignature(t *testing.T) {
	svc := new(MockWebhookTransactionService)
	handler := NewWebhookHandler(svc, new(MockWebhookUserStore), new(MockWebhookPublisher), testChecksumKey)

	raw, _ := json.Marshal(gateway.WebhookData{OrderCode: 1, Amount: 100, Code: "00"})
	body, _ := json.Marshal(gateway.WebhookPayload{
		Code:      "00",
		Data:      raw,
		Signature: "tampered",
	})

	ctx := setupTestContext("POST", "/webhooks/payos", body)
	handler.HandlePayOS(ctx)

	assert.Equal(t, 401, ctx.Response.StatusCode())
	svc.AssertNotCalled(t, "UpdateGatewayResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookHandler_MalformedPayloadAcknowledged(t *testing.T) {
	svc := new(MockWebhookTransactionService)
	handler := NewWebhookHandler(svc, new(MockWebhookUserStore), new(MockWebhookPublisher), testChecksumKey)

	ctx := setupTestContext("POST", "/webhooks/payos", []byte("not json"))
	handler.HandlePayOS(ctx)

	// provider retries non-2xx deliveries forever, so garbage is acked
	assert.Equal(t, 200, ctx.Response.StatusCode())
	svc.AssertNotCalled(t, "UpdateGatewayResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookHandler_UnknownOrderCodeAcknowledged(t *testing.T) {
	svc := new(MockWebhookTransactionService)
	bus := new(MockWebhookPublisher)
	handler := NewWebhookHandler(svc, new(MockWebhookUserStore), bus, testChecksumKey)

	svc.On("UpdateGatewayResponse", mock.Anything, int64(777), mock.Anything, model.StatusCompleted).
		Return(nil, false, repository.ErrTransactionNotFound)

	body := signedWebhookBody(t, gateway.CodeSuccess, gateway.WebhookData{OrderCode: 777, Code: "00"})
	ctx := setupTestContext("POST", "/webhooks/payos", body)
	handler.HandlePayOS(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestWebhookHandler_DuplicateDeliveryNotRenotified(t *testing.T) {
	svc := new(MockWebhookTransactionService)
	users := new(MockWebhookUserStore)
	bus := new(MockWebhookPublisher)
	handler := NewWebhookHandler(svc, users, bus, testChecksumKey)

	txID := uuid.New()
	userID := uuid.New()
	orderCode := int64(424242)

	// already terminal: the status write was a no-op
	svc.On("UpdateGatewayResponse", mock.Anything, orderCode, mock.Anything, model.StatusCompleted).
		Return(&model.Transaction{ID: txID, UserID: userID, Status: model.StatusCompleted}, false, nil)

	body := signedWebhookBody(t, gateway.CodeSuccess, gateway.WebhookData{OrderCode: orderCode, Code: "00"})
	ctx := setupTestContext("POST", "/webhooks/payos", body)
	handler.HandlePayOS(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestWebhookHandler_ProcessingErrorReturns500(t *testing.T) {
	svc := new(MockWebhookTransactionService)
	handler := NewWebhookHandler(svc, new(MockWebhookUserStore), new(MockWebhookPublisher), testChecksumKey)

	svc.On("UpdateGatewayResponse", mock.Anything, int64(5), mock.Anything, model.StatusCompleted).
		Return(nil, false, assert.AnError)

	body := signedWebhookBody(t, gateway.CodeSuccess, gateway.WebhookData{OrderCode: 5, Code: "00"})
	ctx := setupTestContext("POST", "/webhooks/payos", body)
	handler.HandlePayOS(ctx)

	assert.Equal(t, 500, ctx.Response.StatusCode())
}
