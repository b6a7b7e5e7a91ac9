package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	gateway "github.com/zenpay/payment-gateway/internal/gateways"
)

// PaymentStatus is the lifecycle of a hosted payment request on the
// provider's side.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusPaid      PaymentStatus = "PAID"
	StatusCancelled PaymentStatus = "CANCELLED"
	StatusExpired   PaymentStatus = "EXPIRED"
)

// CreatePaymentRequest mirrors the body the gateway sends when it asks for
// a hosted checkout link.
type CreatePaymentRequest struct {
	OrderCode   int64  `json:"orderCode" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description"`
	ReferenceID string `json:"referenceId"`
	ReturnURL   string `json:"returnUrl"`
	CancelURL   string `json:"cancelUrl"`
}

type paymentLinkData struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	CheckoutURL string `json:"checkoutUrl"`
	QRCode      string `json:"qrCode"`
	Status      string `json:"status"`
}

type invoiceData struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Status      string `json:"status"`
	ReferenceID string `json:"referenceId,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

type webhookData struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Code        string `json:"code"`
	Desc        string `json:"desc"`
	ReferenceID string `json:"referenceId,omitempty"`
}

type paymentRecord struct {
	OrderCode   int64
	Amount      int64
	Description string
	ReferenceID string
	Status      PaymentStatus
	CreatedAt   time.Time
}

// MockProvider simulates a PayOS-style payment provider: it hands out
// checkout links, keeps payment state in memory and can push signed webhooks
// back to the gateway to settle payments.
type MockProvider struct {
	mu          sync.Mutex
	payments    map[int64]*paymentRecord
	successRate float64
	autoSettle  time.Duration
	checkoutURL string
	checksumKey string
	webhookURL  string
	rng         *rand.Rand
}

func NewMockProvider(successRate float64, autoSettle time.Duration, checkoutURL, checksumKey, webhookURL string) *MockProvider {
	return &MockProvider{
		payments:    make(map[int64]*paymentRecord),
		successRate: successRate,
		autoSettle:  autoSettle,
		checkoutURL: checkoutURL,
		checksumKey: checksumKey,
		webhookURL:  webhookURL,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockProvider) create(req *CreatePaymentRequest) (*paymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.payments[req.OrderCode]; ok {
		return nil, fmt.Errorf("order code %d already exists", req.OrderCode)
	}

	record := &paymentRecord{
		OrderCode:   req.OrderCode,
		Amount:      req.Amount,
		Description: req.Description,
		ReferenceID: req.ReferenceID,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}
	m.payments[req.OrderCode] = record
	return record, nil
}

func (m *MockProvider) get(orderCode int64) (*paymentRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.payments[orderCode]
	return record, ok
}

func (m *MockProvider) cancel(orderCode int64) (*paymentRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.payments[orderCode]
	if !ok {
		return nil, false
	}
	if record.Status == StatusPending {
		record.Status = StatusCancelled
	}
	return record, true
}

func (m *MockProvider) shouldSucceed() bool {
	return m.rng.Float64() < m.successRate
}

// settleLater simulates the customer paying (or abandoning) the checkout
// page, then delivers the signed webhook the way the real provider does.
func (m *MockProvider) settleLater(orderCode int64) {
	if m.autoSettle <= 0 || m.webhookURL == "" {
		return
	}

	time.AfterFunc(m.autoSettle, func() {
		m.mu.Lock()
		record, ok := m.payments[orderCode]
		if !ok || record.Status != StatusPending {
			m.mu.Unlock()
			return
		}
		succeeded := m.shouldSucceed()
		if succeeded {
			record.Status = StatusPaid
		} else {
			record.Status = StatusExpired
		}
		amount := record.Amount
		reference := record.ReferenceID
		m.mu.Unlock()

		code, desc := gateway.CodeSuccess, "success"
		if !succeeded {
			code, desc = "02", "Payment expired"
		}
		m.deliverWebhook(webhookData{
			OrderCode:   orderCode,
			Amount:      amount,
			Code:        code,
			Desc:        desc,
			ReferenceID: reference,
		})
	})
}

func (m *MockProvider) deliverWebhook(data webhookData) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal webhook data")
		return
	}

	body, err := json.Marshal(map[string]interface{}{
		"code":      data.Code,
		"desc":      data.Desc,
		"data":      json.RawMessage(dataJSON),
		"signature": gateway.Sign(m.checksumKey, dataJSON),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal webhook body")
		return
	}

	resp, err := http.Post(m.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Warn().
			Int64("order_code", data.OrderCode).
			Err(err).
			Msg("Webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	log.Info().
		Int64("order_code", data.OrderCode).
		Str("code", data.Code).
		Int("status", resp.StatusCode).
		Msg("Webhook delivered")
}

// Handler exposes the mock provider over HTTP.
type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

func (h *Handler) envelope(c *gin.Context, status int, code, desc string, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "99", "desc": "internal error"})
		return
	}
	c.JSON(status, gin.H{
		"code":      code,
		"desc":      desc,
		"data":      json.RawMessage(dataJSON),
		"signature": gateway.Sign(h.provider.checksumKey, dataJSON),
	})
}

// CreatePayment handles POST /v2/payment-requests.
func (h *Handler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "20", "desc": "Invalid request: " + err.Error()})
		return
	}

	record, err := h.provider.create(&req)
	if err != nil {
		h.envelope(c, http.StatusOK, "231", "Order code already exists", gin.H{"orderCode": req.OrderCode})
		return
	}

	log.Info().
		Int64("order_code", record.OrderCode).
		Int64("amount", record.Amount).
		Str("reference", record.ReferenceID).
		Msg("Payment request created")

	h.provider.settleLater(record.OrderCode)

	h.envelope(c, http.StatusOK, gateway.CodeSuccess, "success", paymentLinkData{
		OrderCode:   record.OrderCode,
		Amount:      record.Amount,
		CheckoutURL: fmt.Sprintf("%s/%d", h.provider.checkoutURL, record.OrderCode),
		QRCode:      fmt.Sprintf("mock-qr-%d", record.OrderCode),
		Status:      string(record.Status),
	})
}

// GetPayment handles GET /v2/payment-requests/:order_code.
func (h *Handler) GetPayment(c *gin.Context) {
	orderCode, err := strconv.ParseInt(c.Param("order_code"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "20", "desc": "order_code must be numeric"})
		return
	}

	record, ok := h.provider.get(orderCode)
	if !ok {
		h.envelope(c, http.StatusOK, "101", "Payment not found", gin.H{"orderCode": orderCode})
		return
	}

	h.envelope(c, http.StatusOK, gateway.CodeSuccess, "success", invoiceData{
		OrderCode:   record.OrderCode,
		Amount:      record.Amount,
		Status:      string(record.Status),
		ReferenceID: record.ReferenceID,
		CreatedAt:   record.CreatedAt.Format(time.RFC3339),
	})
}

// CancelPayment handles POST /v2/payment-requests/:order_code/cancel.
func (h *Handler) CancelPayment(c *gin.Context) {
	orderCode, err := strconv.ParseInt(c.Param("order_code"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "20", "desc": "order_code must be numeric"})
		return
	}

	record, ok := h.provider.cancel(orderCode)
	if !ok {
		h.envelope(c, http.StatusOK, "101", "Payment not found", gin.H{"orderCode": orderCode})
		return
	}

	log.Info().
		Int64("order_code", orderCode).
		Str("status", string(record.Status)).
		Msg("Payment cancelled")

	h.envelope(c, http.StatusOK, gateway.CodeSuccess, "success", invoiceData{
		OrderCode: record.OrderCode,
		Amount:    record.Amount,
		Status:    string(record.Status),
	})
}

// Pay handles POST /v2/payment-requests/:order_code/pay, a test-only hook to
// settle a payment on demand instead of waiting for the auto-settle timer.
func (h *Handler) Pay(c *gin.Context) {
	orderCode, err := strconv.ParseInt(c.Param("order_code"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "20", "desc": "order_code must be numeric"})
		return
	}

	h.provider.mu.Lock()
	record, ok := h.provider.payments[orderCode]
	if !ok || record.Status != StatusPending {
		h.provider.mu.Unlock()
		h.envelope(c, http.StatusOK, "101", "Payment not found or not pending", gin.H{"orderCode": orderCode})
		return
	}
	record.Status = StatusPaid
	amount := record.Amount
	reference := record.ReferenceID
	h.provider.mu.Unlock()

	go h.provider.deliverWebhook(webhookData{
		OrderCode:   orderCode,
		Amount:      amount,
		Code:        gateway.CodeSuccess,
		Desc:        "success",
		ReferenceID: reference,
	})

	h.envelope(c, http.StatusOK, gateway.CodeSuccess, "success", gin.H{
		"orderCode": orderCode,
		"status":    string(StatusPaid),
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	h.provider.mu.Lock()
	count := len(h.provider.payments)
	h.provider.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"payments":     count,
		"success_rate": h.provider.successRate,
		"timestamp":    time.Now(),
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	v2 := router.Group("/v2")
	{
		v2.POST("/payment-requests", handler.CreatePayment)
		v2.GET("/payment-requests/:order_code", handler.GetPayment)
		v2.POST("/payment-requests/:order_code/cancel", handler.CancelPayment)
		v2.POST("/payment-requests/:order_code/pay", handler.Pay)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	successRate := getEnvFloat("SUCCESS_RATE", 1)
	autoSettle := getEnvDuration("AUTO_SETTLE_DELAY", 0)
	checkoutURL := getEnv("CHECKOUT_URL", "https://pay.mock.local/checkout")
	checksumKey := getEnv("PAYOS_CHECKSUM_KEY", "mock-checksum-key")
	webhookURL := getEnv("WEBHOOK_URL", "")

	log.Info().
		Str("port", port).
		Float64("success_rate", successRate).
		Dur("auto_settle", autoSettle).
		Str("webhook_url", webhookURL).
		Msg("Starting Mock Payment Provider")

	provider := NewMockProvider(successRate, autoSettle, checkoutURL, checksumKey, webhookURL)
	handler := NewHandler(provider)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
