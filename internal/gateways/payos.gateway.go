package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/zenpay/payment-gateway/pkg/logger"
	"github.com/zenpay/payment-gateway/pkg/prom"
)

const (
	// CodeSuccess is the provider's "everything went fine" response code,
	// used both in API envelopes and webhook payloads.
	CodeSuccess = "00"

	defaultTimeout  = 5 * time.Second
	defaultMaxConns = 512
)

var ErrMissingConfig = errors.New("provider base url, client id and api key are required")

// ProviderError is a non-success envelope returned by the payment provider.
type ProviderError struct {
	Code string
	Desc string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider rejected request: code=%s desc=%s", e.Code, e.Desc)
}

type Config struct {
	BaseURL     string
	ClientID    string
	APIKey      string
	ChecksumKey string
	ReturnURL   string
	CancelURL   string
	Timeout     time.Duration
	MaxConns    int
}

// Client talks to a PayOS-style payment provider: numeric order codes,
// hosted checkout links, HMAC-signed webhooks.
type Client struct {
	config *Config
	http   *fasthttp.Client
}

func NewClient(config *Config) (*Client, error) {
	if config == nil || config.BaseURL == "" || config.ClientID == "" || config.APIKey == "" {
		return nil, ErrMissingConfig
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxConns == 0 {
		config.MaxConns = defaultMaxConns
	}

	return &Client{
		config: config,
		http: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}, nil
}

// CreatePaymentRequest is the input for creating a hosted payment link.
// ReferenceID is our transaction id, passed through for reconciliation.
type CreatePaymentRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	ReferenceID string `json:"referenceId"`
	ReturnURL   string `json:"returnUrl,omitempty"`
	CancelURL   string `json:"cancelUrl,omitempty"`
}

// PaymentLink is the subset of the provider response the gateway acts on,
// plus the raw envelope for audit storage.
type PaymentLink struct {
	OrderCode   int64
	CheckoutURL string
	QRCode      string
	Raw         json.RawMessage
}

type envelope struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

type paymentLinkData struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	CheckoutURL string `json:"checkoutUrl"`
	QRCode      string `json:"qrCode"`
	Status      string `json:"status"`
}

func (c *Client) CreatePaymentLink(ctx context.Context, req *CreatePaymentRequest) (*PaymentLink, error) {
	if req.ReturnURL == "" {
		req.ReturnURL = c.config.ReturnURL
	}
	if req.CancelURL == "" {
		req.CancelURL = c.config.CancelURL
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal create payment request: %w", err)
	}

	raw, err := c.do(ctx, "create_payment_link", fasthttp.MethodPost, "/v2/payment-requests", body)
	if err != nil {
		return nil, err
	}

	env, err := c.parseEnvelope(raw)
	if err != nil {
		return nil, err
	}

	var data paymentLinkData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode payment link data: %w", err)
	}

	return &PaymentLink{
		OrderCode:   data.OrderCode,
		CheckoutURL: data.CheckoutURL,
		QRCode:      data.QRCode,
		Raw:         raw,
	}, nil
}

// CancelPayment asks the provider to void the hosted payment. Callers treat
// failures as advisory; the raw envelope is returned for audit storage.
func (c *Client) CancelPayment(ctx context.Context, orderCode int64, reason string) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{"cancellationReason": reason})
	if err != nil {
		return nil, err
	}

	raw, err := c.do(ctx, "cancel_payment", fasthttp.MethodPost, fmt.Sprintf("/v2/payment-requests/%d/cancel", orderCode), body)
	if err != nil {
		return nil, err
	}
	if _, err := c.parseEnvelope(raw); err != nil {
		return raw, err
	}
	return raw, nil
}

// GetInvoice fetches the provider's current view of one payment request.
func (c *Client) GetInvoice(ctx context.Context, orderCode int64) (json.RawMessage, error) {
	raw, err := c.do(ctx, "get_invoice", fasthttp.MethodGet, fmt.Sprintf("/v2/payment-requests/%d", orderCode), nil)
	if err != nil {
		return nil, err
	}
	if _, err := c.parseEnvelope(raw); err != nil {
		return raw, err
	}
	return raw, nil
}

// Sign computes the hex HMAC-SHA256 of data with the checksum key. The mock
// provider and webhook verification use the same scheme.
func (c *Client) Sign(data []byte) string {
	return Sign(c.config.ChecksumKey, data)
}

// VerifySignature reports whether sig matches the checksum of data.
func (c *Client) VerifySignature(data []byte, sig string) bool {
	return VerifySignature(c.config.ChecksumKey, data, sig)
}

func Sign(checksumKey string, data []byte) string {
	mac := hmac.New(sha256.New, []byte(checksumKey))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	req.Header.Set("x-client-id", c.config.ClientID)
	req.Header.Set("x-api-key", c.config.APIKey)
	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	err := c.http.DoTimeout(req, resp, c.config.Timeout)
	latency := time.Since(start)
	prom.AddProviderCallDuration(latency.Seconds(), op)

	if err != nil {
		logger.Warn("provider request failed", "method", method, "path", path, "latency", latency.String(), "error", err)
		return nil, fmt.Errorf("provider request: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("provider returned http %d", status)
	}

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}

func (c *Client) parseEnvelope(raw []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode provider envelope: %w", err)
	}
	if env.Code != CodeSuccess {
		return nil, &ProviderError{Code: env.Code, Desc: env.Desc}
	}
	return &env, nil
}
