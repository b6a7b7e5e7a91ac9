package gateway

import (
	"crypto/hmac"
	"encoding/json"
	"errors"
)

var (
	ErrInvalidWebhook   = errors.New("webhook payload is malformed")
	ErrInvalidSignature = errors.New("webhook signature mismatch")
)

// WebhookPayload is the provider's asynchronous payment result. The signature
// covers the raw data object.
type WebhookPayload struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

// WebhookData is the decoded data object of a webhook payload.
type WebhookData struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Code        string `json:"code"`
	Desc        string `json:"desc"`
	ReferenceID string `json:"referenceId,omitempty"`
}

func (p *WebhookPayload) Succeeded() bool {
	return p.Code == CodeSuccess
}

// ParseWebhook decodes and signature-checks an inbound provider callback.
// Handlers must only act on payloads that pass this verification.
func ParseWebhook(checksumKey string, body []byte) (*WebhookPayload, *WebhookData, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil, ErrInvalidWebhook
	}
	if len(payload.Data) == 0 {
		return nil, nil, ErrInvalidWebhook
	}

	if !VerifySignature(checksumKey, payload.Data, payload.Signature) {
		return nil, nil, ErrInvalidSignature
	}

	var data WebhookData
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		return nil, nil, ErrInvalidWebhook
	}
	if data.OrderCode == 0 {
		return nil, nil, ErrInvalidWebhook
	}

	return &payload, &data, nil
}

func VerifySignature(checksumKey string, data []byte, sig string) bool {
	if sig == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(checksumKey, data)), []byte(sig))
}
