package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type PaymentMethodType string

const (
	PaymentMethodCard    PaymentMethodType = "card"
	PaymentMethodBank    PaymentMethodType = "bank"
	PaymentMethodEwallet PaymentMethodType = "ewallet"
)

type PaymentMethod struct {
	ID           uuid.UUID         `json:"id"`
	UserID       uuid.UUID         `json:"user_id"`
	Type         PaymentMethodType `json:"type"`
	Label        string            `json:"label"`
	MaskedNumber string            `json:"masked_number"`
	IsDefault    bool              `json:"is_default"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type PaymentMethodCreateRequest struct {
	UserID       uuid.UUID
	Type         PaymentMethodType
	Label        string
	MaskedNumber string
	IsDefault    bool
}

func (p PaymentMethodCreateRequest) Validate() error {
	if p.UserID == uuid.Nil {
		return errors.New("user_id is required")
	}
	switch p.Type {
	case PaymentMethodCard, PaymentMethodBank, PaymentMethodEwallet:
	default:
		return errors.New("type must be one of card, bank, ewallet")
	}
	return nil
}
