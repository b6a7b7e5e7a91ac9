package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/model"
)

type PaymentMethodEntity struct {
	ID           uuid.UUID `db:"id"            gorm:"primaryKey;type:uuid;column:id"`
	UserID       uuid.UUID `db:"user_id"       gorm:"column:user_id;type:uuid;not null;index"`
	Type         string    `db:"type"          gorm:"column:type;not null"`
	Label        string    `db:"label"         gorm:"column:label"`
	MaskedNumber string    `db:"masked_number" gorm:"column:masked_number"`
	IsDefault    bool      `db:"is_default"    gorm:"column:is_default;not null;default:false"`
	CreatedAt    time.Time `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `db:"updated_at"    gorm:"column:updated_at;autoUpdateTime"`

	User *UserEntity `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

func (PaymentMethodEntity) TableName() string {
	return "payment_methods"
}

func toPaymentMethodEntity(m *model.PaymentMethod) *PaymentMethodEntity {
	if m == nil {
		return nil
	}
	return &PaymentMethodEntity{
		ID:           m.ID,
		UserID:       m.UserID,
		Type:         string(m.Type),
		Label:        m.Label,
		MaskedNumber: m.MaskedNumber,
		IsDefault:    m.IsDefault,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toPaymentMethodModel(e *PaymentMethodEntity) *model.PaymentMethod {
	if e == nil {
		return nil
	}
	return &model.PaymentMethod{
		ID:           e.ID,
		UserID:       e.UserID,
		Type:         model.PaymentMethodType(e.Type),
		Label:        e.Label,
		MaskedNumber: e.MaskedNumber,
		IsDefault:    e.IsDefault,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func toPaymentMethodModels(entities []*PaymentMethodEntity) []*model.PaymentMethod {
	if entities == nil {
		return nil
	}
	models := make([]*model.PaymentMethod, len(entities))
	for i, e := range entities {
		models[i] = toPaymentMethodModel(e)
	}
	return models
}
