package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/model"
)

type RefundEntity struct {
	ID            int64     `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	TransactionID uuid.UUID `db:"transaction_id" gorm:"column:transaction_id;type:uuid;not null;index"`
	Amount        int64     `db:"amount"         gorm:"column:amount;not null"`
	Reason        string    `db:"reason"         gorm:"column:reason"`
	Status        string    `db:"status"         gorm:"column:status;not null"`
	CreatedAt     time.Time `db:"created_at"     gorm:"column:created_at;autoCreateTime"`

	Transaction *TransactionEntity `gorm:"foreignKey:TransactionID;references:ID"`
}

func (RefundEntity) TableName() string {
	return "refunds"
}

func toRefundEntity(m *model.Refund) *RefundEntity {
	if m == nil {
		return nil
	}
	return &RefundEntity{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		Amount:        m.Amount,
		Reason:        m.Reason,
		Status:        string(m.Status),
		CreatedAt:     m.CreatedAt,
	}
}

func toRefundModel(e *RefundEntity) *model.Refund {
	if e == nil {
		return nil
	}
	return &model.Refund{
		ID:            e.ID,
		TransactionID: e.TransactionID,
		Amount:        e.Amount,
		Reason:        e.Reason,
		Status:        model.RefundStatus(e.Status),
		CreatedAt:     e.CreatedAt,
	}
}

func toRefundModels(entities []*RefundEntity) []*model.Refund {
	if entities == nil {
		return nil
	}
	models := make([]*model.Refund, len(entities))
	for i, e := range entities {
		models[i] = toRefundModel(e)
	}
	return models
}
