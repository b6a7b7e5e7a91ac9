package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/model"
)

type TransactionEventEntity struct {
	ID            int64     `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	TransactionID uuid.UUID `db:"transaction_id" gorm:"column:transaction_id;type:uuid;not null;index"`
	EventType     string    `db:"event_type"     gorm:"column:event_type;not null"`
	FromValue     *string   `db:"from_value"     gorm:"column:from_value"`
	ToValue       *string   `db:"to_value"       gorm:"column:to_value"`
	Metadata      []byte    `db:"metadata"       gorm:"column:metadata"`
	CreatedAt     time.Time `db:"created_at"     gorm:"column:created_at;autoCreateTime;index"`

	Transaction *TransactionEntity `gorm:"foreignKey:TransactionID;references:ID;constraint:OnDelete:CASCADE"`
}

func (TransactionEventEntity) TableName() string {
	return "transaction_events"
}

func toTransactionEventEntity(m *model.TransactionEvent) *TransactionEventEntity {
	if m == nil {
		return nil
	}
	return &TransactionEventEntity{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		EventType:     m.EventType,
		FromValue:     m.FromValue,
		ToValue:       m.ToValue,
		Metadata:      m.Metadata,
		CreatedAt:     m.CreatedAt,
	}
}

func toTransactionEventModel(e *TransactionEventEntity) *model.TransactionEvent {
	if e == nil {
		return nil
	}
	return &model.TransactionEvent{
		ID:            e.ID,
		TransactionID: e.TransactionID,
		EventType:     e.EventType,
		FromValue:     e.FromValue,
		ToValue:       e.ToValue,
		Metadata:      e.Metadata,
		CreatedAt:     e.CreatedAt,
	}
}

func toTransactionEventModels(entities []*TransactionEventEntity) []*model.TransactionEvent {
	if entities == nil {
		return nil
	}
	models := make([]*model.TransactionEvent, len(entities))
	for i, e := range entities {
		models[i] = toTransactionEventModel(e)
	}
	return models
}
