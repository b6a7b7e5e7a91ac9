package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/model"
)

type TransactionEntity struct {
	ID              uuid.UUID  `db:"id"                gorm:"primaryKey;type:uuid;column:id"`
	UserID          uuid.UUID  `db:"user_id"           gorm:"column:user_id;type:uuid;not null;index"`
	PaymentMethodID *uuid.UUID `db:"payment_method_id" gorm:"column:payment_method_id;type:uuid;index"`
	Amount          int64      `db:"amount"            gorm:"column:amount;not null"`
	Currency        string     `db:"currency"          gorm:"column:currency;not null;default:VND"`
	Description     string     `db:"description"       gorm:"column:description"`
	Status          string     `db:"status"            gorm:"column:status;not null;index"`
	ExternalRef     *int64     `db:"external_ref"      gorm:"column:external_ref;uniqueIndex"`
	GatewayProvider *string    `db:"gateway_provider"  gorm:"column:gateway_provider;index"`
	GatewayResponse []byte     `db:"gateway_response"  gorm:"column:gateway_response"`
	FraudScore      *float64   `db:"fraud_score"       gorm:"column:fraud_score"`
	FraudDecision   *string    `db:"fraud_decision"    gorm:"column:fraud_decision"`
	FraudProvider   *string    `db:"fraud_provider"    gorm:"column:fraud_provider"`
	FraudMetadata   []byte     `db:"fraud_metadata"    gorm:"column:fraud_metadata"`
	JobID           *string    `db:"job_id"            gorm:"column:job_id"`
	ClientIP        *string    `db:"client_ip"         gorm:"column:client_ip"`
	UserAgent       *string    `db:"user_agent"        gorm:"column:user_agent"`
	DeviceID        *string    `db:"device_id"         gorm:"column:device_id"`
	CreatedAt       time.Time  `db:"created_at"        gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt       time.Time  `db:"updated_at"        gorm:"column:updated_at;autoUpdateTime"`
	CompletedAt     *time.Time `db:"completed_at"      gorm:"column:completed_at"`

	User *UserEntity `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:              m.ID,
		UserID:          m.UserID,
		PaymentMethodID: m.PaymentMethodID,
		Amount:          m.Amount,
		Currency:        m.Currency,
		Description:     m.Description,
		Status:          string(m.Status),
		ExternalRef:     m.ExternalRef,
		GatewayProvider: m.GatewayProvider,
		GatewayResponse: m.GatewayResponse,
		FraudScore:      m.FraudScore,
		FraudDecision:   m.FraudDecision,
		FraudProvider:   m.FraudProvider,
		FraudMetadata:   m.FraudMetadata,
		JobID:           m.JobID,
		ClientIP:        m.ClientIP,
		UserAgent:       m.UserAgent,
		DeviceID:        m.DeviceID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		CompletedAt:     m.CompletedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:              e.ID,
		UserID:          e.UserID,
		PaymentMethodID: e.PaymentMethodID,
		Amount:          e.Amount,
		Currency:        e.Currency,
		Description:     e.Description,
		Status:          model.TransactionStatus(e.Status),
		ExternalRef:     e.ExternalRef,
		GatewayProvider: e.GatewayProvider,
		GatewayResponse: e.GatewayResponse,
		FraudScore:      e.FraudScore,
		FraudDecision:   e.FraudDecision,
		FraudProvider:   e.FraudProvider,
		FraudMetadata:   e.FraudMetadata,
		JobID:           e.JobID,
		ClientIP:        e.ClientIP,
		UserAgent:       e.UserAgent,
		DeviceID:        e.DeviceID,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
		CompletedAt:     e.CompletedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
