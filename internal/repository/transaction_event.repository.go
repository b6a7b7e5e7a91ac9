package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/model"
	"github.com/zenpay/payment-gateway/pkg/pg"
)

type TransactionEventRepository struct {
	*pg.DB
}

func NewTransactionEventRepository(db *pg.DB) *TransactionEventRepository {
	return &TransactionEventRepository{
		db,
	}
}

// Append writes one audit record. Rows are never updated or deleted directly;
// they only go away when the owning transaction is deleted.
func (r *TransactionEventRepository) Append(ctx context.Context, ev *model.TransactionEvent) (*model.TransactionEvent, error) {
	entity := toTransactionEventEntity(ev)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionEventModel(entity), nil
}

// ListRecent returns up to limit audit records, newest first.
func (r *TransactionEventRepository) ListRecent(ctx context.Context, transactionID uuid.UUID, limit int) ([]*model.TransactionEvent, error) {
	if limit <= 0 {
		limit = 10
	}

	var entities []*TransactionEventEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	return toTransactionEventModels(entities), nil
}

func (r *TransactionEventRepository) CountByTransaction(ctx context.Context, transactionID uuid.UUID) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).Model(&TransactionEventEntity{}).
		Where("transaction_id = ?", transactionID).
		Count(&count).Error
	return count, err
}

// DeleteByTransaction removes the audit trail of one transaction. Only used
// as part of transaction deletion, inside the same unit of work.
func (r *TransactionEventRepository) DeleteByTransaction(ctx context.Context, transactionID uuid.UUID) error {
	return r.Write(ctx).WithContext(ctx).
		Delete(&TransactionEventEntity{}, "transaction_id = ?", transactionID).Error
}
