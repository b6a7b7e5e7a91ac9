package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/model"
	"github.com/zenpay/payment-gateway/pkg/pg"
)

type RefundRepository struct {
	*pg.DB
}

func NewRefundRepository(db *pg.DB) *RefundRepository {
	return &RefundRepository{
		db,
	}
}

func (r *RefundRepository) Create(ctx context.Context, refund *model.Refund) (*model.Refund, error) {
	entity := toRefundEntity(refund)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toRefundModel(entity), nil
}

func (r *RefundRepository) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*model.Refund, error) {
	var entities []*RefundEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at DESC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toRefundModels(entities), nil
}

func (r *RefundRepository) CountByTransaction(ctx context.Context, transactionID uuid.UUID) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).Model(&RefundEntity{}).
		Where("transaction_id = ?", transactionID).
		Count(&count).Error
	return count, err
}
