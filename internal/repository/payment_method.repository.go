package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zenpay/payment-gateway/internal/model"
	"github.com/zenpay/payment-gateway/pkg/pg"
)

var ErrPaymentMethodNotFound = errors.New("payment method not found")

type PaymentMethodRepository struct {
	*pg.DB
}

func NewPaymentMethodRepository(db *pg.DB) *PaymentMethodRepository {
	return &PaymentMethodRepository{
		db,
	}
}

func (r *PaymentMethodRepository) Create(ctx context.Context, pm *model.PaymentMethod) (*model.PaymentMethod, error) {
	entity := toPaymentMethodEntity(pm)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toPaymentMethodModel(entity), nil
}

func (r *PaymentMethodRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentMethod, error) {
	var entity PaymentMethodEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentMethodNotFound
		}
		return nil, err
	}
	return toPaymentMethodModel(&entity), nil
}

func (r *PaymentMethodRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.PaymentMethod, error) {
	var entities []*PaymentMethodEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at DESC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toPaymentMethodModels(entities), nil
}

func (r *PaymentMethodRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.Write(ctx).WithContext(ctx).Delete(&PaymentMethodEntity{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPaymentMethodNotFound
	}
	return nil
}
