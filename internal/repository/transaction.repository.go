package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zenpay/payment-gateway/internal/model"
	"github.com/zenpay/payment-gateway/pkg/pg"
)

var (
	// ErrTransactionNotFound is returned when a transaction id or external
	// reference does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

func (r *TransactionRepository) GetByExternalRef(ctx context.Context, externalRef int64) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "external_ref = ?", externalRef).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// UpdateFields applies a prepared column map to one transaction row. The
// caller decides which columns change; audit events are the service's job.
func (r *TransactionRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := r.Write(ctx).WithContext(ctx).Model(&TransactionEntity{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.Write(ctx).WithContext(ctx).Delete(&TransactionEntity{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&TransactionEntity{})

	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(f.Statuses))
	}
	if f.GatewayProvider != nil && *f.GatewayProvider != "" {
		q = q.Where("gateway_provider = ?", *f.GatewayProvider)
	}
	if f.ExternalRef != nil {
		q = q.Where("external_ref = ?", *f.ExternalRef)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*TransactionEntity
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toTransactionModels(entities), total, nil
}

// Stats aggregates lifecycle counts, optionally scoped to one owner.
func (r *TransactionRepository) Stats(ctx context.Context, userID *uuid.UUID) (*model.TransactionStats, error) {
	base := func() *gorm.DB {
		q := r.Read(ctx).WithContext(ctx).Model(&TransactionEntity{})
		if userID != nil {
			q = q.Where("user_id = ?", *userID)
		}
		return q
	}

	stats := &model.TransactionStats{}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", string(model.StatusCompleted)).Count(&stats.Completed).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status IN ?", statusStrings(model.PendingStatuses)).Count(&stats.Pending).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status IN ?", statusStrings(model.FailedStatuses)).Count(&stats.Failed).Error; err != nil {
		return nil, err
	}

	var totalAmount *int64
	err := base().Where("status = ?", string(model.StatusCompleted)).
		Select("SUM(amount)").Scan(&totalAmount).Error
	if err != nil {
		return nil, err
	}
	if totalAmount != nil {
		stats.TotalAmount = *totalAmount
	}

	return stats, nil
}

func statusStrings(statuses []model.TransactionStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
