package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/model"
)

type PaymentMethodStore interface {
	Create(ctx context.Context, pm *model.PaymentMethod) (*model.PaymentMethod, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentMethod, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.PaymentMethod, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type PaymentMethodService struct {
	paymentRepo PaymentMethodStore
	userRepo    UserRepository
}

func NewPaymentMethodService(paymentRepo PaymentMethodStore, userRepo UserRepository) *PaymentMethodService {
	return &PaymentMethodService{
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
	}
}

func (s *PaymentMethodService) Create(ctx context.Context, p model.PaymentMethodCreateRequest) (*model.PaymentMethod, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// the owner must exist before a method can be attached
	if _, err := s.userRepo.GetByID(ctx, p.UserID); err != nil {
		return nil, err
	}

	return s.paymentRepo.Create(ctx, &model.PaymentMethod{
		ID:           uuid.New(),
		UserID:       p.UserID,
		Type:         p.Type,
		Label:        p.Label,
		MaskedNumber: p.MaskedNumber,
		IsDefault:    p.IsDefault,
	})
}

func (s *PaymentMethodService) Get(ctx context.Context, id uuid.UUID) (*model.PaymentMethod, error) {
	return s.paymentRepo.GetByID(ctx, id)
}

func (s *PaymentMethodService) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.PaymentMethod, error) {
	return s.paymentRepo.ListByUser(ctx, userID)
}

func (s *PaymentMethodService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.paymentRepo.Delete(ctx, id)
}
