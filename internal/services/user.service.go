package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/model"
)

type UserStore interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	List(ctx context.Context, f model.UserFilter) ([]*model.User, int64, error)
}

type UserService struct {
	userRepo UserStore
}

func NewUserService(userRepo UserStore) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}

func (s *UserService) Create(ctx context.Context, p model.UserCreateRequest) (*model.User, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	role := p.Role
	if role == "" {
		role = "user"
	}

	return s.userRepo.Create(ctx, &model.User{
		ID:       uuid.New(),
		Email:    strings.ToLower(strings.TrimSpace(p.Email)),
		FullName: strings.TrimSpace(p.FullName),
		Role:     role,
		Active:   true,
	})
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, f model.UserFilter) ([]*model.User, int64, error) {
	return s.userRepo.List(ctx, f)
}
