package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/model"
)

type UserEntity struct {
	ID        uuid.UUID `db:"id"         gorm:"primaryKey;type:uuid;column:id"`
	Email     string    `db:"email"      gorm:"column:email;not null;uniqueIndex"`
	FullName  string    `db:"full_name"  gorm:"column:full_name;not null"`
	Role      string    `db:"role"       gorm:"column:role;not null;default:user"`
	Active    bool      `db:"active"     gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `db:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (UserEntity) TableName() string {
	return "users"
}

func toUserEntity(m *model.User) *UserEntity {
	if m == nil {
		return nil
	}
	return &UserEntity{
		ID:        m.ID,
		Email:     m.Email,
		FullName:  m.FullName,
		Role:      m.Role,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toUserModel(e *UserEntity) *model.User {
	if e == nil {
		return nil
	}
	return &model.User{
		ID:        e.ID,
		Email:     e.Email,
		FullName:  e.FullName,
		Role:      e.Role,
		Active:    e.Active,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func toUserModels(entities []*UserEntity) []*model.User {
	if entities == nil {
		return nil
	}
	models := make([]*model.User, len(entities))
	for i, e := range entities {
		models[i] = toUserModel(e)
	}
	return models
}
