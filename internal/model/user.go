package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserSummary is the owner snapshot embedded in transaction responses and
// notification events.
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
}

func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Email: u.Email, FullName: u.FullName}
}

type UserCreateRequest struct {
	Email    string
	FullName string
	Role     string
}

func (p UserCreateRequest) Validate() error {
	if strings.TrimSpace(p.Email) == "" || !strings.Contains(p.Email, "@") {
		return errors.New("a valid email is required")
	}
	if strings.TrimSpace(p.FullName) == "" {
		return errors.New("full_name is required")
	}
	return nil
}

type UserFilter struct {
	Email  *string
	Active *bool
	Limit  int
	Offset int
}
