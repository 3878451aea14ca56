// Package users manages the borrower profiles that transaction histories
// and risk assessments hang off.
package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateAccount  = errors.New("a user with this account number already exists")
	ErrInvalidUserFields = errors.New("invalid user fields")
)

// User is one borrower profile.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	AccountNumber string    `json:"accountNumber"`
	IFSCCode      string    `json:"ifscCode"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CreateRequest is the request body for registering a user.
type CreateRequest struct {
	Name          string `json:"name" binding:"required"`
	Email         string `json:"email"`
	AccountNumber string `json:"accountNumber" binding:"required"`
	IFSCCode      string `json:"ifscCode" binding:"required"`
}

// UpdateRequest is the request body for updating a user's mutable fields.
type UpdateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Store persists user profiles.
type Store interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByAccountNumber(ctx context.Context, accountNumber string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]*User, error)
}
