package users

import (
	"context"
	"fmt"
	"time"

	"github.com/credlens/credlens/internal/idgen"
	"github.com/credlens/credlens/internal/metrics"
	"github.com/credlens/credlens/internal/validation"
)

// Events receives user lifecycle notifications. Implemented by the
// webhooks emitter.
type Events interface {
	UserCreated(userID string)
	UserDeleted(userID string)
}

// Service provides user profile business logic.
type Service struct {
	store  Store
	events Events
}

// NewService creates a new user service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// WithEvents attaches a lifecycle event emitter.
func (s *Service) WithEvents(ev Events) *Service {
	s.events = ev
	return s
}

// Register validates and creates a new user profile.
func (s *Service) Register(ctx context.Context, req CreateRequest) (*User, error) {
	name := validation.SanitizeString(req.Name, 200)
	ifsc := validation.SanitizeIFSC(req.IFSCCode)

	errs := validation.Validate(
		validation.Required("name", name),
		validation.Required("accountNumber", req.AccountNumber),
		validation.ValidAccountNumber("accountNumber", req.AccountNumber),
		validation.Required("ifscCode", ifsc),
		validation.ValidIFSC("ifscCode", ifsc),
		validation.MaxLength("email", req.Email, 320),
	)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidUserFields, errs.Error())
	}

	if existing, err := s.store.GetByAccountNumber(ctx, req.AccountNumber); err == nil && existing != nil {
		return nil, ErrDuplicateAccount
	}

	now := time.Now().UTC()
	u := &User{
		ID:            idgen.WithPrefix(idgen.PrefixUser),
		Name:          name,
		Email:         validation.SanitizeString(req.Email, 320),
		AccountNumber: req.AccountNumber,
		IFSCCode:      ifsc,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	metrics.UsersRegisteredTotal.Inc()
	if s.events != nil {
		s.events.UserCreated(u.ID)
	}
	return u, nil
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.store.Get(ctx, id)
}

// Update modifies the mutable profile fields. Account number and IFSC are
// identity, not profile, and never change through this path.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*User, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		u.Name = validation.SanitizeString(req.Name, 200)
	}
	if req.Email != "" {
		if errs := validation.Validate(validation.MaxLength("email", req.Email, 320)); len(errs) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidUserFields, errs.Error())
		}
		u.Email = validation.SanitizeString(req.Email, 320)
	}
	u.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// Delete removes a user profile.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if s.events != nil {
		s.events.UserDeleted(id)
	}
	return nil
}

// List returns a page of users ordered by creation time descending.
func (s *Service) List(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]*User, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.List(ctx, limit, afterCreatedAt, afterID)
}

// Exists reports whether the user ID refers to a known profile.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.store.Get(ctx, id)
	if err == ErrUserNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
