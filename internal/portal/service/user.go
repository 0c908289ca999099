package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
	"github.com/aussiebroadwan/portal/pkg/idx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

const minAdminPasswordLength = 12

var ErrEmailTaken = errors.New("email belongs to another account")

type UserService struct {
	Store store.Store
	Now   func() time.Time
}

// GetByID fetches a user by id.
func (s *UserService) GetByID(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrRecordNotFound
	}
	if err != nil {
		return domain.User{}, storeErr("get user", err)
	}
	return u, nil
}

// GetOrCreateGuest returns the guest account for email, creating it on first
// verification. A non-empty name replaces the stored display name.
func (s *UserService) GetOrCreateGuest(ctx context.Context, email, name string) (domain.User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if name != "" && name != u.DisplayName {
			if err := s.Store.Users().UpdateDisplayName(ctx, u.ID, name); err != nil {
				return domain.User{}, storeErr("update display name", err)
			}
			u.DisplayName = name
		}
		return u, nil
	case !errors.Is(err, store.ErrNotFound):
		return domain.User{}, storeErr("get user by email", err)
	}

	now := clock(s.Now)
	u = domain.User{
		ID:          idx.NewAt(now).String(),
		Email:       email,
		DisplayName: name,
		Role:        domain.RoleGuest,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.Store.Users().CreateUser(ctx, u)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Another verification for the same email got there first.
		return s.getByEmail(ctx, email)
	}
	if err != nil {
		return domain.User{}, storeErr("create guest user", err)
	}
	return u, nil
}

func (s *UserService) getByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, storeErr("get user by email", err)
	}
	return u, nil
}

// BootstrapAdmin makes sure an admin account exists for email. An existing
// admin is left untouched so restarting with the same environment is safe.
// It reports whether an account was created.
func (s *UserService) BootstrapAdmin(ctx context.Context, email, password string) (domain.User, bool, error) {
	l := slogx.FromContext(ctx)

	email, err := NormalizeEmail(email)
	if err != nil {
		return domain.User{}, false, err
	}

	existing, err := s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != domain.RoleAdmin {
			return domain.User{}, false, ErrEmailTaken
		}
		return existing, false, nil
	case !errors.Is(err, store.ErrNotFound):
		return domain.User{}, false, storeErr("get user by email", err)
	}

	if len(password) < minAdminPasswordLength {
		return domain.User{}, false, fmt.Errorf("%w: admin password must be at least %d characters",
			ErrValidation, minAdminPasswordLength)
	}
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		l.Error("failed to hash admin password", slog.Any("error", err))
		return domain.User{}, false, err
	}

	now := clock(s.Now)
	u := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		DisplayName:  "Administrator",
		Role:         domain.RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		return domain.User{}, false, storeErr("create admin", err)
	}

	l.Info("bootstrapped admin account", slog.String("user_id", u.ID), slog.String("email", email))
	return u, true, nil
}
