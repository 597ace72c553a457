package service

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/Payphone-Digital/marketplace-auth/internal/errors"
	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"gorm.io/gorm"
)

type UserService struct {
	users    UserStore
	accounts AccountStore
	sessions SessionStore
}

func NewUserService(users UserStore, accounts AccountStore, sessions SessionStore) *UserService {
	return &UserService{users: users, accounts: accounts, sessions: sessions}
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "GetUserByID")

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		logger.ErrorWithContext(ctx, "Failed to get user by ID").
			Uint("user_id", id).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id uint, firstName, lastName string) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "UpdateProfile")

	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, apperrors.ErrValidation
	}

	if err := s.users.UpdateProfile(ctx, id, firstName, lastName); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		logger.ErrorWithContext(ctx, "Failed to update profile").
			Uint("user_id", id).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Profile updated").
		Uint("user_id", id).
		Log()

	return s.GetByID(ctx, id)
}

func (s *UserService) ListAccounts(ctx context.Context, userID uint) ([]model.Account, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ListAccounts")

	accounts, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	return accounts, nil
}

// ListSessions returns the live sessions of the account.
func (s *UserService) ListSessions(ctx context.Context, accountID uint) ([]model.Session, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ListSessions")

	sessions, err := s.sessions.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	return sessions, nil
}
