package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Payphone-Digital/marketplace-auth/internal/errors"
	"github.com/Payphone-Digital/marketplace-auth/internal/event"
	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"gorm.io/gorm"
)

// StaffService holds back-office operations on accounts.
type StaffService struct {
	accounts AccountStore
	sessions SessionStore
	events   event.Publisher
	now      func() time.Time
}

func NewStaffService(accounts AccountStore, sessions SessionStore, events event.Publisher) *StaffService {
	if events == nil {
		events = event.NopPublisher{}
	}
	return &StaffService{accounts: accounts, sessions: sessions, events: events, now: time.Now}
}

// SuspendAccount blocks the account and ends all of its sessions.
func (s *StaffService) SuspendAccount(ctx context.Context, actor *AuthData, accountID uint, reason string) (*model.Account, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "SuspendAccount")

	if actor.Account.ID == accountID {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "cannot suspend the account you are signed in with")
	}

	if err := s.accounts.SetSuspended(ctx, accountID, true, strings.TrimSpace(reason), s.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	removed, err := s.sessions.DestroyAllForAccount(ctx, accountID, "")
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to destroy sessions of suspended account").
			Uint("target_account_id", accountID).
			Err(err).
			Log()
	}

	logger.InfoWithContext(ctx, "Account suspended").
		Uint("target_account_id", accountID).
		Int("sessions_removed", removed).
		Log()

	s.publishChange(ctx, event.TypeAccountSuspended, actor, accountID, reason)
	return s.reload(ctx, accountID)
}

func (s *StaffService) UnsuspendAccount(ctx context.Context, actor *AuthData, accountID uint) (*model.Account, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "UnsuspendAccount")

	if err := s.accounts.SetSuspended(ctx, accountID, false, "", time.Time{}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Account unsuspended").
		Uint("target_account_id", accountID).
		Log()

	s.publishChange(ctx, event.TypeAccountUnsuspended, actor, accountID, "")
	return s.reload(ctx, accountID)
}

func (s *StaffService) reload(ctx context.Context, accountID uint) (*model.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	return account, nil
}

func (s *StaffService) publishChange(ctx context.Context, eventType string, actor *AuthData, accountID uint, reason string) {
	attrs := map[string]string{"actor_account_id": uintString(actor.Account.ID)}
	if reason != "" {
		attrs["reason"] = reason
	}
	if err := s.events.Publish(ctx, event.Event{Type: eventType, AccountID: accountID, Attributes: attrs}); err != nil {
		logger.WarnWithContext(ctx, "Failed to publish account event").
			String("event_type", eventType).
			Err(err).
			Log()
	}
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
