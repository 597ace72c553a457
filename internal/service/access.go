package service

import (
	"context"
	"errors"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	apperrors "github.com/Payphone-Digital/marketplace-auth/internal/errors"
	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	"github.com/Payphone-Digital/marketplace-auth/internal/repository"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"github.com/Payphone-Digital/marketplace-auth/pkg/routing"
	"gorm.io/gorm"
)

// AuthData is the resolved identity of an authenticated request.
type AuthData struct {
	User              *model.User
	Account           *model.Account
	Session           *model.Session
	Permissions       []string
	TwoFactorVerified bool
}

// TwoFactorPending reports whether the account requires a second factor the
// session has not supplied yet.
func (a *AuthData) TwoFactorPending() bool {
	return a.Account.TwoFactorEnabled && !a.TwoFactorVerified
}

// SessionState derives the lifecycle state of the session.
func (a *AuthData) SessionState() string {
	if a == nil {
		return constants.SessionAnonymous
	}
	if !a.Account.TwoFactorEnabled {
		return constants.SessionAuthenticated
	}
	if a.TwoFactorVerified {
		return constants.SessionTwoFactorVerified
	}
	return constants.SessionTwoFactorPending
}

type AccessService struct {
	sessions SessionStore
	accounts AccountStore
	users    UserStore
	roles    *RoleService
	tokens   *TokenService
}

func NewAccessService(sessions SessionStore, accounts AccountStore, users UserStore, roles *RoleService, tokens *TokenService) *AccessService {
	return &AccessService{
		sessions: sessions,
		accounts: accounts,
		users:    users,
		roles:    roles,
		tokens:   tokens,
	}
}

// SessionFromToken returns the session id an access token is bound to.
func (s *AccessService) SessionFromToken(token string) (string, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return "", apperrors.WrapError(apperrors.ErrUnauthorized, err)
	}
	return claims.SessionID, nil
}

// Resolve loads the session and everything hanging off it. Sessions whose
// account vanished or was suspended are destroyed.
func (s *AccessService) Resolve(ctx context.Context, sessionID string) (*AuthData, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ResolveSession")

	if sessionID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		logger.ErrorWithContext(ctx, "Session lookup failed").
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.drop(ctx, sessionID, "account missing")
			return nil, apperrors.ErrUnauthorized
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if account.IsSuspended {
		s.drop(ctx, sessionID, "account suspended")
		return nil, apperrors.ErrAccountSuspended
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.drop(ctx, sessionID, "user missing")
			return nil, apperrors.ErrUnauthorized
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if !user.IsActive || user.ID != account.UserID {
		s.drop(ctx, sessionID, "user inactive")
		return nil, apperrors.ErrUnauthorized
	}

	var perms []string
	if account.RoleID != nil {
		perms, err = s.roles.Permissions(ctx, *account.RoleID)
		if err != nil {
			return nil, apperrors.WrapError(apperrors.ErrInternal, err)
		}
	}

	verified := false
	if account.TwoFactorEnabled {
		verified, err = s.sessions.Is2FAVerified(ctx, sessionID)
		if err != nil {
			return nil, apperrors.WrapError(apperrors.ErrInternal, err)
		}
	}

	return &AuthData{
		User:              user,
		Account:           account,
		Session:           session,
		Permissions:       perms,
		TwoFactorVerified: verified,
	}, nil
}

// Authorize applies rule to an already resolved identity.
func (s *AccessService) Authorize(auth *AuthData, rule routing.AccessRule) error {
	if !model.HasPermission(auth.Permissions, rule.Permission) {
		return apperrors.ErrForbidden
	}
	if auth.TwoFactorPending() && !rule.AllowPendingTwoFactor {
		return apperrors.ErrTwoFactorRequired
	}
	if rule.RequiresTwoFactor && !auth.TwoFactorVerified {
		return apperrors.ErrTwoFactorRequired
	}
	return nil
}

func (s *AccessService) drop(ctx context.Context, sessionID, reason string) {
	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		logger.WarnWithContext(ctx, "Failed to destroy invalid session").
			String("reason", reason).
			Err(err).
			Log()
		return
	}
	logger.InfoWithContext(ctx, "Session destroyed").
		Secret("session_id", sessionID).
		String("reason", reason).
		Log()
}
