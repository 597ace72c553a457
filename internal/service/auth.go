package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"github.com/Payphone-Digital/marketplace-auth/internal/dto"
	apperrors "github.com/Payphone-Digital/marketplace-auth/internal/errors"
	"github.com/Payphone-Digital/marketplace-auth/internal/event"
	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	"github.com/Payphone-Digital/marketplace-auth/internal/repository"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"github.com/Payphone-Digital/marketplace-auth/pkg/secure"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthConfig carries the settings the auth flows depend on.
type AuthConfig struct {
	BcryptCost                 int
	SessionTTL                 time.Duration
	RememberMeTTL              time.Duration
	SendVerificationOnRegister bool
}

// RequestMeta describes the client a session is created for.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// AuthResult is returned by every flow that creates or rotates a session.
// The plain tokens exist only here; the store keeps their hashes.
type AuthResult struct {
	User              *model.User
	Account           *model.Account
	Session           *model.Session
	AccessToken       string
	RefreshToken      string
	CSRFToken         string
	TwoFactorRequired bool
	TwoFactorChannel  string
}

type AuthService struct {
	users    UserStore
	accounts AccountStore
	sessions SessionStore
	otp      *OTPService
	tokens   *TokenService
	events   event.Publisher
	cfg      AuthConfig
	now      func() time.Time

	checkPassword func(hashed, password string) bool
	dummyOnce     sync.Once
	dummyHash     string
}

func NewAuthService(users UserStore, accounts AccountStore, sessions SessionStore, otp *OTPService, tokens *TokenService, events event.Publisher, cfg AuthConfig) *AuthService {
	if events == nil {
		events = event.NopPublisher{}
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:    users,
		accounts: accounts,
		sessions: sessions,
		otp:      otp,
		tokens:   tokens,
		events:   events,
		cfg:      cfg,
		now:      time.Now,

		checkPassword: comparePassword,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func comparePassword(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

// burnPassword spends one comparison against a throwaway hash at the
// configured cost so failed logins take the same time whether or not the
// user exists.
func (s *AuthService) burnPassword(password string) {
	s.dummyOnce.Do(func() {
		hashed, err := s.hashPassword("not-a-user-password")
		if err != nil {
			return
		}
		s.dummyHash = hashed
	})
	if s.dummyHash != "" {
		s.checkPassword(s.dummyHash, password)
	}
}

func (s *AuthService) publish(ctx context.Context, evt event.Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		logger.WarnWithContext(ctx, "Failed to publish auth event").
			String("event_type", evt.Type).
			Err(err).
			Log()
	}
}

func (s *AuthService) sessionTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return s.cfg.RememberMeTTL
	}
	return s.cfg.SessionTTL
}

// startSession creates the session record and the tokens that go with it.
func (s *AuthService) startSession(ctx context.Context, user *model.User, account *model.Account, rememberMe bool, meta RequestMeta) (*AuthResult, error) {
	refreshToken, err := secure.RandomToken(32)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	csrfToken, err := secure.RandomToken(32)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	session, err := s.sessions.Create(ctx, account.ID, model.SessionMetadata{
		UserID:           user.ID,
		IP:               meta.IP,
		UserAgent:        meta.UserAgent,
		RememberMe:       rememberMe,
		RefreshTokenHash: secure.HashToken(refreshToken),
		CSRFTokenHash:    secure.HashToken(csrfToken),
	}, s.sessionTTL(rememberMe))
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to create session").
			Uint("account_id", account.ID).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	accessToken, err := s.tokens.Issue(session)
	if err != nil {
		_ = s.sessions.Destroy(ctx, session.ID)
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	return &AuthResult{
		User:         user,
		Account:      account,
		Session:      session,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		CSRFToken:    csrfToken,
	}, nil
}

// Register creates the user with a default personal account and signs it in.
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest, meta RequestMeta) (*AuthResult, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "Register")

	email := normalizeEmail(req.Email)
	phone := strings.TrimSpace(req.Phone)
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	if email == "" || firstName == "" || lastName == "" || req.Password == "" {
		return nil, apperrors.ErrValidation
	}

	logger.InfoWithContext(ctx, "Registering user").
		String("email", email).
		Log()

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		logger.InfoWithContext(ctx, "Registration rejected: email taken").
			String("email", email).
			Log()
		return nil, apperrors.ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if phone != "" {
		if _, err := s.users.GetByPhone(ctx, phone); err == nil {
			return nil, apperrors.ErrPhoneTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WrapError(apperrors.ErrInternal, err)
		}
	}

	hashed, err := s.hashPassword(req.Password)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to hash password").
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	user := &model.User{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: hashed,
		IsActive:     true,
	}
	if phone != "" {
		user.Phone = &phone
	}
	account := &model.Account{
		Name:      firstName + " " + lastName,
		Kind:      constants.AccountKindPersonal,
		IsDefault: true,
	}

	if err := s.users.CreateWithAccount(ctx, user, account); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrEmailTaken
		}
		logger.ErrorWithContext(ctx, "Failed to create user").
			String("email", email).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	result, err := s.startSession(ctx, user, account, false, meta)
	if err != nil {
		return nil, err
	}

	if s.cfg.SendVerificationOnRegister {
		if _, err := s.otp.RequestCode(ctx, CodeRequest{
			Target:    CodeTarget{Email: email},
			Purpose:   constants.OTPEmailVerification,
			UserID:    &user.ID,
			AccountID: &account.ID,
		}); err != nil {
			logger.WarnWithContext(ctx, "Verification code not sent after registration").
				Uint("user_id", user.ID).
				Err(err).
				Log()
		}
	}

	logger.InfoWithContext(ctx, "User registered").
		Uint("user_id", user.ID).
		Uint("account_id", account.ID).
		Log()

	s.publish(ctx, event.Event{Type: event.TypeRegistered, UserID: user.ID, AccountID: account.ID, IP: meta.IP, UserAgent: meta.UserAgent})

	return result, nil
}

// Login checks credentials and opens a session on the chosen account.
// Accounts with 2FA get a code dispatched and a session in the pending state.
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest, meta RequestMeta) (*AuthResult, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "Login")
	email := normalizeEmail(req.Email)

	fail := func(reason string, userID uint) {
		logger.LogAuth(email, "login", false)
		logger.InfoWithContext(ctx, "Login failed").
			String("reason", reason).
			Log()
		s.publish(ctx, event.Event{
			Type:       event.TypeLoginFailed,
			UserID:     userID,
			IP:         meta.IP,
			UserAgent:  meta.UserAgent,
			Attributes: map[string]string{"reason": reason},
		})
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.burnPassword(req.Password)
			fail("unknown_email", 0)
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	passwordOK := s.checkPassword(user.PasswordHash, req.Password)
	if !user.IsActive {
		fail("inactive_user", user.ID)
		return nil, apperrors.ErrInvalidCredentials
	}
	if !passwordOK {
		fail("wrong_password", user.ID)
		return nil, apperrors.ErrInvalidCredentials
	}

	var account *model.Account
	if req.AccountID != nil {
		account, err = s.accounts.GetByID(ctx, *req.AccountID)
		if err == nil && account.UserID != user.ID {
			err = gorm.ErrRecordNotFound
		}
	} else {
		account, err = s.accounts.GetDefaultForUser(ctx, user.ID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail("account_not_found", user.ID)
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if account.IsSuspended {
		fail("account_suspended", user.ID)
		return nil, apperrors.ErrAccountSuspended
	}

	result, err := s.startSession(ctx, user, account, req.RememberMe, meta)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		logger.WarnWithContext(ctx, "Failed to update last login timestamp").
			Uint("user_id", user.ID).
			Err(err).
			Log()
	} else {
		user.LastLoginAt = &now
	}

	if account.TwoFactorEnabled {
		result.TwoFactorRequired = true
		issued, err := s.sendTwoFactorCode(ctx, user, account)
		if err != nil {
			logger.WarnWithContext(ctx, "Two-factor code not sent at login").
				Uint("account_id", account.ID).
				Err(err).
				Log()
		} else {
			result.TwoFactorChannel = issued.Channel
		}
	}

	logger.LogAuth(email, "login", true)
	s.publish(ctx, event.Event{Type: event.TypeLoginSucceeded, UserID: user.ID, AccountID: account.ID, IP: meta.IP, UserAgent: meta.UserAgent})

	return result, nil
}

func twoFactorPurpose(account *model.Account) constants.OTPPurpose {
	if account.TwoFactorMethod == constants.TwoFactorMethodPhone {
		return constants.OTPTwoFactorPhone
	}
	return constants.OTPTwoFactorEmail
}

func (s *AuthService) sendTwoFactorCode(ctx context.Context, user *model.User, account *model.Account) (*CodeIssued, error) {
	return s.otp.RequestCode(ctx, CodeRequest{
		Target:    CodeTarget{Email: user.Email, Phone: user.PhoneNumber()},
		Purpose:   twoFactorPurpose(account),
		UserID:    &user.ID,
		AccountID: &account.ID,
	})
}

// RequestTwoFactorCode re-sends the second factor for the current session.
func (s *AuthService) RequestTwoFactorCode(ctx context.Context, auth *AuthData) (*CodeIssued, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "RequestTwoFactorCode")

	if !auth.Account.TwoFactorEnabled {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "two-factor authentication is not enabled")
	}
	return s.sendTwoFactorCode(ctx, auth.User, auth.Account)
}

// Validate2FA marks the session as having passed the second factor. A session
// that already passed is left alone and no code is consumed.
func (s *AuthService) Validate2FA(ctx context.Context, sessionID string, accountID uint, code string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "Validate2FA")

	verified, err := s.sessions.Is2FAVerified(ctx, sessionID)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if verified {
		return nil
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUnauthorized
		}
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if err := s.otp.ValidateCode(ctx, accountID, code, twoFactorPurpose(account)); err != nil {
		return err
	}

	if err := s.sessions.Set2FAVerified(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return apperrors.ErrUnauthorized
		}
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Two-factor verification completed").
		Uint("account_id", accountID).
		Log()
	s.publish(ctx, event.Event{Type: event.TypeTwoFactorVerified, UserID: account.UserID, AccountID: accountID})

	return nil
}

// Logout destroys the session. It never fails: problems are logged.
func (s *AuthService) Logout(ctx context.Context, sessionID string) {
	ctx = ctxutil.WithFunction(ctx, "service", "Logout")

	if sessionID == "" {
		return
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		logger.WarnWithContext(ctx, "Session lookup failed during logout").
			Err(err).
			Log()
	}

	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		logger.WarnWithContext(ctx, "Failed to destroy session during logout").
			Err(err).
			Log()
		return
	}

	if session != nil {
		s.publish(ctx, event.Event{Type: event.TypeLogout, UserID: session.UserID, AccountID: session.AccountID})
	}
}

// LogoutAll ends every other session of the current account.
func (s *AuthService) LogoutAll(ctx context.Context, auth *AuthData) (int, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "LogoutAll")

	removed, err := s.sessions.DestroyAllForAccount(ctx, auth.Account.ID, auth.Session.ID)
	if err != nil {
		return 0, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Other sessions destroyed").
		Int("removed", removed).
		Log()
	return removed, nil
}

// Refresh rotates the refresh and CSRF tokens and slides the session expiry.
// A refresh token that does not match destroys the session.
func (s *AuthService) Refresh(ctx context.Context, sessionID, refreshToken string, meta RequestMeta) (*AuthResult, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "Refresh")

	if sessionID == "" || refreshToken == "" {
		return nil, apperrors.ErrUnauthorized
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if !secure.Equal(session.RefreshTokenHash, secure.HashToken(refreshToken)) {
		logger.WarnWithContext(ctx, "Refresh token mismatch, destroying session").
			Uint("account_id", session.AccountID).
			String("ip", meta.IP).
			Log()
		_ = s.sessions.Destroy(ctx, sessionID)
		return nil, apperrors.ErrUnauthorized
	}

	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = s.sessions.Destroy(ctx, sessionID)
			return nil, apperrors.ErrUnauthorized
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if account.IsSuspended {
		_ = s.sessions.Destroy(ctx, sessionID)
		return nil, apperrors.ErrAccountSuspended
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil || !user.IsActive {
		_ = s.sessions.Destroy(ctx, sessionID)
		return nil, apperrors.ErrUnauthorized
	}

	newRefresh, err := secure.RandomToken(32)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	newCSRF, err := secure.RandomToken(32)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	session.RefreshTokenHash = secure.HashToken(newRefresh)
	session.CSRFTokenHash = secure.HashToken(newCSRF)
	if err := s.sessions.Update(ctx, session); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	extended, err := s.sessions.Extend(ctx, sessionID, s.sessionTTL(session.RememberMe))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	accessToken, err := s.tokens.Issue(extended)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.DebugWithContext(ctx, "Session refreshed").
		Uint("account_id", account.ID).
		Time("expires_at", extended.ExpiresAt).
		Log()

	return &AuthResult{
		User:         user,
		Account:      account,
		Session:      extended,
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		CSRFToken:    newCSRF,
	}, nil
}

func (s *AuthService) findUserByTarget(ctx context.Context, target CodeTarget) (*model.User, error) {
	target = target.normalized()
	switch {
	case target.Email != "":
		return s.users.GetByEmail(ctx, target.Email)
	case target.Phone != "":
		return s.users.GetByPhone(ctx, target.Phone)
	default:
		return nil, apperrors.ErrContactMissing
	}
}

// RequestPasswordReset sends a reset code when the address belongs to a
// user. Unknown addresses succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, target CodeTarget) error {
	ctx = ctxutil.WithFunction(ctx, "service", "RequestPasswordReset")

	user, err := s.findUserByTarget(ctx, target)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.InfoWithContext(ctx, "Password reset requested for unknown address").
				Log()
			return nil
		}
		if apperrors.IsDomainError(err) {
			return err
		}
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if !user.IsActive {
		return nil
	}

	_, err = s.otp.RequestCode(ctx, CodeRequest{
		Target:  target,
		Purpose: constants.OTPPasswordReset,
		UserID:  &user.ID,
	})
	return err
}

// VerifyAndResetPassword consumes a reset code, replaces the password and
// ends every session the user holds.
func (s *AuthService) VerifyAndResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	ctx = ctxutil.WithFunction(ctx, "service", "VerifyAndResetPassword")

	target := CodeTarget{Email: req.Email, Phone: req.Phone}.normalized()
	if target.Email != "" {
		target.Phone = ""
	}

	user, err := s.findUserByTarget(ctx, target)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrCodeInvalid
		}
		if apperrors.IsDomainError(err) {
			return err
		}
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if err := s.otp.ValidateTargetCode(ctx, target, req.Code, constants.OTPPasswordReset); err != nil {
		return err
	}

	hashed, err := s.hashPassword(req.Password)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hashed); err != nil {
		logger.ErrorWithContext(ctx, "Failed to store new password").
			Uint("user_id", user.ID).
			Err(err).
			Log()
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	now := s.now()
	if target.Email != "" && !user.EmailVerified() {
		if err := s.users.MarkEmailVerified(ctx, user.ID, now); err != nil {
			logger.WarnWithContext(ctx, "Failed to mark email verified after reset").
				Err(err).
				Log()
		}
	}
	if target.Phone != "" && !user.PhoneVerified() {
		if err := s.users.MarkPhoneVerified(ctx, user.ID, now); err != nil {
			logger.WarnWithContext(ctx, "Failed to mark phone verified after reset").
				Err(err).
				Log()
		}
	}

	s.destroyUserSessions(ctx, user.ID, "")

	logger.InfoWithContext(ctx, "Password reset completed").
		Uint("user_id", user.ID).
		Log()
	s.publish(ctx, event.Event{Type: event.TypePasswordReset, UserID: user.ID})

	return nil
}

// destroyUserSessions ends sessions on every account of the user except keepID.
func (s *AuthService) destroyUserSessions(ctx context.Context, userID uint, keepID string) {
	accounts, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to list accounts for session cleanup").
			Uint("user_id", userID).
			Err(err).
			Log()
		return
	}
	for _, account := range accounts {
		removed, err := s.sessions.DestroyAllForAccount(ctx, account.ID, keepID)
		if err != nil {
			logger.ErrorWithContext(ctx, "Failed to destroy account sessions").
				Uint("account_id", account.ID).
				Err(err).
				Log()
			continue
		}
		logger.DebugWithContext(ctx, "Account sessions destroyed").
			Uint("account_id", account.ID).
			Int("removed", removed).
			Log()
	}
}

func verificationPurpose(channel string) (constants.OTPPurpose, error) {
	switch channel {
	case constants.ChannelEmail:
		return constants.OTPEmailVerification, nil
	case constants.ChannelSMS:
		return constants.OTPPhoneVerification, nil
	default:
		return "", apperrors.WithMessage(apperrors.ErrValidation, "unsupported channel")
	}
}

// RequestVerificationCode sends a verification code to the user's current
// address on channel, or to newAddress when one is given.
func (s *AuthService) RequestVerificationCode(ctx context.Context, auth *AuthData, channel, newAddress string) (*CodeIssued, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "RequestVerificationCode")

	purpose, err := verificationPurpose(channel)
	if err != nil {
		return nil, err
	}

	target := CodeTarget{Email: auth.User.Email, Phone: auth.User.PhoneNumber()}
	if newAddress != "" {
		if err := s.ensureAddressFree(ctx, auth.User.ID, channel, newAddress); err != nil {
			return nil, err
		}
		if channel == constants.ChannelEmail {
			target = CodeTarget{Email: newAddress}
		} else {
			target = CodeTarget{Phone: newAddress}
		}
	}

	return s.otp.RequestCode(ctx, CodeRequest{
		Target:    target,
		Purpose:   purpose,
		UserID:    &auth.User.ID,
		AccountID: &auth.Account.ID,
	})
}

// VerifyContact confirms the user's current address on channel.
func (s *AuthService) VerifyContact(ctx context.Context, auth *AuthData, channel, code string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "VerifyContact")

	purpose, err := verificationPurpose(channel)
	if err != nil {
		return err
	}

	address := auth.User.Email
	if channel == constants.ChannelSMS {
		address = auth.User.PhoneNumber()
	}
	if address == "" {
		return apperrors.ErrContactMissing
	}

	if err := s.otp.ValidateAccountCode(ctx, auth.Account.ID, address, code, purpose); err != nil {
		return err
	}

	now := s.now()
	if channel == constants.ChannelEmail {
		err = s.users.MarkEmailVerified(ctx, auth.User.ID, now)
	} else {
		err = s.users.MarkPhoneVerified(ctx, auth.User.ID, now)
	}
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Contact verified").
		String("channel", channel).
		Log()
	return nil
}

func (s *AuthService) ensureAddressFree(ctx context.Context, userID uint, channel, address string) error {
	var (
		owner *model.User
		err   error
		taken = apperrors.ErrEmailTaken
	)
	if channel == constants.ChannelEmail {
		owner, err = s.users.GetByEmail(ctx, normalizeEmail(address))
	} else {
		owner, err = s.users.GetByPhone(ctx, strings.TrimSpace(address))
		taken = apperrors.ErrPhoneTaken
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if owner.ID != userID {
		return taken
	}
	return nil
}

// UpdateContactInfo replaces the email or phone with an address proven by a
// code issued to it for this account. The new address is stored verified.
func (s *AuthService) UpdateContactInfo(ctx context.Context, auth *AuthData, req *dto.UpdateContactRequest) error {
	ctx = ctxutil.WithFunction(ctx, "service", "UpdateContactInfo")

	email := normalizeEmail(req.Email)
	phone := strings.TrimSpace(req.Phone)
	if (email == "") == (phone == "") {
		return apperrors.WithMessage(apperrors.ErrValidation, "provide exactly one of email or phone")
	}

	channel, address, purpose, taken := constants.ChannelEmail, email, constants.OTPEmailVerification, apperrors.ErrEmailTaken
	if phone != "" {
		channel, address, purpose, taken = constants.ChannelSMS, phone, constants.OTPPhoneVerification, apperrors.ErrPhoneTaken
	}

	if err := s.ensureAddressFree(ctx, auth.User.ID, channel, address); err != nil {
		return err
	}

	if err := s.otp.ValidateAccountCode(ctx, auth.Account.ID, address, req.Code, purpose); err != nil {
		return err
	}

	now := s.now()
	var err error
	if channel == constants.ChannelEmail {
		err = s.users.SetEmail(ctx, auth.User.ID, address, now)
	} else {
		err = s.users.SetPhone(ctx, auth.User.ID, address, now)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return taken
		}
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Contact information updated").
		String("channel", channel).
		Log()
	s.publish(ctx, event.Event{
		Type:       event.TypeContactUpdated,
		UserID:     auth.User.ID,
		AccountID:  auth.Account.ID,
		Attributes: map[string]string{"channel": channel},
	})

	return nil
}

// ChangePassword replaces the password after checking the current one and
// ends the user's other sessions.
func (s *AuthService) ChangePassword(ctx context.Context, auth *AuthData, current, next string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "ChangePassword")

	user, err := s.users.GetByID(ctx, auth.User.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if !s.checkPassword(user.PasswordHash, current) {
		logger.WarnWithContext(ctx, "Current password verification failed").
			Log()
		return apperrors.ErrIncorrectPassword
	}

	hashed, err := s.hashPassword(next)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hashed); err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	s.destroyUserSessions(ctx, user.ID, auth.Session.ID)

	logger.InfoWithContext(ctx, "Password changed").
		Log()
	return nil
}

// twoFactorSetup resolves the purpose and address a second factor with
// method would use for this user.
func twoFactorSetup(user *model.User, method string) (constants.OTPPurpose, CodeTarget, error) {
	switch method {
	case constants.TwoFactorMethodEmail:
		return constants.OTPTwoFactorEmail, CodeTarget{Email: user.Email}, nil
	case constants.TwoFactorMethodPhone:
		if user.PhoneNumber() == "" {
			return "", CodeTarget{}, apperrors.ErrContactMissing
		}
		return constants.OTPTwoFactorPhone, CodeTarget{Phone: user.PhoneNumber()}, nil
	default:
		return "", CodeTarget{}, apperrors.WithMessage(apperrors.ErrValidation, "unsupported two-factor method")
	}
}

// EnableTwoFactor starts enrolment by sending a code over method. Nothing
// changes on the account until ConfirmTwoFactor accepts that code.
func (s *AuthService) EnableTwoFactor(ctx context.Context, auth *AuthData, method string) (*CodeIssued, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "EnableTwoFactor")

	if auth.Account.TwoFactorEnabled {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "two-factor authentication is already enabled")
	}

	purpose, target, err := twoFactorSetup(auth.User, method)
	if err != nil {
		return nil, err
	}

	return s.otp.RequestCode(ctx, CodeRequest{
		Target:    target,
		Purpose:   purpose,
		UserID:    &auth.User.ID,
		AccountID: &auth.Account.ID,
	})
}

// ConfirmTwoFactor finishes enrolment. The session that proved the code is
// marked as having passed the second factor.
func (s *AuthService) ConfirmTwoFactor(ctx context.Context, auth *AuthData, method, code string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "ConfirmTwoFactor")

	purpose, target, err := twoFactorSetup(auth.User, method)
	if err != nil {
		return err
	}

	target = target.normalized()
	address := target.Email
	if address == "" {
		address = target.Phone
	}
	if err := s.otp.ValidateAccountCode(ctx, auth.Account.ID, address, code, purpose); err != nil {
		return err
	}

	if err := s.accounts.SetTwoFactor(ctx, auth.Account.ID, true, method); err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if err := s.sessions.Set2FAVerified(ctx, auth.Session.ID); err != nil {
		logger.WarnWithContext(ctx, "Failed to flag session after enabling 2FA").
			Err(err).
			Log()
	}

	logger.InfoWithContext(ctx, "Two-factor authentication enabled").
		String("method", method).
		Log()
	s.publish(ctx, event.Event{Type: event.TypeTwoFactorVerified, UserID: auth.User.ID, AccountID: auth.Account.ID})
	return nil
}

func (s *AuthService) DisableTwoFactor(ctx context.Context, auth *AuthData) error {
	ctx = ctxutil.WithFunction(ctx, "service", "DisableTwoFactor")

	if err := s.accounts.SetTwoFactor(ctx, auth.Account.ID, false, ""); err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Two-factor authentication disabled").
		Log()
	return nil
}
