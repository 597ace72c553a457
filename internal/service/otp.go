package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/config"
	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	apperrors "github.com/Payphone-Digital/marketplace-auth/internal/errors"
	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	"github.com/Payphone-Digital/marketplace-auth/internal/notification"
	"github.com/Payphone-Digital/marketplace-auth/internal/repository"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"github.com/Payphone-Digital/marketplace-auth/pkg/secure"
	"gorm.io/gorm"
)

// CodeTarget is the address a code is sent to. Email wins when both are set
// and the purpose allows either.
type CodeTarget struct {
	Email string
	Phone string
}

func (t CodeTarget) normalized() CodeTarget {
	return CodeTarget{
		Email: strings.ToLower(strings.TrimSpace(t.Email)),
		Phone: strings.TrimSpace(t.Phone),
	}
}

type CodeRequest struct {
	Target    CodeTarget
	Purpose   constants.OTPPurpose
	UserID    *uint
	AccountID *uint
}

type CodeIssued struct {
	Channel   string    `json:"channel"`
	ExpiresAt time.Time `json:"expires_at"`
}

type OTPService struct {
	codes    CodeStore
	throttle Throttle
	sender   CodeSender
	cfg      config.OTPConfig
	now      func() time.Time
}

func NewOTPService(codes CodeStore, throttle Throttle, sender CodeSender, cfg config.OTPConfig) *OTPService {
	return &OTPService{
		codes:    codes,
		throttle: throttle,
		sender:   sender,
		cfg:      cfg,
		now:      time.Now,
	}
}

// resolveChannel picks the delivery channel and address for purpose.
func resolveChannel(purpose constants.OTPPurpose, target CodeTarget) (string, string, error) {
	switch purpose {
	case constants.OTPEmailVerification, constants.OTPTwoFactorEmail:
		if target.Email == "" {
			return "", "", apperrors.ErrContactMissing
		}
		return constants.ChannelEmail, target.Email, nil
	case constants.OTPPhoneVerification, constants.OTPTwoFactorPhone:
		if target.Phone == "" {
			return "", "", apperrors.ErrContactMissing
		}
		return constants.ChannelSMS, target.Phone, nil
	default:
		if target.Email != "" {
			return constants.ChannelEmail, target.Email, nil
		}
		if target.Phone != "" {
			return constants.ChannelSMS, target.Phone, nil
		}
		return "", "", apperrors.ErrContactMissing
	}
}

// RequestCode issues a fresh code for req and dispatches it once.
func (s *OTPService) RequestCode(ctx context.Context, req CodeRequest) (*CodeIssued, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "RequestCode")

	if !req.Purpose.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "unknown code purpose")
	}

	channel, address, err := resolveChannel(req.Purpose, req.Target.normalized())
	if err != nil {
		logger.InfoWithContext(ctx, "Code requested without a contact address").
			String("purpose", string(req.Purpose)).
			Log()
		return nil, err
	}

	acquired, err := s.throttle.AcquireCooldown(ctx, req.Purpose, address, s.cfg.Cooldown)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to check code cooldown").
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if !acquired {
		logger.InfoWithContext(ctx, "Code request inside cooldown").
			String("purpose", string(req.Purpose)).
			String("channel", channel).
			Log()
		return nil, apperrors.ErrRateLimited
	}

	allowed, err := s.throttle.ConsumeQuota(ctx, req.Purpose, address, s.cfg.Quota, s.cfg.QuotaWindow)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to check code quota").
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if !allowed {
		logger.WarnWithContext(ctx, "Code quota exhausted").
			String("purpose", string(req.Purpose)).
			String("channel", channel).
			Log()
		return nil, apperrors.ErrRateLimited
	}

	plain, err := secure.NumericCode(s.cfg.Length)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	now := s.now()
	record := &model.OTPCode{
		UserID:    req.UserID,
		AccountID: req.AccountID,
		Purpose:   req.Purpose,
		Channel:   channel,
		Target:    address,
		CodeHash:  secure.KeyedHash(s.cfg.Pepper, plain),
		Status:    constants.OTPStatusPending,
		ExpiresAt: now.Add(s.cfg.TTL),
	}
	if err := s.codes.Issue(ctx, record); err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	_, err = s.sender.SendCode(ctx, notification.CodeMessage{
		Channel:   channel,
		To:        address,
		Code:      plain,
		Purpose:   req.Purpose,
		ExpiresIn: s.cfg.TTL,
	})
	if err != nil {
		if _, terr := s.codes.Transition(ctx, record.ID, constants.OTPStatusPending, constants.OTPStatusSuperseded); terr != nil {
			logger.ErrorWithContext(ctx, "Failed to retire undelivered code").
				Uint("otp_id", record.ID).
				Err(terr).
				Log()
		}
		if rerr := s.throttle.ReleaseCooldown(ctx, req.Purpose, address); rerr != nil {
			logger.WarnWithContext(ctx, "Failed to release cooldown").
				Err(rerr).
				Log()
		}
		if errors.Is(err, notification.ErrUnavailable) {
			return nil, apperrors.WrapError(apperrors.ErrServiceUnavailable, err)
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "One-time code issued").
		Uint("otp_id", record.ID).
		String("purpose", string(req.Purpose)).
		String("channel", channel).
		Log()

	return &CodeIssued{Channel: channel, ExpiresAt: record.ExpiresAt}, nil
}

// ValidateCode checks and consumes the pending code for an account.
func (s *OTPService) ValidateCode(ctx context.Context, accountID uint, code string, purpose constants.OTPPurpose) error {
	return s.validate(ctx, repository.CodeLookup{Purpose: purpose, AccountID: &accountID}, "", code)
}

// ValidateAccountCode is ValidateCode restricted to codes sent to address.
func (s *OTPService) ValidateAccountCode(ctx context.Context, accountID uint, address, code string, purpose constants.OTPPurpose) error {
	return s.validate(ctx, repository.CodeLookup{Purpose: purpose, AccountID: &accountID}, address, code)
}

// ValidateTargetCode checks and consumes a code issued to an address with no
// account attached.
func (s *OTPService) ValidateTargetCode(ctx context.Context, target CodeTarget, code string, purpose constants.OTPPurpose) error {
	_, address, err := resolveChannel(purpose, target.normalized())
	if err != nil {
		return err
	}
	return s.validate(ctx, repository.CodeLookup{Purpose: purpose, Target: address}, "", code)
}

func (s *OTPService) validate(ctx context.Context, lookup repository.CodeLookup, address, code string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "ValidateCode")

	record, err := s.codes.FindPending(ctx, lookup)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.InfoWithContext(ctx, "No pending code").
				String("purpose", string(lookup.Purpose)).
				Log()
			return apperrors.ErrCodeInvalid
		}
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	now := s.now()
	if record.Expired(now) {
		if _, err := s.codes.Transition(ctx, record.ID, constants.OTPStatusPending, constants.OTPStatusExpired); err != nil {
			logger.WarnWithContext(ctx, "Failed to mark code expired").
				Uint("otp_id", record.ID).
				Err(err).
				Log()
		}
		return apperrors.ErrCodeExpired
	}

	if address != "" && !strings.EqualFold(record.Target, strings.TrimSpace(address)) {
		logger.WarnWithContext(ctx, "Code was issued to another address").
			Uint("otp_id", record.ID).
			Log()
		return apperrors.ErrCodeInvalid
	}

	if !secure.Equal(record.CodeHash, secure.KeyedHash(s.cfg.Pepper, strings.TrimSpace(code))) {
		if err := s.codes.RecordFailedAttempt(ctx, record.ID, s.cfg.MaxAttempts); err != nil {
			logger.ErrorWithContext(ctx, "Failed to record code attempt").
				Uint("otp_id", record.ID).
				Err(err).
				Log()
		}
		logger.InfoWithContext(ctx, "Code mismatch").
			Uint("otp_id", record.ID).
			Int("attempts", record.Attempts+1).
			Log()
		return apperrors.ErrCodeInvalid
	}

	consumed, err := s.codes.Consume(ctx, record.ID, now)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if !consumed {
		return apperrors.ErrCodeInvalid
	}

	logger.InfoWithContext(ctx, "Code verified").
		Uint("otp_id", record.ID).
		String("purpose", string(lookup.Purpose)).
		Log()

	return nil
}
