package service

import (
	"context"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	"github.com/Payphone-Digital/marketplace-auth/internal/notification"
	"github.com/Payphone-Digital/marketplace-auth/internal/repository"
)

// UserStore is satisfied by repository.UserRepository.
type UserStore interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByPhone(ctx context.Context, phone string) (*model.User, error)
	CreateWithAccount(ctx context.Context, user *model.User, account *model.Account) error
	UpdateProfile(ctx context.Context, id uint, firstName, lastName string) error
	UpdatePassword(ctx context.Context, id uint, passwordHash string) error
	SetEmail(ctx context.Context, id uint, email string, verifiedAt time.Time) error
	SetPhone(ctx context.Context, id uint, phone string, verifiedAt time.Time) error
	MarkEmailVerified(ctx context.Context, id uint, at time.Time) error
	MarkPhoneVerified(ctx context.Context, id uint, at time.Time) error
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

// AccountStore is satisfied by repository.AccountRepository.
type AccountStore interface {
	GetByID(ctx context.Context, id uint) (*model.Account, error)
	GetDefaultForUser(ctx context.Context, userID uint) (*model.Account, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Account, error)
	SetSuspended(ctx context.Context, id uint, suspended bool, reason string, at time.Time) error
	SetTwoFactor(ctx context.Context, id uint, enabled bool, method string) error
}

// RoleStore is satisfied by repository.RoleRepository.
type RoleStore interface {
	GetByID(ctx context.Context, id uint) (*model.Role, error)
	GetByName(ctx context.Context, name string) (*model.Role, error)
	List(ctx context.Context, limit, offset int) ([]model.Role, int64, error)
	Create(ctx context.Context, role *model.Role) error
}

// CodeStore is satisfied by repository.OTPRepository.
type CodeStore interface {
	Issue(ctx context.Context, code *model.OTPCode) error
	FindPending(ctx context.Context, lookup repository.CodeLookup) (*model.OTPCode, error)
	RecordFailedAttempt(ctx context.Context, id uint, maxAttempts int) error
	Transition(ctx context.Context, id uint, from, to string) (bool, error)
	Consume(ctx context.Context, id uint, at time.Time) (bool, error)
}

// SessionStore is satisfied by repository.SessionStore.
type SessionStore interface {
	Create(ctx context.Context, accountID uint, meta model.SessionMetadata, ttl time.Duration) (*model.Session, error)
	Get(ctx context.Context, id string) (*model.Session, error)
	Destroy(ctx context.Context, id string) error
	Extend(ctx context.Context, id string, ttl time.Duration) (*model.Session, error)
	Update(ctx context.Context, session *model.Session) error
	Set2FAVerified(ctx context.Context, id string) error
	Is2FAVerified(ctx context.Context, id string) (bool, error)
	ListByAccount(ctx context.Context, accountID uint) ([]model.Session, error)
	DestroyAllForAccount(ctx context.Context, accountID uint, exceptID string) (int, error)
}

// Throttle is satisfied by repository.RateLimitStore.
type Throttle interface {
	AcquireCooldown(ctx context.Context, purpose constants.OTPPurpose, target string, cooldown time.Duration) (bool, error)
	ReleaseCooldown(ctx context.Context, purpose constants.OTPPurpose, target string) error
	ConsumeQuota(ctx context.Context, purpose constants.OTPPurpose, target string, limit int, window time.Duration) (bool, error)
}

// CodeSender is satisfied by notification.Dispatcher.
type CodeSender interface {
	SendCode(ctx context.Context, msg notification.CodeMessage) (string, error)
}
