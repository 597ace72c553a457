package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/config"
	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	"github.com/Payphone-Digital/marketplace-auth/internal/notification"
	"github.com/Payphone-Digital/marketplace-auth/internal/repository"
	"github.com/Payphone-Digital/marketplace-auth/pkg/cache"
	pkgredis "github.com/Payphone-Digital/marketplace-auth/pkg/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type memUsers struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*model.User
	accs   *memAccounts
}

func newMemUsers(accs *memAccounts) *memUsers {
	return &memUsers{byID: map[uint]*model.User{}, accs: accs}
}

func (m *memUsers) clone(u *model.User) *model.User {
	c := *u
	return &c
}

func (m *memUsers) GetByID(ctx context.Context, id uint) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return m.clone(u), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return m.clone(u), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.PhoneNumber() == phone {
			return m.clone(u), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) CreateWithAccount(ctx context.Context, user *model.User, account *model.Account) error {
	m.mu.Lock()
	for _, u := range m.byID {
		if u.Email == user.Email {
			m.mu.Unlock()
			return gorm.ErrDuplicatedKey
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	m.byID[user.ID] = m.clone(user)
	m.mu.Unlock()

	account.UserID = user.ID
	m.accs.add(account)
	return nil
}

func (m *memUsers) mutate(id uint, fn func(u *model.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	fn(u)
	return nil
}

func (m *memUsers) UpdateProfile(ctx context.Context, id uint, firstName, lastName string) error {
	return m.mutate(id, func(u *model.User) { u.FirstName, u.LastName = firstName, lastName })
}

func (m *memUsers) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	return m.mutate(id, func(u *model.User) { u.PasswordHash = passwordHash })
}

func (m *memUsers) SetEmail(ctx context.Context, id uint, email string, verifiedAt time.Time) error {
	return m.mutate(id, func(u *model.User) { u.Email, u.EmailVerifiedAt = email, &verifiedAt })
}

func (m *memUsers) SetPhone(ctx context.Context, id uint, phone string, verifiedAt time.Time) error {
	return m.mutate(id, func(u *model.User) { u.Phone, u.PhoneVerifiedAt = &phone, &verifiedAt })
}

func (m *memUsers) MarkEmailVerified(ctx context.Context, id uint, at time.Time) error {
	return m.mutate(id, func(u *model.User) { u.EmailVerifiedAt = &at })
}

func (m *memUsers) MarkPhoneVerified(ctx context.Context, id uint, at time.Time) error {
	return m.mutate(id, func(u *model.User) { u.PhoneVerifiedAt = &at })
}

func (m *memUsers) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return m.mutate(id, func(u *model.User) { u.LastLoginAt = &at })
}

type memAccounts struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*model.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[uint]*model.Account{}}
}

func (m *memAccounts) add(account *model.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	account.ID = m.nextID
	c := *account
	m.byID[account.ID] = &c
}

func (m *memAccounts) GetByID(ctx context.Context, id uint) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.byID[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memAccounts) GetDefaultForUser(ctx context.Context, userID uint) (*model.Account, error) {
	accounts, _ := m.ListByUser(ctx, userID)
	for i := range accounts {
		if accounts[i].IsDefault {
			return &accounts[i], nil
		}
	}
	if len(accounts) > 0 {
		return &accounts[0], nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memAccounts) ListByUser(ctx context.Context, userID uint) ([]model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Account
	for id := uint(1); id <= m.nextID; id++ {
		if a, ok := m.byID[id]; ok && a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAccounts) SetSuspended(ctx context.Context, id uint, suspended bool, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.IsSuspended, a.SuspendReason = suspended, reason
	return nil
}

func (m *memAccounts) SetTwoFactor(ctx context.Context, id uint, enabled bool, method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.TwoFactorEnabled, a.TwoFactorMethod = enabled, method
	return nil
}

type memRoles struct {
	roles map[uint]*model.Role
	gets  int
}

func (m *memRoles) GetByID(ctx context.Context, id uint) (*model.Role, error) {
	m.gets++
	if r, ok := m.roles[id]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memRoles) GetByName(ctx context.Context, name string) (*model.Role, error) {
	for _, r := range m.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memRoles) List(ctx context.Context, limit, offset int) ([]model.Role, int64, error) {
	var out []model.Role
	for _, r := range m.roles {
		out = append(out, *r)
	}
	return out, int64(len(out)), nil
}

func (m *memRoles) Create(ctx context.Context, role *model.Role) error {
	role.ID = uint(len(m.roles) + 1)
	m.roles[role.ID] = role
	return nil
}

type memCodes struct {
	mu     sync.Mutex
	nextID uint
	codes  []*model.OTPCode
}

func (m *memCodes) matches(c *model.OTPCode, lookup repository.CodeLookup) bool {
	if c.Purpose != lookup.Purpose || c.Status != constants.OTPStatusPending {
		return false
	}
	if lookup.AccountID != nil {
		return c.AccountID != nil && *c.AccountID == *lookup.AccountID
	}
	return c.AccountID == nil && c.Target == lookup.Target
}

func (m *memCodes) Issue(ctx context.Context, code *model.OTPCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lookup := repository.CodeLookup{Purpose: code.Purpose, AccountID: code.AccountID, Target: code.Target}
	for _, c := range m.codes {
		if m.matches(c, lookup) {
			c.Status = constants.OTPStatusSuperseded
		}
	}
	m.nextID++
	code.ID = m.nextID
	c := *code
	m.codes = append(m.codes, &c)
	return nil
}

func (m *memCodes) FindPending(ctx context.Context, lookup repository.CodeLookup) (*model.OTPCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.codes) - 1; i >= 0; i-- {
		if m.matches(m.codes[i], lookup) {
			c := *m.codes[i]
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memCodes) get(id uint) *model.OTPCode {
	for _, c := range m.codes {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (m *memCodes) RecordFailedAttempt(ctx context.Context, id uint, maxAttempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.get(id)
	c.Attempts++
	if c.Attempts >= maxAttempts {
		c.Status = constants.OTPStatusLocked
	}
	return nil
}

func (m *memCodes) Transition(ctx context.Context, id uint, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.get(id)
	if c == nil || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (m *memCodes) Consume(ctx context.Context, id uint, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.get(id)
	if c == nil || c.Status != constants.OTPStatusPending {
		return false, nil
	}
	c.Status = constants.OTPStatusUsed
	c.ConsumedAt = &at
	return true, nil
}

func (m *memCodes) status(id uint) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id).Status
}

// openThrottle never limits.
type openThrottle struct{}

func (openThrottle) AcquireCooldown(context.Context, constants.OTPPurpose, string, time.Duration) (bool, error) {
	return true, nil
}

func (openThrottle) ReleaseCooldown(context.Context, constants.OTPPurpose, string) error { return nil }

func (openThrottle) ConsumeQuota(context.Context, constants.OTPPurpose, string, int, time.Duration) (bool, error) {
	return true, nil
}

type captureSender struct {
	mu   sync.Mutex
	sent []notification.CodeMessage
	err  error
}

func (c *captureSender) SendCode(ctx context.Context, msg notification.CodeMessage) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.sent = append(c.sent, msg)
	return "msg", nil
}

func (c *captureSender) last(t *testing.T) notification.CodeMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.sent, "no code was dispatched")
	return c.sent[len(c.sent)-1]
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

var testOTPConfig = config.OTPConfig{
	Length:      6,
	TTL:         10 * time.Minute,
	MaxAttempts: 3,
	Cooldown:    time.Minute,
	Quota:       5,
	QuotaWindow: time.Hour,
	Pepper:      "pepper",
}

type testEnv struct {
	mr       *miniredis.Miniredis
	users    *memUsers
	accounts *memAccounts
	roles    *memRoles
	codes    *memCodes
	sessions *repository.SessionStore
	sender   *captureSender
	otp      *OTPService
	tokens   *TokenService
	auth     *AuthService
	access   *AccessService
	staff    *StaffService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	accounts := newMemAccounts()
	users := newMemUsers(accounts)
	roles := &memRoles{roles: map[uint]*model.Role{}}
	codes := &memCodes{}
	sender := &captureSender{}
	sessions := repository.NewSessionStore(pkgredis.NewFromRedis(rdb))

	otp := NewOTPService(codes, openThrottle{}, sender, testOTPConfig)
	tokens := NewTokenService("test-secret", "marketplace-auth")
	auth := NewAuthService(users, accounts, sessions, otp, tokens, nil, AuthConfig{
		BcryptCost:    bcrypt.MinCost,
		SessionTTL:    24 * time.Hour,
		RememberMeTTL: 30 * 24 * time.Hour,
	})

	c := cache.NewCache(time.Minute)
	t.Cleanup(c.Stop)
	roleService := NewRoleService(roles, c)

	return &testEnv{
		mr:       mr,
		users:    users,
		accounts: accounts,
		roles:    roles,
		codes:    codes,
		sessions: sessions,
		sender:   sender,
		otp:      otp,
		tokens:   tokens,
		auth:     auth,
		access:   NewAccessService(sessions, accounts, users, roleService, tokens),
		staff:    NewStaffService(accounts, sessions, nil),
	}
}
