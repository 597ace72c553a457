package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	pkgredis "github.com/Payphone-Digital/marketplace-auth/pkg/redis"
	"github.com/Payphone-Digital/marketplace-auth/pkg/secure"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned for absent or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

const sessionIDBytes = 32

// SessionStore keeps sessions in Redis:
//
//	session:<id>                 JSON record, TTL = session lifetime
//	session:2fa:<id>             "1" once 2FA is verified, same remaining TTL
//	account_sessions:<account>   set of live session ids
type SessionStore struct {
	client *pkgredis.Client
	now    func() time.Time
}

func NewSessionStore(client *pkgredis.Client) *SessionStore {
	return &SessionStore{client: client, now: time.Now}
}

// WithClock overrides the clock used for expiry checks.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

func sessionKey(id string) string {
	return constants.SessionKeyPrefix + id
}

func twoFactorKey(id string) string {
	return constants.SessionTwoFactorPrefix + id
}

func accountSessionsKey(accountID uint) string {
	return constants.AccountSessionsPrefix + strconv.FormatUint(uint64(accountID), 10)
}

// Create stores a new session for accountID that lives for ttl.
func (s *SessionStore) Create(ctx context.Context, accountID uint, meta model.SessionMetadata, ttl time.Duration) (*model.Session, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "CreateSession")

	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}

	id, err := secure.RandomToken(sessionIDBytes)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	now := s.now().UTC()
	session := &model.Session{
		ID:               id,
		AccountID:        accountID,
		UserID:           meta.UserID,
		CreatedAt:        now,
		ExpiresAt:        now.Add(ttl),
		IP:               meta.IP,
		UserAgent:        meta.UserAgent,
		RememberMe:       meta.RememberMe,
		RefreshTokenHash: meta.RefreshTokenHash,
		CSRFTokenHash:    meta.CSRFTokenHash,
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	start := time.Now()
	rdb := s.client.Redis()
	pipe := rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(id), payload, ttl)
	pipe.SAdd(ctx, accountSessionsKey(accountID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.ErrorWithContext(ctx, "Failed to create session").
			Uint("account_id", accountID).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return nil, fmt.Errorf("store session: %w", err)
	}

	if err := s.stretchIndex(ctx, accountID, ttl); err != nil {
		logger.WarnWithContext(ctx, "Failed to extend session index TTL").
			Uint("account_id", accountID).
			Err(err).
			Log()
	}

	logger.DebugWithContext(ctx, "Session created").
		Uint("account_id", accountID).
		Secret("session_id", id).
		Time("expires_at", session.ExpiresAt).
		Duration(time.Since(start)).
		Log()

	return session, nil
}

// stretchIndex keeps the per-account index alive at least as long as ttl.
func (s *SessionStore) stretchIndex(ctx context.Context, accountID uint, ttl time.Duration) error {
	key := accountSessionsKey(accountID)
	current, err := s.client.TTL(ctx, key)
	if err != nil {
		return err
	}
	if current >= ttl {
		return nil
	}
	return s.client.Redis().Expire(ctx, key, ttl).Err()
}

// Get returns the session or ErrSessionNotFound.
func (s *SessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}

	raw, err := s.client.Redis().Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	if session.Expired(s.now()) {
		_ = s.Destroy(ctx, id)
		return nil, ErrSessionNotFound
	}

	return &session, nil
}

// Destroy removes the session and its 2FA flag. Missing sessions are not an error.
func (s *SessionStore) Destroy(ctx context.Context, id string) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "DestroySession")

	rdb := s.client.Redis()
	var accountID uint
	if raw, err := rdb.Get(ctx, sessionKey(id)).Bytes(); err == nil {
		var session model.Session
		if json.Unmarshal(raw, &session) == nil {
			accountID = session.AccountID
		}
	}

	pipe := rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(id), twoFactorKey(id))
	if accountID != 0 {
		pipe.SRem(ctx, accountSessionsKey(accountID), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.ErrorWithContext(ctx, "Failed to destroy session").
			Secret("session_id", id).
			Err(err).
			Log()
		return fmt.Errorf("destroy session: %w", err)
	}

	logger.DebugWithContext(ctx, "Session destroyed").
		Secret("session_id", id).
		Log()

	return nil
}

// Extend pushes the expiry to now+ttl, keeping the 2FA flag aligned.
func (s *SessionStore) Extend(ctx context.Context, id string, ttl time.Duration) (*model.Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	session.ExpiresAt = s.now().UTC().Add(ttl)
	payload, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	rdb := s.client.Redis()
	pipe := rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(id), payload, ttl)
	pipe.Expire(ctx, twoFactorKey(id), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("extend session: %w", err)
	}

	if err := s.stretchIndex(ctx, session.AccountID, ttl); err != nil {
		return nil, fmt.Errorf("extend session index: %w", err)
	}

	return session, nil
}

// Update rewrites the record without touching its TTL.
func (s *SessionStore) Update(ctx context.Context, session *model.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.client.Redis().SetXX(ctx, sessionKey(session.ID), payload, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// Set2FAVerified flags the session as 2FA verified for the rest of its life.
func (s *SessionStore) Set2FAVerified(ctx context.Context, id string) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "Set2FAVerified")

	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	remaining := session.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return ErrSessionNotFound
	}

	if err := s.client.Set(ctx, twoFactorKey(id), "1", remaining); err != nil {
		logger.ErrorWithContext(ctx, "Failed to flag session as 2FA verified").
			Secret("session_id", id).
			Err(err).
			Log()
		return err
	}

	return nil
}

func (s *SessionStore) Is2FAVerified(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	return s.client.Exists(ctx, twoFactorKey(id))
}

// ListByAccount returns the live sessions of an account, pruning stale index entries.
func (s *SessionStore) ListByAccount(ctx context.Context, accountID uint) ([]model.Session, error) {
	key := accountSessionsKey(accountID)
	ids, err := s.client.Redis().SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]model.Session, 0, len(ids))
	var stale []interface{}
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if len(stale) > 0 {
		_ = s.client.Redis().SRem(ctx, key, stale...).Err()
	}

	return sessions, nil
}

// DestroyAllForAccount removes every session of the account except exceptID
// and returns how many were removed.
func (s *SessionStore) DestroyAllForAccount(ctx context.Context, accountID uint, exceptID string) (int, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "DestroyAllForAccount")

	key := accountSessionsKey(accountID)
	ids, err := s.client.Redis().SMembers(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	pipe := s.client.Redis().TxPipeline()
	removed := 0
	for _, id := range ids {
		if id == exceptID {
			continue
		}
		pipe.Del(ctx, sessionKey(id), twoFactorKey(id))
		pipe.SRem(ctx, key, id)
		removed++
	}
	if removed == 0 {
		return 0, nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		logger.ErrorWithContext(ctx, "Failed to destroy account sessions").
			Uint("account_id", accountID).
			Err(err).
			Log()
		return 0, fmt.Errorf("destroy sessions: %w", err)
	}

	logger.InfoWithContext(ctx, "Account sessions destroyed").
		Uint("account_id", accountID).
		Int("count", removed).
		Log()

	return removed, nil
}
