package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// SessionDuration is 7 days
	SessionDuration = 7 * 24 * time.Hour
	// SessionKeyPrefix is the Redis key prefix for sessions
	SessionKeyPrefix = "session:"
	// UserSessionKeyPrefix is the Redis key prefix for user->session mapping
	UserSessionKeyPrefix = "user_session:"
	// StateKeyPrefix holds OIDC state -> nonce while a sign-in is in flight
	StateKeyPrefix = "oidc_state:"
	StateDuration  = 10 * time.Minute
)

// Session is what a signed-in browser carries server-side.
type Session struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	// Token is the sealed OAuth token returned by the identity provider.
	Token string `json:"token,omitempty"`
}

type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

// Create stores a new session and returns its token. Any earlier session of the same
// user is invalidated so the 7-day timer restarts from this sign-in.
func (s *SessionStore) Create(ctx context.Context, sess Session) (string, error) {
	if sess.UserID == "" {
		return "", errors.New("session user id is empty")
	}
	if err := s.InvalidateUser(ctx, sess.UserID); err != nil {
		return "", err
	}

	token, err := RandomToken()
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return "", err
	}

	if err := s.rdb.Set(ctx, SessionKeyPrefix+token, data, SessionDuration).Err(); err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, UserSessionKeyPrefix+sess.UserID, token, SessionDuration).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Validate returns the session behind token. A missing or expired session is (zero, false, nil).
func (s *SessionStore) Validate(ctx context.Context, token string) (Session, bool, error) {
	if token == "" {
		return Session{}, false, nil
	}
	data, err := s.rdb.Get(ctx, SessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return sess, true, nil
}

// Invalidate removes a session from Redis
func (s *SessionStore) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	sess, ok, err := s.Validate(ctx, token)
	if err == nil && ok {
		s.rdb.Del(ctx, UserSessionKeyPrefix+sess.UserID)
	}
	return s.rdb.Del(ctx, SessionKeyPrefix+token).Err()
}

// InvalidateUser drops the current session of userID, if any.
func (s *SessionStore) InvalidateUser(ctx context.Context, userID string) error {
	userKey := UserSessionKeyPrefix + userID
	token, err := s.rdb.Get(ctx, userKey).Result()
	if err == nil && token != "" {
		s.rdb.Del(ctx, SessionKeyPrefix+token)
	}
	return s.rdb.Del(ctx, userKey).Err()
}

// SaveState remembers the nonce for an in-flight sign-in.
func (s *SessionStore) SaveState(ctx context.Context, state, nonce string) error {
	return s.rdb.Set(ctx, StateKeyPrefix+state, nonce, StateDuration).Err()
}

// TakeState returns and forgets the nonce stored for state. Each state is usable once.
func (s *SessionStore) TakeState(ctx context.Context, state string) (string, bool, error) {
	if state == "" {
		return "", false, nil
	}
	nonce, err := s.rdb.GetDel(ctx, StateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return nonce, true, nil
}

// RandomToken returns a URL-safe random string. Used for session tokens and OIDC state and nonce values.
func RandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

