package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	SessionTTL    = 24 * time.Hour
	SessionCookie = "session_id"

	// TokenSessionTTL bounds signed-cookie sessions. They cannot be revoked
	// server side, so a token copied before logout stays valid until it
	// expires.
	TokenSessionTTL = 2 * time.Hour
)

// SessionStore maps an opaque token carried in a cookie to a user id.
type SessionStore interface {
	// Create starts a session for userID and returns its token.
	Create(ctx context.Context, userID int64) (string, error)
	// Lookup returns the user id for token, or 0 if the session is unknown
	// or expired.
	Lookup(ctx context.Context, token string) (int64, error)
	// Destroy ends the session.
	Destroy(ctx context.Context, token string) error
}

// redisCmdable is the subset of *redis.Client used for sessions.
type redisCmdable interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisSessionStore keeps sessions in Redis under random uuid tokens.
type RedisSessionStore struct {
	rdb redisCmdable
}

func NewRedisSessionStore(rdb redisCmdable) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func (s *RedisSessionStore) Create(ctx context.Context, userID int64) (string, error) {
	sid := uuid.New().String()
	err := s.rdb.Set(ctx, "session:"+sid, strconv.FormatInt(userID, 10), SessionTTL).Err()
	return sid, err
}

func (s *RedisSessionStore) Lookup(ctx context.Context, token string) (int64, error) {
	val, err := s.rdb.Get(ctx, "session:"+token).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session value: %w", err)
	}
	return id, nil
}

func (s *RedisSessionStore) Destroy(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, "session:"+token).Err()
}

// TokenSessionStore keeps no server state: the token is an HS256 JWT whose
// subject is the user id. Used when no Redis is configured.
type TokenSessionStore struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenSessionStore(secret string) *TokenSessionStore {
	return &TokenSessionStore{secret: []byte(secret), ttl: TokenSessionTTL, now: time.Now}
}

func (s *TokenSessionStore) Create(_ context.Context, userID int64) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *TokenSessionStore) Lookup(_ context.Context, token string) (int64, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return 0, nil
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id < 1 {
		return 0, nil
	}
	return id, nil
}

// Destroy is a no-op; logging out clears the cookie. The token itself stays
// valid until TokenSessionTTL elapses.
func (s *TokenSessionStore) Destroy(context.Context, string) error { return nil }

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionTTL / time.Second),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
