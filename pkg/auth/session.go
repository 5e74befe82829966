package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/database"
)

// SessionStore keeps login sessions keyed by token hash
type SessionStore interface {
	// Create issues a new session for userID and returns the raw token
	Create(ctx context.Context, userID int64, ttl time.Duration) (string, *Session, error)

	// Resolve returns the live session for token or apperr.ErrUnauthenticated
	Resolve(ctx context.Context, token string) (*Session, error)

	// Revoke ends one session. Unknown tokens are not an error.
	Revoke(ctx context.Context, token string) error

	// RevokeUser ends every session of userID
	RevokeUser(ctx context.Context, userID int64) error

	// PurgeExpired deletes expired sessions and returns how many were removed
	PurgeExpired(ctx context.Context) (int64, error)
}

// SQLSessionStore keeps sessions in the sessions table
type SQLSessionStore struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLSessionStore creates a session store over the shared store handle
func NewSQLSessionStore(db *database.DB) *SQLSessionStore {
	return &SQLSessionStore{db: db, now: time.Now}
}

// Create inserts a new session row
func (s *SQLSessionStore) Create(ctx context.Context, userID int64, ttl time.Duration) (string, *Session, error) {
	token, hash, err := GenerateToken()
	if err != nil {
		return "", nil, err
	}

	now := s.now().UTC()
	session := &Session{TokenHash: hash, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO sessions (token_hash, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)",
		session.TokenHash, session.UserID, session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	return token, session, nil
}

// Resolve looks up a live session by token
func (s *SQLSessionStore) Resolve(ctx context.Context, token string) (*Session, error) {
	session := &Session{TokenHash: HashToken(token)}

	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, created_at, expires_at FROM sessions WHERE token_hash = $1",
		session.TokenHash,
	).Scan(&session.UserID, &session.CreatedAt, &session.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	if session.Expired(s.now()) {
		return nil, apperr.ErrUnauthenticated
	}

	return session, nil
}

// Revoke deletes one session
func (s *SQLSessionStore) Revoke(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token_hash = $1", HashToken(token)); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeUser deletes every session of a user
func (s *SQLSessionStore) RevokeUser(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	return nil
}

// PurgeExpired deletes sessions past their expiry
func (s *SQLSessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= $1", s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged sessions: %w", err)
	}
	return n, nil
}

// RedisSessionStore keeps sessions in Redis with native key expiry
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisSessionStore creates a Redis-backed session store
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: "warden:", now: time.Now}
}

func (s *RedisSessionStore) sessionKey(hash string) string {
	return s.prefix + "session:" + hash
}

func (s *RedisSessionStore) userKey(userID int64) string {
	return s.prefix + "user_sessions:" + strconv.FormatInt(userID, 10)
}

// Create stores the session under its hash and indexes it by user
func (s *RedisSessionStore) Create(ctx context.Context, userID int64, ttl time.Duration) (string, *Session, error) {
	token, hash, err := GenerateToken()
	if err != nil {
		return "", nil, err
	}

	now := s.now().UTC()
	session := &Session{TokenHash: hash, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.sessionKey(hash),
		"user_id", userID,
		"created_at", now.Unix(),
		"expires_at", session.ExpiresAt.Unix(),
	)
	pipe.Expire(ctx, s.sessionKey(hash), ttl)
	pipe.SAdd(ctx, s.userKey(userID), hash)
	pipe.Expire(ctx, s.userKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	return token, session, nil
}

// Resolve reads the session hash; a missing key means expired or revoked
func (s *RedisSessionStore) Resolve(ctx context.Context, token string) (*Session, error) {
	hash := HashToken(token)

	values, err := s.client.HGetAll(ctx, s.sessionKey(hash)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	if len(values) == 0 {
		return nil, apperr.ErrUnauthenticated
	}

	userID, err := strconv.ParseInt(values["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session record: %w", err)
	}
	created, _ := strconv.ParseInt(values["created_at"], 10, 64)
	expires, _ := strconv.ParseInt(values["expires_at"], 10, 64)

	session := &Session{
		TokenHash: hash,
		UserID:    userID,
		CreatedAt: time.Unix(created, 0).UTC(),
		ExpiresAt: time.Unix(expires, 0).UTC(),
	}
	if session.Expired(s.now()) {
		return nil, apperr.ErrUnauthenticated
	}

	return session, nil
}

// Revoke deletes one session
func (s *RedisSessionStore) Revoke(ctx context.Context, token string) error {
	hash := HashToken(token)

	userID, err := s.client.HGet(ctx, s.sessionKey(hash), "user_id").Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.sessionKey(hash))
	if err == nil {
		pipe.SRem(ctx, s.userKey(userID), hash)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeUser deletes every session indexed under the user
func (s *RedisSessionStore) RevokeUser(ctx context.Context, userID int64) error {
	hashes, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, hash := range hashes {
		keys = append(keys, s.sessionKey(hash))
	}
	keys = append(keys, s.userKey(userID))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	return nil
}

// PurgeExpired is a no-op: Redis expires session keys itself
func (s *RedisSessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}
