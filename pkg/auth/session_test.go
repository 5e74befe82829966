package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/database"
)

func seedUser(t *testing.T, db *database.DB, username string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRowContext(context.Background(),
		`INSERT INTO users (username, email, password_hash, role, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		username, username+"@example.com", "x", "standard", true, time.Now().UTC(),
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestSQLSessionStore(t *testing.T) {
	ctx := context.Background()
	db := database.NewTestDB(t)
	userID := seedUser(t, db, "alice")
	store := NewSQLSessionStore(db)

	t.Run("create and resolve", func(t *testing.T) {
		token, session, err := store.Create(ctx, userID, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, HashToken(token), session.TokenHash)

		resolved, err := store.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, userID, resolved.UserID)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := store.Resolve(ctx, "wdn_unknown")
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	})

	t.Run("revoke", func(t *testing.T) {
		token, _, err := store.Create(ctx, userID, time.Hour)
		require.NoError(t, err)
		require.NoError(t, store.Revoke(ctx, token))

		_, err = store.Resolve(ctx, token)
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
		assert.NoError(t, store.Revoke(ctx, token))
	})

	t.Run("revoke user", func(t *testing.T) {
		first, _, err := store.Create(ctx, userID, time.Hour)
		require.NoError(t, err)
		second, _, err := store.Create(ctx, userID, time.Hour)
		require.NoError(t, err)

		require.NoError(t, store.RevokeUser(ctx, userID))

		_, err = store.Resolve(ctx, first)
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
		_, err = store.Resolve(ctx, second)
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	})

	t.Run("expiry and purge", func(t *testing.T) {
		require.NoError(t, store.RevokeUser(ctx, userID))

		token, _, err := store.Create(ctx, userID, time.Minute)
		require.NoError(t, err)
		_, _, err = store.Create(ctx, userID, 2*time.Hour)
		require.NoError(t, err)

		later := time.Now().Add(time.Hour)
		store.now = func() time.Time { return later }
		defer func() { store.now = time.Now }()

		_, err = store.Resolve(ctx, token)
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

		purged, err := store.PurgeExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), purged)

		var remaining int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&remaining))
		assert.Equal(t, 1, remaining)
	})
}

func TestRedisSessionStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewRedisSessionStore(client)

	t.Run("create and resolve", func(t *testing.T) {
		token, _, err := store.Create(ctx, 7, time.Hour)
		require.NoError(t, err)

		resolved, err := store.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, int64(7), resolved.UserID)
		assert.True(t, mr.Exists("warden:session:"+HashToken(token)))
	})

	t.Run("key expiry", func(t *testing.T) {
		token, _, err := store.Create(ctx, 7, time.Minute)
		require.NoError(t, err)

		mr.FastForward(2 * time.Minute)

		_, err = store.Resolve(ctx, token)
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	})

	t.Run("revoke", func(t *testing.T) {
		token, _, err := store.Create(ctx, 8, time.Hour)
		require.NoError(t, err)
		require.NoError(t, store.Revoke(ctx, token))

		_, err = store.Resolve(ctx, token)
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
		assert.NoError(t, store.Revoke(ctx, token))
	})

	t.Run("revoke user", func(t *testing.T) {
		first, _, err := store.Create(ctx, 9, time.Hour)
		require.NoError(t, err)
		second, _, err := store.Create(ctx, 9, time.Hour)
		require.NoError(t, err)
		other, _, err := store.Create(ctx, 10, time.Hour)
		require.NoError(t, err)

		require.NoError(t, store.RevokeUser(ctx, 9))

		_, err = store.Resolve(ctx, first)
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
		_, err = store.Resolve(ctx, second)
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
		_, err = store.Resolve(ctx, other)
		assert.NoError(t, err)
	})

	t.Run("purge is a no-op", func(t *testing.T) {
		n, err := store.PurgeExpired(ctx)
		assert.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("unavailable redis", func(t *testing.T) {
		broken := NewRedisSessionStore(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}))
		_, err := broken.Resolve(ctx, "wdn_x")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, apperr.ErrUnauthenticated)
	})
}
