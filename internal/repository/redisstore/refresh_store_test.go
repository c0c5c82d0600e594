package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnpath/internal/domain"
)

func setupStore(t *testing.T) (*RefreshTokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := Connect(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestConsumeOnce(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t)

	require.NoError(t, store.Save(ctx, domain.RefreshSession{ID: "jti-1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}))
	assert.True(t, mr.Exists("refresh:jti-1"))

	uid, err := store.Consume(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
	assert.False(t, mr.Exists("refresh:jti-1"))

	_, err = store.Consume(ctx, "jti-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionsExpire(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t)

	require.NoError(t, store.Save(ctx, domain.RefreshSession{ID: "jti", UserID: "u1", ExpiresAt: time.Now().Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)

	_, err := store.Consume(ctx, "jti")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveSkipsExpiredSession(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t)

	require.NoError(t, store.Save(ctx, domain.RefreshSession{ID: "old", UserID: "u1", ExpiresAt: time.Now().Add(-time.Second)}))
	assert.False(t, mr.Exists("refresh:old"))
}

func TestRevokeAll(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t)
	exp := time.Now().Add(time.Hour)

	require.NoError(t, store.Save(ctx, domain.RefreshSession{ID: "a", UserID: "u1", ExpiresAt: exp}))
	require.NoError(t, store.Save(ctx, domain.RefreshSession{ID: "b", UserID: "u1", ExpiresAt: exp}))
	require.NoError(t, store.Save(ctx, domain.RefreshSession{ID: "c", UserID: "u2", ExpiresAt: exp}))

	require.NoError(t, store.RevokeAll(ctx, "u1"))
	assert.False(t, mr.Exists("refresh:a"))
	assert.False(t, mr.Exists("refresh:b"))
	assert.False(t, mr.Exists("refresh:user:u1"))

	uid, err := store.Consume(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "u2", uid)
}

func TestRevokeAllWithoutSessions(t *testing.T) {
	store, _ := setupStore(t)
	assert.NoError(t, store.RevokeAll(context.Background(), "nobody"))
}

func TestConnectFailure(t *testing.T) {
	_, err := Connect(context.Background(), Options{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestNewWrapsClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer store.Close()
	_, err = store.Consume(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
