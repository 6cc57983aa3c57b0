package session

import (
	"context"
	"testing"
	"time"

	"session-service/internal/auth"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	s, err := New("user-1", auth.ProviderEmail, time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, s))

	assert.True(t, mr.Exists("session:"+s.SessionID))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL("session:"+s.SessionID).Seconds(), 2)

	got, err := store.Get(ctx, s.SessionID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, auth.ProviderEmail, got.Provider)
	assert.False(t, got.Expired(time.Now()))

	require.NoError(t, store.Delete(ctx, s.SessionID))
	got, err = store.Get(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_ExpiresWithTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	s, err := New("user-1", auth.ProviderGoogle, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, s))

	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_CreateValidation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, store.Create(ctx, Session{UserID: "u", ExpiresAt: time.Now().Add(time.Hour)}))
	assert.Error(t, store.Create(ctx, Session{SessionID: "s", ExpiresAt: time.Now().Add(time.Hour)}))
	assert.Error(t, store.Create(ctx, Session{SessionID: "s", UserID: "u", ExpiresAt: time.Now().Add(-time.Second)}))
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	_, err := store.Get(context.Background(), "anything")
	assert.Error(t, err)
}

func TestNew_UniqueIDs(t *testing.T) {
	a, err := New("u", auth.ProviderApple, time.Hour)
	require.NoError(t, err)
	b, err := New("u", auth.ProviderApple, time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.Len(t, a.SessionID, 43)
}
