package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memorySessions struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	delErr error
}

func newMemorySessions() *memorySessions {
	return &memorySessions{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memorySessions) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memorySessions) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return "", redislib.Nil
	}
	return value, nil
}

func (m *memorySessions) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memorySessions) AccessSessionKey(accessID string) string {
	return "medledger:session:" + accessID
}

func newTestManager(store *memorySessions) *Manager {
	return &Manager{store: store, keyer: store, ttl: 30 * 24 * time.Hour}
}

func TestGenerateStoresDigestNotToken(t *testing.T) {
	store := newMemorySessions()
	manager := newTestManager(store)
	ctx := context.Background()

	token, err := manager.Generate(ctx, "patient-session")
	require.NoError(t, err)
	stored := store.values["medledger:session:patient-session"]
	require.NotEqual(t, token, stored)
	require.Equal(t, digest(token), stored)
	require.Equal(t, 30*24*time.Hour, store.ttls["medledger:session:patient-session"])

	_, err = manager.Generate(ctx, "  ")
	require.Error(t, err)
}

func TestRotateReplacesSessionOnce(t *testing.T) {
	store := newMemorySessions()
	manager := newTestManager(store)
	ctx := context.Background()

	token, err := manager.Generate(ctx, "doctor-session")
	require.NoError(t, err)

	_, _, err = manager.Rotate(ctx, "doctor-session", digest(token))
	require.ErrorIs(t, err, ErrInvalidRefreshToken, "the stored digest must not work as a token")

	newAccessID, newToken, err := manager.Rotate(ctx, "doctor-session", token)
	require.NoError(t, err)
	require.NotContains(t, store.values, "medledger:session:doctor-session")
	require.Equal(t, digest(newToken), store.values["medledger:session:"+newAccessID])

	_, _, err = manager.Rotate(ctx, "doctor-session", token)
	require.ErrorIs(t, err, ErrInvalidRefreshToken, "a rotated token cannot be reused")
}

func TestRotateSurfacesStoreFailure(t *testing.T) {
	store := newMemorySessions()
	manager := newTestManager(store)
	ctx := context.Background()

	token, err := manager.Generate(ctx, "hospital-session")
	require.NoError(t, err)
	store.delErr = errors.New("redis timeout")
	_, _, err = manager.Rotate(ctx, "hospital-session", token)
	require.ErrorContains(t, err, "close refresh session")
	require.False(t, errors.Is(err, ErrInvalidRefreshToken))
}

func TestRevokeEndsSession(t *testing.T) {
	store := newMemorySessions()
	manager := newTestManager(store)
	ctx := context.Background()

	_, err := manager.Generate(ctx, "admin-session")
	require.NoError(t, err)
	active, err := manager.HasSession(ctx, "admin-session")
	require.NoError(t, err)
	require.True(t, active)

	require.NoError(t, manager.Revoke(ctx, "admin-session"))
	active, err = manager.HasSession(ctx, "admin-session")
	require.NoError(t, err)
	require.False(t, active)
	require.NoError(t, manager.Revoke(ctx, "admin-session"))
}
