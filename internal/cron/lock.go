package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// A sweep must finish well inside one cycle; the key outlives a crashed
	// worker by one extra hour at most.
	defaultSweepLockTTL = defaultInterval + time.Hour
	sweepLockKeyFormat  = "medledger:cron-worker:lock:%s"
)

// Lock keeps two workers from sweeping the ledger tables in the same cycle.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// SweepLockParams configure a SweepLock.
type SweepLockParams struct {
	Store lockStore
	Env   string
	TTL   time.Duration
}

// SweepLock is a per-environment Redis lock held for the length of a sweep.
// Only the worker that wrote the token may delete the key.
type SweepLock struct {
	store lockStore
	key   string
	ttl   time.Duration
	token string
}

// NewSweepLock builds the lock for the given environment.
func NewSweepLock(params SweepLockParams) (*SweepLock, error) {
	if params.Store == nil {
		return nil, errors.New("redis store required for sweep lock")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultSweepLockTTL
	}
	return &SweepLock{store: params.Store, key: SweepLockKey(params.Env), ttl: ttl}, nil
}

// SweepLockKey names the lock key for an environment, defaulting to local.
func SweepLockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(sweepLockKeyFormat, env)
}

func (l *SweepLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	won, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("claim sweep lock %s: %w", l.key, err)
	}
	if won {
		l.token = token
	}
	return won, nil
}

// Release is a no-op when this worker never held the key or the key expired
// and was claimed by another worker.
func (l *SweepLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	defer func() { l.token = "" }()

	holder, err := l.store.Get(ctx, l.key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return fmt.Errorf("read sweep lock holder: %w", err)
	case holder != l.token:
		return nil
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("drop sweep lock: %w", err)
	}
	return nil
}
