package expiry

import (
	"context"
	"encoding/json"
	"time"

	lock "github.com/bsm/redis-lock"
	"github.com/go-redis/redis"
	"gitlab.com/Cacophony/Playlister/pkg/window"
)

// Coordinator keeps sweeps of one window from overlapping
type Coordinator interface {
	// Lock returns false if another sweep holds the lock
	Lock(ctx context.Context) (unlock func(), locked bool, err error)
	LastRun() (time.Time, error)
	SetRun(at time.Time) error
}

type redisCoordinator struct {
	redis      *redis.Client
	lockKey    string
	lastRunKey string
}

func newRedisCoordinator(client *redis.Client, kind window.Kind) *redisCoordinator {
	return &redisCoordinator{
		redis:      client,
		lockKey:    "cacophony:playlister:expiry-" + kind.String() + ":run-lock",
		lastRunKey: "cacophony:playlister:expiry-" + kind.String() + ":run-last",
	}
}

func (c *redisCoordinator) Lock(ctx context.Context) (func(), bool, error) {
	locker := lock.New(
		c.redis,
		c.lockKey,
		&lock.Options{
			LockTimeout: 1 * time.Hour,
			RetryCount:  0, // do not retry
		},
	)

	locked, err := locker.LockWithContext(ctx)
	if err != nil || !locked {
		return nil, locked, err
	}

	return func() {
		locker.Unlock() // nolint: errcheck
	}, true, nil
}

func (c *redisCoordinator) LastRun() (time.Time, error) {
	raw, err := c.redis.Get(c.lastRunKey).Bytes()
	if err == redis.Nil {
		return time.Time{}, nil
	} else if err != nil {
		return time.Time{}, err
	}

	var lastRun time.Time
	err = json.Unmarshal(raw, &lastRun)
	return lastRun, err
}

func (c *redisCoordinator) SetRun(at time.Time) error {
	raw, err := json.Marshal(at)
	if err != nil {
		return err
	}

	return c.redis.Set(c.lastRunKey, raw, 7*24*time.Hour).Err()
}
