package locker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	bookingserrors "docslot/internal/bookings/errors"
)

const redisKeyPrefix = "docslot:lock:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker uses SET NX PX with a random owner token; release is compare-and-delete.
type RedisLocker struct {
	client redis.UniversalClient
	opts   Options
}

func NewRedisLocker(client redis.UniversalClient, opts Options) *RedisLocker {
	return &RedisLocker{client: client, opts: opts.withDefaults()}
}

func (l *RedisLocker) Backend() string {
	return "redis"
}

func (l *RedisLocker) Acquire(ctx context.Context, key Key) (Lease, error) {
	owner := uuid.NewString()
	redisKey := redisKeyPrefix + key.String()

	err := poll(ctx, key, l.opts, func(ctx context.Context) (bool, error) {
		ok, err := l.client.SetNX(ctx, redisKey, owner, l.opts.TTL).Result()
		if err != nil {
			return false, fmt.Errorf("failed to set booking lock: %w", err)
		}
		return ok, nil
	})
	if err != nil {
		return nil, err
	}

	return &redisLease{client: l.client, key: redisKey, owner: owner}, nil
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	owner  string
	once   sync.Once
	err    error
}

func (ls *redisLease) Release(ctx context.Context) error {
	ls.once.Do(func() {
		n, err := releaseScript.Run(context.WithoutCancel(ctx), ls.client, []string{ls.key}, ls.owner).Int()
		switch {
		case err != nil:
			ls.err = fmt.Errorf("failed to release booking lock: %w", err)
		case n == 0:
			ls.err = fmt.Errorf("%w: %s", bookingserrors.ErrLockLost, ls.key)
		}
	})
	return ls.err
}
