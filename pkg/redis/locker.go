package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a single-key mutual exclusion lock shared across processes.
type Locker struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewLocker(rdb *redis.Client, key string, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, key: key, ttl: ttl}
}

// TryLock returns a release func when the lock was acquired, or ok=false
// when another holder owns it.
func (l *Locker) TryLock(ctx context.Context) (release func(), ok bool, err error) {
	token := uuid.NewString()
	ok, err = l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquiring lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err()
	}, true, nil
}
