package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper marks keys as seen in Redis. A zero ttl keeps markers until
// they are forgotten explicitly.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		prefix: prefix,
		logger: logger,
	}
}

func (d *Deduper) key(id string) string {
	return fmt.Sprintf("%s:%s", d.prefix, id)
}

// AcquireOnce returns true the first time id is seen.
// When Redis is unavailable processing is allowed.
func (d *Deduper) AcquireOnce(ctx context.Context, id string) bool {
	ok, err := d.rdb.SetNX(ctx, d.key(id), 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("key", d.key(id)),
			zap.Error(err),
		)
		return true
	}
	if !ok {
		d.logger.Info("Skipped duplicated key", zap.String("key", d.key(id)))
	}
	return ok
}

// Seen reports whether id has been marked.
func (d *Deduper) Seen(ctx context.Context, id string) (bool, error) {
	n, err := d.rdb.Exists(ctx, d.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", d.key(id), err)
	}
	return n > 0, nil
}

// Mark records id as seen.
func (d *Deduper) Mark(ctx context.Context, id string) error {
	if err := d.rdb.Set(ctx, d.key(id), 1, d.ttl).Err(); err != nil {
		return fmt.Errorf("marking %s: %w", d.key(id), err)
	}
	return nil
}

// ForgetAll removes every marker under the prefix and returns the count.
func (d *Deduper) ForgetAll(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := d.rdb.Scan(ctx, cursor, d.prefix+":*", 200).Result()
		if err != nil {
			return removed, fmt.Errorf("scanning %s: %w", d.prefix, err)
		}
		if len(keys) > 0 {
			n, err := d.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("deleting %s keys: %w", d.prefix, err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Forget removes the marker for id so a later AcquireOnce succeeds again.
func (d *Deduper) Forget(ctx context.Context, id string) error {
	if err := d.rdb.Del(ctx, d.key(id)).Err(); err != nil {
		return fmt.Errorf("forgetting %s: %w", d.key(id), err)
	}
	return nil
}
